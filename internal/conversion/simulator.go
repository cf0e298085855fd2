package conversion

import (
	"math/rand/v2"
	"strings"

	"github.com/shopspring/decimal"
)

const defaultSimulationAssetBase = "/assets/simulated"

// Simulation bounds, inclusive.
const (
	simWallsMin, simWallsMax         = 8, 20
	simDoorsMin, simDoorsMax         = 2, 8
	simWindowsMin, simWindowsMax     = 4, 15
	simRoomsMin, simRoomsMax         = 3, 8
	simAreaMin, simAreaMax           = 1000, 3000
	simHeightMin, simHeightMax       = 20, 40
	simCostMin, simCostMax           = 800_000, 2_000_000
	simVerticesMin, simVerticesMax   = 20_000, 35_000
	simFacesMin, simFacesMax         = 15_000, 25_000
	simMaterialsMin, simMaterialsMax = 3, 8
	simAccuracyMin, simAccuracyMax   = 80, 90
	remoteAccuracyMin                = 85
	remoteAccuracyMax                = 95
	storeyHeightFeet                 = 12
)

// Simulator synthesizes a plausible conversion without any external call.
// Output is a pure function of the settings seed.
type Simulator struct {
	assetBase string
}

func NewSimulator(assetBase string) *Simulator {
	assetBase = strings.TrimRight(strings.TrimSpace(assetBase), "/")
	if assetBase == "" {
		assetBase = defaultSimulationAssetBase
	}
	return &Simulator{assetBase: assetBase}
}

// Simulate fills the output for jobID from settings.
func (s *Simulator) Simulate(jobID string, settings Settings) Output {
	rng := seededRand(settings.Seed)
	out := Output{
		ModelURL: s.assetBase + "/" + jobID + "/model.glb",
		Metadata: Metadata{
			DetectedElements: estimateElements(rng),
			BuildingMetrics:  estimateBuilding(rng, 0),
			Accuracy:         between(rng, simAccuracyMin, simAccuracyMax),
			ModelStats: ModelStats{
				Vertices:  between(rng, simVerticesMin, simVerticesMax),
				Faces:     between(rng, simFacesMin, simFacesMax),
				Materials: between(rng, simMaterialsMin, simMaterialsMax),
			},
		},
	}
	if settings.IncludeTextures {
		out.TextureURL = s.assetBase + "/" + jobID + "/texture.png"
	}
	if settings.GenerateFloorPlan {
		out.FloorPlanURL = s.assetBase + "/" + jobID + "/floor_plan.svg"
	}
	return out
}

func seededRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
}

func between(rng *rand.Rand, lo, hi int) int {
	return lo + rng.IntN(hi-lo+1)
}

func estimateElements(rng *rand.Rand) DetectedElements {
	return DetectedElements{
		Walls:   between(rng, simWallsMin, simWallsMax),
		Doors:   between(rng, simDoorsMin, simDoorsMax),
		Windows: between(rng, simWindowsMin, simWindowsMax),
		Rooms:   between(rng, simRoomsMin, simRoomsMax),
	}
}

// estimateBuilding draws area, height and cost. A positive aspect (mesh
// height over its widest footprint side) places the height inside the range
// instead of drawing it.
func estimateBuilding(rng *rand.Rand, aspect float64) BuildingMetrics {
	area := between(rng, simAreaMin, simAreaMax)
	height := between(rng, simHeightMin, simHeightMax)
	if aspect > 0 {
		if aspect > 1 {
			aspect = 1
		}
		height = simHeightMin + int(aspect*float64(simHeightMax-simHeightMin)+0.5)
	}
	floors := height / storeyHeightFeet
	if floors < 1 {
		floors = 1
	}
	cost := decimal.NewFromInt(int64(between(rng, simCostMin, simCostMax)))
	return BuildingMetrics{
		TotalArea:     area,
		Height:        height,
		Floors:        floors,
		EstimatedCost: cost,
	}
}
