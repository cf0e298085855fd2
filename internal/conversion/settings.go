package conversion

import (
	"math/rand/v2"
	"strings"

	"github.com/angelmondragon/constructai-backend/pkg/enums"
)

const (
	DefaultPrompt            = "A detailed 3D building model"
	DefaultStyle             = enums.ConversionStyleArchitectural
	DefaultQuality           = enums.ConversionQualityStandard
	DefaultOctreeResolution  = 128
	DefaultNumInferenceSteps = 5
	DefaultGuidanceScale     = 5.0
	DefaultMaxFaceCount      = 40000

	maxSeed = 1<<31 - 1
)

// SettingsInput is the caller supplied settings bundle. Nil fields take the
// defaults.
type SettingsInput struct {
	Prompt            *string  `json:"prompt" validate:"omitempty,max=500"`
	Style             *string  `json:"style" validate:"omitempty,oneof=realistic architectural modern traditional"`
	Quality           *string  `json:"quality" validate:"omitempty,oneof=fast standard high"`
	IncludeTextures   *bool    `json:"includeTextures"`
	GenerateFloorPlan *bool    `json:"generateFloorPlan"`
	OctreeResolution  *int     `json:"octreeResolution" validate:"omitempty,min=16,max=512"`
	NumInferenceSteps *int     `json:"numInferenceSteps" validate:"omitempty,min=1,max=100"`
	GuidanceScale     *float64 `json:"guidanceScale" validate:"omitempty,gt=0,lte=30"`
	MaxFaceCount      *int     `json:"maxFaceCount" validate:"omitempty,min=1000,max=500000"`
	Seed              *int64   `json:"seed" validate:"omitempty,min=0,max=2147483647"`
}

// Settings is the fully resolved bundle sent to the remote service and echoed
// back to the caller.
type Settings struct {
	Prompt            string                  `json:"prompt"`
	Style             enums.ConversionStyle   `json:"style"`
	Quality           enums.ConversionQuality `json:"quality"`
	IncludeTextures   bool                    `json:"includeTextures"`
	GenerateFloorPlan bool                    `json:"generateFloorPlan"`
	OctreeResolution  int                     `json:"octreeResolution"`
	NumInferenceSteps int                     `json:"numInferenceSteps"`
	GuidanceScale     float64                 `json:"guidanceScale"`
	MaxFaceCount      int                     `json:"maxFaceCount"`
	Seed              int64                   `json:"seed"`
}

// DefaultSettings returns the defaults with a freshly drawn seed.
func DefaultSettings() Settings {
	return Settings{
		Prompt:            DefaultPrompt,
		Style:             DefaultStyle,
		Quality:           DefaultQuality,
		IncludeTextures:   true,
		OctreeResolution:  DefaultOctreeResolution,
		NumInferenceSteps: DefaultNumInferenceSteps,
		GuidanceScale:     DefaultGuidanceScale,
		MaxFaceCount:      DefaultMaxFaceCount,
		Seed:              RandomSeed(),
	}
}

// RandomSeed draws a positive 31-bit seed.
func RandomSeed() int64 {
	return rand.Int64N(maxSeed) + 1
}

// Resolve overlays the provided fields on the defaults. Enum fields are
// parsed here as well so callers that skip struct validation still get an
// error for unknown values. Non-positive numeric fields fall back to their
// defaults.
func (in SettingsInput) Resolve() (Settings, error) {
	s := DefaultSettings()

	if in.Prompt != nil {
		if p := strings.TrimSpace(*in.Prompt); p != "" {
			s.Prompt = p
		}
	}
	if in.Style != nil && *in.Style != "" {
		style, err := enums.ParseConversionStyle(strings.ToLower(*in.Style))
		if err != nil {
			return Settings{}, err
		}
		s.Style = style
	}
	if in.Quality != nil && *in.Quality != "" {
		quality, err := enums.ParseConversionQuality(strings.ToLower(*in.Quality))
		if err != nil {
			return Settings{}, err
		}
		s.Quality = quality
	}
	if in.IncludeTextures != nil {
		s.IncludeTextures = *in.IncludeTextures
	}
	if in.GenerateFloorPlan != nil {
		s.GenerateFloorPlan = *in.GenerateFloorPlan
	}
	if in.OctreeResolution != nil && *in.OctreeResolution > 0 {
		s.OctreeResolution = *in.OctreeResolution
	}
	if in.NumInferenceSteps != nil && *in.NumInferenceSteps > 0 {
		s.NumInferenceSteps = *in.NumInferenceSteps
	}
	if in.GuidanceScale != nil && *in.GuidanceScale > 0 {
		s.GuidanceScale = *in.GuidanceScale
	}
	if in.MaxFaceCount != nil && *in.MaxFaceCount > 0 {
		s.MaxFaceCount = *in.MaxFaceCount
	}
	if in.Seed != nil && *in.Seed >= 0 {
		s.Seed = *in.Seed
	}
	return s, nil
}
