package conversion

import (
	"time"

	"github.com/angelmondragon/constructai-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

const (
	ProviderRemote     = "hunyuan3d-2"
	ProviderSimulation = "simulation"
)

// Result is the normalized response of a conversion. Both the remote path and
// the simulation populate the same shape; ServiceInfo.IsRealConversion is the
// only provenance marker.
type Result struct {
	Success          bool                   `json:"success"`
	JobID            string                 `json:"jobId"`
	Status           enums.ConversionStatus `json:"status"`
	IsRealConversion bool                   `json:"isRealConversion"`
	Settings         Settings               `json:"settings"`
	Output           Output                 `json:"result"`
	ServiceInfo      ServiceInfo            `json:"serviceInfo"`
	Timestamp        time.Time              `json:"timestamp"`
}

type Output struct {
	ModelURL     string   `json:"modelUrl"`
	TextureURL   string   `json:"textureUrl"`
	FloorPlanURL string   `json:"floorPlanUrl,omitempty"`
	Metadata     Metadata `json:"metadata"`
}

type Metadata struct {
	DetectedElements DetectedElements `json:"detectedElements"`
	BuildingMetrics  BuildingMetrics  `json:"buildingMetrics"`
	Accuracy         int              `json:"accuracy"`
	ModelStats       ModelStats       `json:"modelStats"`
	ProcessingTimeMs int64            `json:"processingTimeMs"`
}

type DetectedElements struct {
	Walls   int `json:"walls"`
	Doors   int `json:"doors"`
	Windows int `json:"windows"`
	Rooms   int `json:"rooms"`
}

// BuildingMetrics are in feet and square feet.
type BuildingMetrics struct {
	TotalArea     int             `json:"totalArea"`
	Height        int             `json:"height"`
	Floors        int             `json:"floors"`
	EstimatedCost decimal.Decimal `json:"estimatedCost"`
}

type ModelStats struct {
	Vertices  int `json:"vertices"`
	Faces     int `json:"faces"`
	Materials int `json:"materials"`
}

type ServiceInfo struct {
	IsRealConversion bool   `json:"isRealConversion"`
	Provider         string `json:"provider"`
	Endpoint         string `json:"endpoint,omitempty"`
	FallbackReason   string `json:"fallbackReason,omitempty"`
	Message          string `json:"message"`
}

// CompletedEvent is the payload of conversion.completed.
type CompletedEvent struct {
	JobID            string `json:"job_id"`
	Provider         string `json:"provider"`
	IsRealConversion bool   `json:"is_real_conversion"`
	FallbackReason   string `json:"fallback_reason,omitempty"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
}
