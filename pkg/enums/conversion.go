package enums

import "fmt"

// ConversionStatus tracks a 3D conversion job.
type ConversionStatus string

const (
	ConversionStatusQueued     ConversionStatus = "queued"
	ConversionStatusProcessing ConversionStatus = "processing"
	ConversionStatusCompleted  ConversionStatus = "completed"
	ConversionStatusFailed     ConversionStatus = "failed"
)

func (s ConversionStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the job has finished.
func (s ConversionStatus) IsTerminal() bool {
	return s == ConversionStatusCompleted || s == ConversionStatusFailed
}

// ConversionStyle is the rendering style requested for a generated model.
type ConversionStyle string

const (
	ConversionStyleRealistic     ConversionStyle = "realistic"
	ConversionStyleArchitectural ConversionStyle = "architectural"
	ConversionStyleModern        ConversionStyle = "modern"
	ConversionStyleTraditional   ConversionStyle = "traditional"
)

var validConversionStyles = []ConversionStyle{
	ConversionStyleRealistic,
	ConversionStyleArchitectural,
	ConversionStyleModern,
	ConversionStyleTraditional,
}

func (s ConversionStyle) String() string {
	return string(s)
}

func (s ConversionStyle) IsValid() bool {
	for _, candidate := range validConversionStyles {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseConversionStyle converts raw input into a ConversionStyle.
func ParseConversionStyle(value string) (ConversionStyle, error) {
	for _, candidate := range validConversionStyles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid conversion style %q", value)
}

// ConversionQuality trades generation time for detail.
type ConversionQuality string

const (
	ConversionQualityFast     ConversionQuality = "fast"
	ConversionQualityStandard ConversionQuality = "standard"
	ConversionQualityHigh     ConversionQuality = "high"
)

var validConversionQualities = []ConversionQuality{
	ConversionQualityFast,
	ConversionQualityStandard,
	ConversionQualityHigh,
}

func (q ConversionQuality) String() string {
	return string(q)
}

func (q ConversionQuality) IsValid() bool {
	for _, candidate := range validConversionQualities {
		if candidate == q {
			return true
		}
	}
	return false
}

// ParseConversionQuality converts raw input into a ConversionQuality.
func ParseConversionQuality(value string) (ConversionQuality, error) {
	for _, candidate := range validConversionQualities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid conversion quality %q", value)
}
