package enums

import "fmt"

// DerivationKind tags the background work an upload requires.
type DerivationKind string

const (
	DerivationNone    DerivationKind = "none"
	DerivationOCR     DerivationKind = "ocr"
	DerivationModel3D DerivationKind = "model3d"
)

var validDerivationKinds = []DerivationKind{
	DerivationNone,
	DerivationOCR,
	DerivationModel3D,
}

func (k DerivationKind) String() string {
	return string(k)
}

func (k DerivationKind) IsValid() bool {
	for _, candidate := range validDerivationKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseDerivationKind converts raw input into a DerivationKind.
func ParseDerivationKind(value string) (DerivationKind, error) {
	for _, candidate := range validDerivationKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid derivation kind %q", value)
}
