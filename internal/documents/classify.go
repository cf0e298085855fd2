package documents

import (
	"context"

	"github.com/angelmondragon/constructai-backend/internal/uploads"
	"github.com/angelmondragon/constructai-backend/pkg/db/models"
	"github.com/angelmondragon/constructai-backend/pkg/enums"
)

// Deriver produces artifacts for a stored document and records the outcome on it.
type Deriver interface {
	Derive(ctx context.Context, doc models.Document) error
}

// DeriverFunc adapts a function to Deriver.
type DeriverFunc func(ctx context.Context, doc models.Document) error

func (f DeriverFunc) Derive(ctx context.Context, doc models.Document) error {
	return f(ctx, doc)
}

var derivationByGroup = map[uploads.Group]enums.DerivationKind{
	uploads.GroupImages: enums.DerivationOCR,
	uploads.GroupPDFs:   enums.DerivationOCR,
	uploads.GroupCAD:    enums.DerivationNone,
	uploads.GroupOffice: enums.DerivationNone,
}

// Classify picks the derivation an accepted upload needs.
func Classify(decision uploads.Decision) enums.DerivationKind {
	if kind, ok := derivationByGroup[decision.Group]; ok {
		return kind
	}
	return enums.DerivationNone
}
