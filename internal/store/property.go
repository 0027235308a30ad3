package store

import (
	"context"

	"github.com/phrazzld/assessment-engine/internal/domain"
)

// PropertyStore reads property records for batch validation.
type PropertyStore interface {
	// Fetch returns the properties matching filter ordered by id.
	Fetch(ctx context.Context, filter domain.ValidationFilter) ([]domain.Property, error)
}
