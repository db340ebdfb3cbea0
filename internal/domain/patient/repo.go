package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Profile) error
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	GetByMRN(ctx context.Context, mrn string) (*Profile, error)
	// Save persists every mutable field and bumps Version.
	Save(ctx context.Context, p *Profile) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Profile, int, error)
}

type SelectionRepository interface {
	Get(ctx context.Context, userID, siteID string) (*Selection, error)
	Save(ctx context.Context, sel *Selection) error
}
