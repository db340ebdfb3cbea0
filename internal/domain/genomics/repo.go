package genomics

import (
	"context"

	"github.com/google/uuid"
)

type ReportRepository interface {
	Create(ctx context.Context, r *Report) error
	GetByID(ctx context.Context, id uuid.UUID) (*Report, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Report, int, error)
	LatestByPatient(ctx context.Context, patientID uuid.UUID) (*Report, error)
}
