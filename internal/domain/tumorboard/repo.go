package tumorboard

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, m *Meeting) error
	GetByID(ctx context.Context, id uuid.UUID) (*Meeting, error)
	UpdateStatus(ctx context.Context, m *Meeting) error
	List(ctx context.Context, limit, offset int) ([]*Meeting, int, error)
	ListUpcoming(ctx context.Context, from time.Time, limit int) ([]*Meeting, error)

	AddCase(ctx context.Context, c *Case) error
	GetCase(ctx context.Context, id uuid.UUID) (*Case, error)
	UpdateCase(ctx context.Context, c *Case) error
	ListCases(ctx context.Context, meetingID uuid.UUID) ([]Case, error)
	UpcomingCasesForPatient(ctx context.Context, patientID uuid.UUID, from time.Time) ([]PatientCase, error)
}
