package workflow

import (
	"context"

	"github.com/google/uuid"
)

type InstanceRepository interface {
	Create(ctx context.Context, inst *Instance) error
	GetByID(ctx context.Context, id uuid.UUID) (*Instance, error)
	// Update stores inst only while the stored version still equals
	// inst.Version, then increments inst.Version. A stale instance gets
	// ErrVersionConflict.
	Update(ctx context.Context, inst *Instance) error
	// List filters by status when status is non-empty.
	List(ctx context.Context, status Status, limit, offset int) ([]*Instance, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*Instance, int, error)
	// Comments
	AddComment(ctx context.Context, cm *Comment) error
	ListComments(ctx context.Context, instanceID uuid.UUID) ([]*Comment, error)
}
