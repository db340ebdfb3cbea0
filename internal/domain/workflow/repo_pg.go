package workflow

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oncodash/oncodash/internal/platform/db"
)

type instanceRepoPG struct{ pool *pgxpool.Pool }

func NewInstanceRepoPG(pool *pgxpool.Pool) InstanceRepository {
	return &instanceRepoPG{pool: pool}
}

func (r *instanceRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const instanceCols = `id, template_id, template_name, patient_id, status, current_step,
	progress, steps, COALESCE(started_by, ''), started_at, completed_at, updated_at, version`

func (r *instanceRepoPG) scanInstance(row pgx.Row) (*Instance, error) {
	var inst Instance
	var current *string
	err := row.Scan(&inst.ID, &inst.TemplateID, &inst.TemplateName, &inst.PatientID, &inst.Status, &current,
		&inst.Progress, &inst.Steps, &inst.StartedBy, &inst.StartedAt, &inst.CompletedAt, &inst.UpdatedAt, &inst.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if current != nil {
		inst.CurrentStep = *current
	}
	return &inst, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *instanceRepoPG) Create(ctx context.Context, inst *Instance) error {
	if inst.ID == uuid.Nil {
		inst.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO workflow_instance (id, template_id, template_name, patient_id, status, current_step,
			progress, steps, started_by, started_at, completed_at, updated_at, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		inst.ID, inst.TemplateID, inst.TemplateName, inst.PatientID, inst.Status, nullable(inst.CurrentStep),
		inst.Progress, inst.Steps, inst.StartedBy, inst.StartedAt, inst.CompletedAt, inst.UpdatedAt, inst.Version)
	return err
}

func (r *instanceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Instance, error) {
	return r.scanInstance(r.conn(ctx).QueryRow(ctx, `SELECT `+instanceCols+` FROM workflow_instance WHERE id = $1`, id))
}

func (r *instanceRepoPG) Update(ctx context.Context, inst *Instance) error {
	var version int
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE workflow_instance SET status=$2, current_step=$3, progress=$4, steps=$5,
			completed_at=$6, updated_at=$7, version = version + 1
		WHERE id = $1 AND version = $8
		RETURNING version`,
		inst.ID, inst.Status, nullable(inst.CurrentStep), inst.Progress, inst.Steps,
		inst.CompletedAt, inst.UpdatedAt, inst.Version).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM workflow_instance WHERE id = $1)`, inst.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	if err != nil {
		return err
	}
	inst.Version = version
	return nil
}

func (r *instanceRepoPG) list(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*Instance, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM workflow_instance`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(args)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+instanceCols+` FROM workflow_instance`+where+
		` ORDER BY started_at DESC LIMIT $`+strconv.Itoa(n+1)+` OFFSET $`+strconv.Itoa(n+2), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Instance
	for rows.Next() {
		inst, err := r.scanInstance(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, inst)
	}
	return items, total, rows.Err()
}

func (r *instanceRepoPG) List(ctx context.Context, status Status, limit, offset int) ([]*Instance, int, error) {
	if status == "" {
		return r.list(ctx, "", nil, limit, offset)
	}
	return r.list(ctx, ` WHERE status = $1`, []interface{}{status}, limit, offset)
}

func (r *instanceRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*Instance, int, error) {
	if status == "" {
		return r.list(ctx, ` WHERE patient_id = $1`, []interface{}{patientID}, limit, offset)
	}
	return r.list(ctx, ` WHERE patient_id = $1 AND status = $2`, []interface{}{patientID, status}, limit, offset)
}

// -- Comments --

func (r *instanceRepoPG) AddComment(ctx context.Context, cm *Comment) error {
	if cm.ID == uuid.Nil {
		cm.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO workflow_comment (id, instance_id, step_id, author_id, body)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at`,
		cm.ID, cm.InstanceID, nullable(cm.StepID), cm.AuthorID, cm.Body).Scan(&cm.CreatedAt)
}

func (r *instanceRepoPG) ListComments(ctx context.Context, instanceID uuid.UUID) ([]*Comment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, instance_id, COALESCE(step_id, ''), author_id, body, created_at
		FROM workflow_comment WHERE instance_id = $1 ORDER BY created_at`, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Comment
	for rows.Next() {
		var cm Comment
		if err := rows.Scan(&cm.ID, &cm.InstanceID, &cm.StepID, &cm.AuthorID, &cm.Body, &cm.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &cm)
	}
	return items, rows.Err()
}
