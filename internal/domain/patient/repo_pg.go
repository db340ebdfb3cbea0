package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oncodash/oncodash/internal/platform/db"
)

// =========== Patient Repository ===========

type profileRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &profileRepoPG{pool: pool}
}

func (r *profileRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const profileCols = `id, mrn, demographics, conditions, medications, allergies,
	lab_values, treatment_history, version, created_at, updated_at`

func (r *profileRepoPG) scan(ctx context.Context, row pgx.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.MRN, &p.Demographics, &p.Conditions, &p.Medications, &p.Allergies,
		&p.LabValues, &p.TreatmentHistory, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.SiteID = db.SiteFromContext(ctx)
	return &p, nil
}

func (r *profileRepoPG) Create(ctx context.Context, p *Profile) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Version = 1
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (id, mrn, demographics, conditions, medications, allergies,
			lab_values, treatment_history, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		p.ID, p.MRN, p.Demographics, nonNil(p.Conditions), nonNil(p.Medications), nonNil(p.Allergies),
		nonNil(p.LabValues), nonNil(p.TreatmentHistory), p.Version).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	p.SiteID = db.SiteFromContext(ctx)
	return nil
}

func (r *profileRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return r.scan(ctx, r.conn(ctx).QueryRow(ctx, `SELECT `+profileCols+` FROM patient WHERE id = $1`, id))
}

func (r *profileRepoPG) GetByMRN(ctx context.Context, mrn string) (*Profile, error) {
	return r.scan(ctx, r.conn(ctx).QueryRow(ctx, `SELECT `+profileCols+` FROM patient WHERE mrn = $1`, mrn))
}

func (r *profileRepoPG) Save(ctx context.Context, p *Profile) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patient SET mrn=$2, demographics=$3, conditions=$4, medications=$5, allergies=$6,
			lab_values=$7, treatment_history=$8, version=version+1, updated_at=NOW()
		WHERE id = $1
		RETURNING version, updated_at`,
		p.ID, p.MRN, p.Demographics, nonNil(p.Conditions), nonNil(p.Medications), nonNil(p.Allergies),
		nonNil(p.LabValues), nonNil(p.TreatmentHistory)).Scan(&p.Version, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *profileRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *profileRepoPG) List(ctx context.Context, limit, offset int) ([]*Profile, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+profileCols+` FROM patient
		ORDER BY demographics->>'last_name', demographics->>'first_name', id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Profile
	for rows.Next() {
		p, err := r.scan(ctx, rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

// nonNil keeps JSONB columns as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// =========== Selection Repository ===========

type selectionRepoPG struct{ pool *pgxpool.Pool }

func NewSelectionRepoPG(pool *pgxpool.Pool) SelectionRepository {
	return &selectionRepoPG{pool: pool}
}

func (r *selectionRepoPG) Get(ctx context.Context, userID, siteID string) (*Selection, error) {
	sel := Selection{UserID: userID, SiteID: siteID}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT patient_id, recent, updated_at FROM shared.patient_selection
		WHERE user_id = $1 AND site_slug = $2`, userID, siteID).
		Scan(&sel.PatientID, &sel.Recent, &sel.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		sel.Recent = []uuid.UUID{}
		return &sel, nil
	}
	if err != nil {
		return nil, err
	}
	return &sel, nil
}

func (r *selectionRepoPG) Save(ctx context.Context, sel *Selection) error {
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO shared.patient_selection (user_id, site_slug, patient_id, recent, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id, site_slug)
		DO UPDATE SET patient_id = EXCLUDED.patient_id, recent = EXCLUDED.recent, updated_at = NOW()
		RETURNING updated_at`,
		sel.UserID, sel.SiteID, sel.PatientID, nonNil(sel.Recent)).Scan(&sel.UpdatedAt)
}
