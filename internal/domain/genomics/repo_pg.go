package genomics

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oncodash/oncodash/internal/platform/db"
)

type reportRepoPG struct{ pool *pgxpool.Pool }

func NewReportRepoPG(pool *pgxpool.Pool) ReportRepository {
	return &reportRepoPG{pool: pool}
}

func (r *reportRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const reportCols = `id, patient_id, COALESCE(lab_name, ''), COALESCE(test_name, ''), COALESCE(specimen, ''),
	tumor_purity, tmb, COALESCE(msi_status, ''), report_date, variants, annotations, scores, created_at`

func (r *reportRepoPG) scanReport(row pgx.Row) (*Report, error) {
	var rp Report
	err := row.Scan(&rp.ID, &rp.PatientID, &rp.LabName, &rp.TestName, &rp.Specimen,
		&rp.TumorPurity, &rp.TMB, &rp.MSIStatus, &rp.ReportDate, &rp.Variants, &rp.Annotations, &rp.Scores, &rp.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &rp, err
}

func (r *reportRepoPG) Create(ctx context.Context, rp *Report) error {
	if rp.ID == uuid.Nil {
		rp.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO ngs_report (id, patient_id, lab_name, test_name, specimen, tumor_purity, tmb, msi_status,
			report_date, variants, annotations, scores)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO NOTHING
		RETURNING created_at`,
		rp.ID, rp.PatientID, rp.LabName, rp.TestName, rp.Specimen, rp.TumorPurity, rp.TMB, rp.MSIStatus,
		rp.ReportDate, rp.Variants, rp.Annotations, rp.Scores).Scan(&rp.CreatedAt)
}

func (r *reportRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Report, error) {
	return r.scanReport(r.conn(ctx).QueryRow(ctx, `SELECT `+reportCols+` FROM ngs_report WHERE id = $1`, id))
}

func (r *reportRepoPG) LatestByPatient(ctx context.Context, patientID uuid.UUID) (*Report, error) {
	return r.scanReport(r.conn(ctx).QueryRow(ctx, `SELECT `+reportCols+` FROM ngs_report
		WHERE patient_id = $1 ORDER BY report_date DESC, created_at DESC LIMIT 1`, patientID))
}

func (r *reportRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Report, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM ngs_report WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+reportCols+` FROM ngs_report
		WHERE patient_id = $1 ORDER BY report_date DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Report
	for rows.Next() {
		rp, err := r.scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rp)
	}
	return items, total, rows.Err()
}
