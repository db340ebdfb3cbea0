package tumorboard

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oncodash/oncodash/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const meetingCols = `id, title, scheduled_at, duration_minutes, COALESCE(location, ''),
	COALESCE(virtual_link, ''), status, attendees, COALESCE(created_by, ''), created_at, updated_at`

const caseCols = `c.id, c.meeting_id, c.patient_id, COALESCE(c.presenter_id, ''), c.clinical_question,
	COALESCE(c.summary, ''), COALESCE(c.recommendation, ''), COALESCE(c.decision, ''), c.status,
	c.created_at, c.updated_at`

func (r *repoPG) scanMeeting(row pgx.Row) (*Meeting, error) {
	var m Meeting
	err := row.Scan(&m.ID, &m.Title, &m.ScheduledAt, &m.DurationMinutes, &m.Location,
		&m.VirtualLink, &m.Status, &m.Attendees, &m.CreatedBy, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &m, err
}

func scanCase(row pgx.Row, dest ...any) (*Case, error) {
	var c Case
	targets := append([]any{&c.ID, &c.MeetingID, &c.PatientID, &c.PresenterID, &c.ClinicalQuestion,
		&c.Summary, &c.Recommendation, &c.Decision, &c.Status, &c.CreatedAt, &c.UpdatedAt}, dest...)
	err := row.Scan(targets...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCaseNotFound
	}
	return &c, err
}

func (r *repoPG) Create(ctx context.Context, m *Meeting) error {
	m.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO tumor_board_meeting (id, title, scheduled_at, duration_minutes, location, virtual_link,
			status, attendees, created_by)
		VALUES ($1,$2,$3,$4,NULLIF($5,''),NULLIF($6,''),$7,$8,NULLIF($9,''))
		RETURNING created_at, updated_at`,
		m.ID, m.Title, m.ScheduledAt, m.DurationMinutes, m.Location, m.VirtualLink,
		m.Status, m.Attendees, m.CreatedBy).Scan(&m.CreatedAt, &m.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Meeting, error) {
	return r.scanMeeting(r.conn(ctx).QueryRow(ctx, `SELECT `+meetingCols+` FROM tumor_board_meeting WHERE id = $1`, id))
}

func (r *repoPG) UpdateStatus(ctx context.Context, m *Meeting) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE tumor_board_meeting SET status = $2, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`, m.ID, m.Status).Scan(&m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *repoPG) queryMeetings(ctx context.Context, sql string, args ...any) ([]*Meeting, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Meeting
	for rows.Next() {
		m, err := r.scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Meeting, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM tumor_board_meeting`).Scan(&total); err != nil {
		return nil, 0, err
	}
	items, err := r.queryMeetings(ctx, `SELECT `+meetingCols+` FROM tumor_board_meeting
		ORDER BY scheduled_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	return items, total, err
}

func (r *repoPG) ListUpcoming(ctx context.Context, from time.Time, limit int) ([]*Meeting, error) {
	return r.queryMeetings(ctx, `SELECT `+meetingCols+` FROM tumor_board_meeting
		WHERE scheduled_at >= $1 AND status = 'scheduled'
		ORDER BY scheduled_at ASC LIMIT $2`, from, limit)
}

func (r *repoPG) AddCase(ctx context.Context, c *Case) error {
	c.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO tumor_board_case (id, meeting_id, patient_id, presenter_id, clinical_question, summary, status)
		VALUES ($1,$2,$3,NULLIF($4,''),$5,NULLIF($6,''),$7)
		RETURNING created_at, updated_at`,
		c.ID, c.MeetingID, c.PatientID, c.PresenterID, c.ClinicalQuestion, c.Summary, c.Status,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (r *repoPG) GetCase(ctx context.Context, id uuid.UUID) (*Case, error) {
	return scanCase(r.conn(ctx).QueryRow(ctx, `SELECT `+caseCols+` FROM tumor_board_case c WHERE c.id = $1`, id))
}

func (r *repoPG) UpdateCase(ctx context.Context, c *Case) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE tumor_board_case SET recommendation = NULLIF($2,''), decision = NULLIF($3,''), status = $4,
			updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`,
		c.ID, c.Recommendation, c.Decision, c.Status).Scan(&c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrCaseNotFound
	}
	return err
}

func (r *repoPG) ListCases(ctx context.Context, meetingID uuid.UUID) ([]Case, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+caseCols+` FROM tumor_board_case c
		WHERE c.meeting_id = $1 ORDER BY c.created_at`, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Case{}
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *c)
	}
	return items, rows.Err()
}

func (r *repoPG) UpcomingCasesForPatient(ctx context.Context, patientID uuid.UUID, from time.Time) ([]PatientCase, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+caseCols+`, m.title, m.scheduled_at
		FROM tumor_board_case c JOIN tumor_board_meeting m ON m.id = c.meeting_id
		WHERE c.patient_id = $1 AND m.scheduled_at >= $2 AND m.status = 'scheduled'
		ORDER BY m.scheduled_at ASC`, patientID, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []PatientCase{}
	for rows.Next() {
		var pc PatientCase
		c, err := scanCase(rows, &pc.MeetingTitle, &pc.ScheduledAt)
		if err != nil {
			return nil, err
		}
		pc.Case = *c
		items = append(items, pc)
	}
	return items, rows.Err()
}
