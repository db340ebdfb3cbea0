package access

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Site and grant rows live in the shared schema. These repositories use
// the pool directly because site resolution happens before a site-scoped
// connection exists.

const uniqueViolation = "23505"

type siteRepoPG struct{ pool *pgxpool.Pool }

func NewSiteRepoPG(pool *pgxpool.Pool) SiteRepository {
	return &siteRepoPG{pool: pool}
}

func (r *siteRepoPG) Create(ctx context.Context, s *Site) error {
	err := r.pool.QueryRow(ctx, `INSERT INTO shared.site (slug, name) VALUES ($1, $2) RETURNING created_at`,
		s.Slug, s.Name).Scan(&s.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrSiteExists
	}
	return err
}

func (r *siteRepoPG) Get(ctx context.Context, slug string) (*Site, error) {
	var s Site
	err := r.pool.QueryRow(ctx, `SELECT slug, name, created_at FROM shared.site WHERE slug = $1`, slug).
		Scan(&s.Slug, &s.Name, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSiteNotFound
	}
	return &s, err
}

func (r *siteRepoPG) List(ctx context.Context) ([]*Site, error) {
	rows, err := r.pool.Query(ctx, `SELECT slug, name, created_at FROM shared.site ORDER BY slug`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*Site{}
	for rows.Next() {
		var s Site
		if err := rows.Scan(&s.Slug, &s.Name, &s.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &s)
	}
	return items, rows.Err()
}

type grantRepoPG struct{ pool *pgxpool.Pool }

func NewGrantRepoPG(pool *pgxpool.Pool) GrantRepository {
	return &grantRepoPG{pool: pool}
}

const grantCols = `user_id, site_slug, role, COALESCE(granted_by, ''), granted_at`

func scanGrant(row pgx.Row) (*Grant, error) {
	var g Grant
	err := row.Scan(&g.UserID, &g.SiteSlug, &g.Role, &g.GrantedBy, &g.GrantedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrGrantNotFound
	}
	return &g, err
}

func (r *grantRepoPG) Upsert(ctx context.Context, g *Grant) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO shared.site_access (user_id, site_slug, role, granted_by)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		ON CONFLICT (user_id, site_slug) DO UPDATE SET role = EXCLUDED.role,
			granted_by = EXCLUDED.granted_by, granted_at = NOW()
		RETURNING granted_at`,
		g.UserID, g.SiteSlug, g.Role, g.GrantedBy).Scan(&g.GrantedAt)
}

func (r *grantRepoPG) Delete(ctx context.Context, userID, siteSlug string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM shared.site_access WHERE user_id = $1 AND site_slug = $2`, userID, siteSlug)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrGrantNotFound
	}
	return nil
}

func (r *grantRepoPG) Get(ctx context.Context, userID, siteSlug string) (*Grant, error) {
	return scanGrant(r.pool.QueryRow(ctx, `SELECT `+grantCols+` FROM shared.site_access
		WHERE user_id = $1 AND site_slug = $2`, userID, siteSlug))
}

func (r *grantRepoPG) list(ctx context.Context, sql string, arg string) ([]*Grant, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*Grant{}
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, g)
	}
	return items, rows.Err()
}

func (r *grantRepoPG) ListBySite(ctx context.Context, siteSlug string) ([]*Grant, error) {
	return r.list(ctx, `SELECT `+grantCols+` FROM shared.site_access WHERE site_slug = $1 ORDER BY user_id`, siteSlug)
}

func (r *grantRepoPG) ListByUser(ctx context.Context, userID string) ([]*Grant, error) {
	return r.list(ctx, `SELECT `+grantCols+` FROM shared.site_access WHERE user_id = $1 ORDER BY site_slug`, userID)
}
