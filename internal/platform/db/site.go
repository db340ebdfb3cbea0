package db

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	SiteIDKey contextKey = "site_id"
	DBConnKey contextKey = "db_conn"

	SiteHeader = "X-Site-ID"
	// SharedSchema holds catalog data visible to every site.
	SharedSchema = "shared"
)

var (
	siteIDPattern = regexp.MustCompile(`^[a-z0-9_]{1,48}$`)
	schemaPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)
)

// Queryable is satisfied by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx.
type Queryable interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ValidSiteID reports whether id can be used as a site slug.
func ValidSiteID(id string) bool {
	return siteIDPattern.MatchString(id)
}

// SiteSchema returns the Postgres schema holding a site's patient data.
func SiteSchema(siteID string) string {
	return "site_" + siteID
}

// SiteMiddleware resolves the active site and binds a connection whose
// search_path points at that site's schema.
func SiteMiddleware(pool *pgxpool.Pool, defaultSite string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			siteID := ExtractSiteID(c, defaultSite)
			if !ValidSiteID(siteID) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid site identifier")
			}

			ctx, release, err := BindSite(c.Request().Context(), pool, siteID)
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
			}
			defer release()

			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("site_id", siteID)

			return next(c)
		}
	}
}

// BindSite acquires a connection whose search_path points at the site's
// schema and stores it on ctx. release resets the search_path and returns
// the connection to the pool.
func BindSite(ctx context.Context, pool *pgxpool.Pool, siteID string) (context.Context, func(), error) {
	if !ValidSiteID(siteID) {
		return ctx, nil, fmt.Errorf("invalid site identifier: %s", siteID)
	}
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return ctx, nil, fmt.Errorf("acquire connection: %w", err)
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s, %s, public", SiteSchema(siteID), SharedSchema)); err != nil {
		conn.Release()
		return ctx, nil, fmt.Errorf("set search_path for %s: %w", siteID, err)
	}
	release := func() {
		if _, err := conn.Exec(context.WithoutCancel(ctx), "RESET search_path"); err != nil {
			// Never hand a site-scoped connection to another request.
			conn.Conn().Close(context.WithoutCancel(ctx))
		}
		conn.Release()
	}
	ctx = WithSite(ctx, siteID)
	ctx = context.WithValue(ctx, DBConnKey, conn)
	return ctx, release, nil
}

// ForkSite gives concurrent work its own site-scoped connection. A pgx
// connection runs one query at a time, so goroutines fanned out from a
// request must not share the request-bound one. Without a bound
// connection on ctx it returns ctx unchanged and a no-op release.
func ForkSite(ctx context.Context, pool *pgxpool.Pool) (context.Context, func(), error) {
	if ConnFromContext(ctx) == nil || pool == nil {
		return ctx, func() {}, nil
	}
	return BindSite(ctx, pool, SiteFromContext(ctx))
}

// ExtractSiteID picks the site from the token claim, the X-Site-ID header,
// the ?site query parameter, then the default, in that order.
func ExtractSiteID(c echo.Context, defaultSite string) string {
	if sid, ok := c.Get("jwt_site_id").(string); ok && sid != "" {
		return sid
	}
	if sid := c.Request().Header.Get(SiteHeader); sid != "" {
		return sid
	}
	if sid := c.QueryParam("site"); sid != "" {
		return sid
	}
	return defaultSite
}

// WithSite stores the site id on ctx.
func WithSite(ctx context.Context, siteID string) context.Context {
	return context.WithValue(ctx, SiteIDKey, siteID)
}

// ConnFromContext retrieves the site-scoped database connection from context.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

// SiteFromContext retrieves the site ID from context.
func SiteFromContext(ctx context.Context) string {
	sid, _ := ctx.Value(SiteIDKey).(string)
	return sid
}

// Conn returns the request-bound connection when present, else the pool.
func Conn(ctx context.Context, pool *pgxpool.Pool) Queryable {
	if c := ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

// CreateSiteSchema creates the schema for a site and applies the site
// migrations to it. A nil migrations tree skips the migration step.
func CreateSiteSchema(ctx context.Context, pool *pgxpool.Pool, siteID string, migrations fs.FS) error {
	if !ValidSiteID(siteID) {
		return fmt.Errorf("invalid site identifier: %s", siteID)
	}

	schema := SiteSchema(siteID)
	if _, err := pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)); err != nil {
		return fmt.Errorf("create schema %s: %w", schema, err)
	}

	if migrations != nil {
		if _, err := NewMigrator(pool, migrations).Up(ctx, schema); err != nil {
			return fmt.Errorf("run migrations for %s: %w", schema, err)
		}
	}
	return nil
}
