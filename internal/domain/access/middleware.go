package access

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/oncodash/oncodash/internal/platform/auth"
	"github.com/oncodash/oncodash/internal/platform/db"
)

// RequireSiteAccess rejects requests for a site the caller has no grant
// for. It runs after the JWT and site middleware.
func RequireSiteAccess(svc *Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			site := db.SiteFromContext(ctx)
			if site == "" {
				return next(c)
			}
			err := svc.Authorize(ctx, auth.UserIDFromContext(ctx), site)
			switch {
			case err == nil:
				return next(c)
			case errors.Is(err, ErrNoSiteAccess):
				return echo.NewHTTPError(http.StatusForbidden, "no access to site "+site)
			default:
				zerolog.Ctx(ctx).Error().Err(err).Str("site", site).Msg("site access check failed")
				return echo.NewHTTPError(http.StatusInternalServerError, "site access check failed")
			}
		}
	}
}
