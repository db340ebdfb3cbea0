package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireRole allows the request when the caller has any of roles. Admins
// always pass.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			for _, required := range roles {
				if HasRole(ctx, required) {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// Clinical role groups used when registering routes.
var (
	ReadRoles     = []string{RoleOncologist, RoleNurse, RolePharmacist, RoleCoordinator, RoleViewer}
	ClinicalRoles = []string{RoleOncologist, RoleNurse, RolePharmacist, RoleCoordinator}
)
