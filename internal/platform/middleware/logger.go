package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Logger writes one structured line per request. Site and user are filled
// in by the site and auth middleware when they ran.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			// Handlers downstream log through zerolog.Ctx.
			c.SetRequest(req.WithContext(logger.WithContext(req.Context())))

			err := next(c)
			if err != nil {
				// Let echo's error handler set the status before it is logged.
				c.Error(err)
			}

			rid, _ := c.Get("request_id").(string)
			site, _ := c.Get("site_id").(string)
			user, _ := c.Get("user_id").(string)

			status := c.Response().Status
			var evt *zerolog.Event
			switch {
			case err != nil && status >= 500:
				evt = logger.Error().Err(err)
			case err != nil || status >= 400:
				evt = logger.Warn()
			default:
				evt = logger.Info()
			}

			evt.
				Str("request_id", rid).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Str("site", site).
				Str("user", user).
				Msg("request")

			return nil
		}
	}
}
