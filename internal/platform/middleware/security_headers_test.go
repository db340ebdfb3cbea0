package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestSecurityHeaders(t *testing.T) {
	tests := []struct {
		name    string
		handler echo.HandlerFunc
		wantErr int
	}{
		{"success", func(c echo.Context) error { return c.String(http.StatusOK, "ok") }, 0},
		{"handler error", func(c echo.Context) error { return echo.NewHTTPError(http.StatusNotFound, "patient not found") }, http.StatusNotFound},
	}

	expected := map[string]string{
		"X-Content-Type-Options":    "nosniff",
		"X-Frame-Options":           "DENY",
		"X-XSS-Protection":          "0",
		"Content-Security-Policy":   "default-src 'none'; frame-ancestors 'none'",
		"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
		"Referrer-Policy":           "no-referrer",
		"Permissions-Policy":        "camera=(), microphone=(), geolocation=()",
		"Cache-Control":             "no-store",
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/abc", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := SecurityHeaders(true)(tt.handler)(c)
			if tt.wantErr == 0 && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != 0 {
				httpErr, ok := err.(*echo.HTTPError)
				if !ok || httpErr.Code != tt.wantErr {
					t.Fatalf("expected HTTP %d, got %v", tt.wantErr, err)
				}
			}

			for header, want := range expected {
				if got := rec.Header().Get(header); got != want {
					t.Errorf("header %s: got %q, want %q", header, got, want)
				}
			}
		})
	}
}

func TestSecurityHeaders_NoHSTSInDevelopment(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)

	if err := SecurityHeaders(false)(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c); err != nil {
		t.Fatal(err)
	}
	if got := rec.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("unexpected HSTS header %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
}
