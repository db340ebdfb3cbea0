package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestParseLimit(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"1M", 1 << 20},
		{"10MB", 10 << 20},
		{"512K", 512 << 10},
		{"1G", 1 << 30},
		{"1024", 1024},
		{"", 1 << 20},
		{"invalid", 1 << 20},
		{"-5", 1 << 20},
	}

	for _, tt := range tests {
		if got := parseLimit(tt.input); got != tt.want {
			t.Errorf("parseLimit(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func postBody(path string, body []byte) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return e.NewContext(req, httptest.NewRecorder())
}

func readAll(c echo.Context) error {
	_, err := io.ReadAll(c.Request().Body)
	return err
}

func TestBodyLimit_AllowsSmallBody(t *testing.T) {
	c := postBody("/api/v1/patients", []byte(`{"mrn":"MRN-1"}`))
	if err := BodyLimit("1K", "1M")(readAll)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBodyLimit_RejectsByContentLength(t *testing.T) {
	c := postBody("/api/v1/patients", bytes.Repeat([]byte("a"), 2048))

	called := false
	err := BodyLimit("1K", "1M")(func(c echo.Context) error {
		called = true
		return nil
	})(c)

	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %v", err)
	}
	if called {
		t.Error("handler should not run")
	}
}

func TestBodyLimit_BatchPathGetsLargerLimit(t *testing.T) {
	c := postBody("/api/analytics", bytes.Repeat([]byte("a"), 4096))
	if err := BodyLimit("1K", "8K")(readAll)(c); err != nil {
		t.Fatalf("analytics batch should use batch limit: %v", err)
	}
}

func TestBodyLimit_EnforcesLimitDuringRead(t *testing.T) {
	c := postBody("/api/v1/patients", bytes.Repeat([]byte("a"), 2048))
	c.Request().ContentLength = -1

	err := BodyLimit("1K", "1M")(readAll)(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 while reading, got %v", err)
	}
}

func TestBodyLimit_SkipsEmptyBody(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/drugs", nil), httptest.NewRecorder())
	if err := BodyLimit("1K", "1M")(func(c echo.Context) error { return nil })(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
