package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/oncodash/oncodash/internal/config"
	"github.com/oncodash/oncodash/internal/platform/auth"
	"github.com/oncodash/oncodash/internal/platform/db"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	want := map[string]bool{"serve": false, "migrate": false, "site": false, "seed": false, "rules": false}
	for _, c := range rootCmd().Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestRulesValidate(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(good, []byte("opioid:\n  mme_limits: {caution: 40, high: 80}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := runCmd(t, "rules", "validate", good)
	if err != nil {
		t.Fatalf("validate good file: %v", err)
	}
	if !strings.Contains(out, "ok") {
		t.Errorf("output = %q, want ok", out)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("opioid:\n  mme_limits: {caution: 90, high: 80}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := runCmd(t, "rules", "validate", bad); err == nil {
		t.Error("expected error for invalid MME limits")
	}

	if _, err := runCmd(t, "rules", "validate"); err == nil {
		t.Error("expected error without a file argument")
	}
}

func TestNewLogger_JSONOutsideDevelopment(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("production", &buf)
	logger.Info().Str("k", "v").Msg("hello")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("expected JSON line, got %q", buf.String())
	}

	buf.Reset()
	logger = newLogger("development", &buf)
	logger.Info().Msg("hello")
	if strings.HasPrefix(buf.String(), "{") {
		t.Errorf("expected console output, got %q", buf.String())
	}
}

func TestSiteOnly(t *testing.T) {
	e := echo.New()
	var got string
	h := siteOnly("main")(func(c echo.Context) error {
		got = db.SiteFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set(db.SiteHeader, "north")
	if err := h(e.NewContext(req, httptest.NewRecorder())); err != nil {
		t.Fatal(err)
	}
	if got != "north" {
		t.Errorf("site = %q, want north", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/ws", nil)
	if err := h(e.NewContext(req, httptest.NewRecorder())); err != nil {
		t.Fatal(err)
	}
	if got != "main" {
		t.Errorf("site = %q, want default main", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/ws?site=Bad-Site", nil)
	err := h(e.NewContext(req, httptest.NewRecorder()))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestAuthMiddleware_DevAllowsAnonymous(t *testing.T) {
	e := echo.New()
	mw := authMiddleware(&config.Config{Env: "development"})
	var user string
	h := mw(func(c echo.Context) error {
		user = auth.UserIDFromContext(c.Request().Context())
		return nil
	})
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil), httptest.NewRecorder())
	if err := h(c); err != nil {
		t.Fatal(err)
	}
	if user != auth.DevUserID {
		t.Errorf("user = %q, want dev user", user)
	}
}

func TestAuthMiddleware_ProductionRequiresToken(t *testing.T) {
	e := echo.New()
	mw := authMiddleware(&config.Config{Env: "production", SupabaseJWTSecret: strings.Repeat("s", 32)})
	h := mw(func(c echo.Context) error { return nil })

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil), httptest.NewRecorder())
	err := h(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	c = e.NewContext(req, httptest.NewRecorder())
	if err := h(c); err != nil {
		t.Errorf("public path rejected: %v", err)
	}
}
