package db

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newSiteContext(target string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestExtractSiteID_FromHeader(t *testing.T) {
	c := newSiteContext("/")
	c.Request().Header.Set(SiteHeader, "north_clinic")

	if sid := ExtractSiteID(c, "main"); sid != "north_clinic" {
		t.Errorf("expected north_clinic, got %s", sid)
	}
}

func TestExtractSiteID_FromQuery(t *testing.T) {
	c := newSiteContext("/?site=infusion_center")

	if sid := ExtractSiteID(c, "main"); sid != "infusion_center" {
		t.Errorf("expected infusion_center, got %s", sid)
	}
}

func TestExtractSiteID_ClaimWins(t *testing.T) {
	c := newSiteContext("/?site=query_site")
	c.Request().Header.Set(SiteHeader, "header_site")
	c.Set("jwt_site_id", "claim_site")

	if sid := ExtractSiteID(c, "main"); sid != "claim_site" {
		t.Errorf("expected claim_site, got %s", sid)
	}
}

func TestExtractSiteID_Default(t *testing.T) {
	if sid := ExtractSiteID(newSiteContext("/"), "main"); sid != "main" {
		t.Errorf("expected main, got %s", sid)
	}
}

func TestValidSiteID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"main", true},
		{"north_clinic_2", true},
		{"", false},
		{"North", false},
		{"a-b", false},
		{"x; DROP SCHEMA public", false},
	}
	for _, tt := range tests {
		if got := ValidSiteID(tt.id); got != tt.want {
			t.Errorf("ValidSiteID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestSiteSchema(t *testing.T) {
	if got := SiteSchema("main"); got != "site_main" {
		t.Errorf("SiteSchema(main) = %q", got)
	}
}

func TestSiteFromContext(t *testing.T) {
	ctx := WithSite(context.Background(), "main")
	if got := SiteFromContext(ctx); got != "main" {
		t.Errorf("expected main, got %q", got)
	}
	if got := SiteFromContext(context.Background()); got != "" {
		t.Errorf("expected empty site, got %q", got)
	}
	if ConnFromContext(context.Background()) != nil {
		t.Error("expected nil connection on bare context")
	}
}

func TestCreateSiteSchema_RejectsInvalidID(t *testing.T) {
	if err := CreateSiteSchema(context.Background(), nil, "Bad Site", nil); err == nil {
		t.Fatal("expected error for invalid site id")
	}
}

func TestBindSite_RejectsInvalidID(t *testing.T) {
	ctx := context.Background()
	got, release, err := BindSite(ctx, nil, "../public")
	if err == nil {
		t.Fatal("expected error for invalid site id")
	}
	if release != nil {
		t.Error("expected nil release on error")
	}
	if SiteFromContext(got) != "" {
		t.Error("site must not be set on error")
	}
}

func TestForkSite_UnboundContextPassesThrough(t *testing.T) {
	ctx := WithSite(context.Background(), "mercy")
	got, release, err := ForkSite(ctx, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != ctx {
		t.Error("expected the same context when no connection is bound")
	}
	release()
}
