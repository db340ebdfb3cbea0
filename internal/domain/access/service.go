package access

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oncodash/oncodash/internal/platform/auth"
	"github.com/oncodash/oncodash/internal/platform/db"
)

// Provisioner prepares storage for a new site, typically its schema.
type Provisioner func(ctx context.Context, slug string) error

var grantableRoles = map[string]bool{
	auth.RoleAdmin:       true,
	auth.RoleOncologist:  true,
	auth.RoleNurse:       true,
	auth.RolePharmacist:  true,
	auth.RoleCoordinator: true,
	auth.RoleViewer:      true,
}

type Service struct {
	sites     SiteRepository
	grants    GrantRepository
	provision Provisioner
}

func NewService(sites SiteRepository, grants GrantRepository, provision Provisioner) *Service {
	return &Service{sites: sites, grants: grants, provision: provision}
}

// CreateSite registers the site and provisions its storage. Provisioning
// is idempotent, so a retry after a partial failure is safe.
func (s *Service) CreateSite(ctx context.Context, site *Site) error {
	site.Slug = strings.ToLower(strings.TrimSpace(site.Slug))
	site.Name = strings.TrimSpace(site.Name)
	if !db.ValidSiteID(site.Slug) {
		return ErrInvalidSlug
	}
	if site.Name == "" {
		site.Name = site.Slug
	}
	if s.provision != nil {
		if err := s.provision(ctx, site.Slug); err != nil {
			return fmt.Errorf("provision site %s: %w", site.Slug, err)
		}
	}
	return s.sites.Create(ctx, site)
}

func (s *Service) GetSite(ctx context.Context, slug string) (*Site, error) {
	return s.sites.Get(ctx, slug)
}

func (s *Service) ListSites(ctx context.Context) ([]*Site, error) {
	return s.sites.List(ctx)
}

func (s *Service) Grant(ctx context.Context, g *Grant) error {
	g.UserID = strings.TrimSpace(g.UserID)
	if g.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if !grantableRoles[g.Role] {
		return fmt.Errorf("%w: %q", ErrUnknownRole, g.Role)
	}
	if _, err := s.sites.Get(ctx, g.SiteSlug); err != nil {
		return err
	}
	if g.GrantedBy == "" {
		g.GrantedBy = auth.UserIDFromContext(ctx)
	}
	return s.grants.Upsert(ctx, g)
}

func (s *Service) Revoke(ctx context.Context, userID, siteSlug string) error {
	return s.grants.Delete(ctx, userID, siteSlug)
}

func (s *Service) ListGrants(ctx context.Context, siteSlug string) ([]*Grant, error) {
	if _, err := s.sites.Get(ctx, siteSlug); err != nil {
		return nil, err
	}
	return s.grants.ListBySite(ctx, siteSlug)
}

func (s *Service) UserGrants(ctx context.Context, userID string) ([]*Grant, error) {
	return s.grants.ListByUser(ctx, userID)
}

// Authorize reports whether the user may work in site. Admins may work
// anywhere, as may users whose token lists the site; anyone else needs a
// stored grant.
func (s *Service) Authorize(ctx context.Context, userID, site string) error {
	if auth.HasRole(ctx, auth.RoleAdmin) {
		return nil
	}
	for _, sid := range auth.SitesFromContext(ctx) {
		if sid == site {
			return nil
		}
	}
	if userID == "" {
		return ErrNoSiteAccess
	}
	if _, err := s.grants.Get(ctx, userID, site); err != nil {
		if errors.Is(err, ErrGrantNotFound) {
			return ErrNoSiteAccess
		}
		return err
	}
	return nil
}
