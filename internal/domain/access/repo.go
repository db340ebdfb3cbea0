package access

import "context"

type SiteRepository interface {
	Create(ctx context.Context, s *Site) error
	Get(ctx context.Context, slug string) (*Site, error)
	List(ctx context.Context) ([]*Site, error)
}

type GrantRepository interface {
	// Upsert creates the grant or replaces the role of an existing one.
	Upsert(ctx context.Context, g *Grant) error
	Delete(ctx context.Context, userID, siteSlug string) error
	Get(ctx context.Context, userID, siteSlug string) (*Grant, error)
	ListBySite(ctx context.Context, siteSlug string) ([]*Grant, error)
	ListByUser(ctx context.Context, userID string) ([]*Grant, error)
}
