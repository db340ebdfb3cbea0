package drug

import "context"

type Repository interface {
	Search(ctx context.Context, query, class string, limit, offset int) ([]*Drug, int, error)
	Get(ctx context.Context, rxcui string) (*Drug, error)
	// GetMany returns the drugs found, in the order requested. Unknown
	// identifiers are skipped.
	GetMany(ctx context.Context, rxcuis []string) ([]*Drug, error)
	Upsert(ctx context.Context, d *Drug) error
}

// ComparisonRepository stores one ordered rxcui list per user.
type ComparisonRepository interface {
	Get(ctx context.Context, userID string) ([]string, error)
	Save(ctx context.Context, userID string, rxcuis []string) error
}

type PopularityRepository interface {
	Increment(ctx context.Context, rxcui string) error
	Top(ctx context.Context, n int) ([]Popularity, error)
}
