package drug

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/oncodash/oncodash/internal/domain/patient"
)

// ProfileReader loads the patient a comparison is scored against.
type ProfileReader interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Profile, error)
}

type Service struct {
	drugs      Repository
	lists      ComparisonRepository
	popularity PopularityRepository
	patients   ProfileReader

	// serializes read-modify-write of comparison lists
	mu sync.Mutex
}

func NewService(drugs Repository, lists ComparisonRepository, popularity PopularityRepository, patients ProfileReader) *Service {
	return &Service{drugs: drugs, lists: lists, popularity: popularity, patients: patients}
}

func (s *Service) Search(ctx context.Context, query, class string, limit, offset int) ([]*Drug, int, error) {
	return s.drugs.Search(ctx, query, class, limit, offset)
}

func (s *Service) Get(ctx context.Context, rxcui string) (*Drug, error) {
	return s.drugs.Get(ctx, rxcui)
}

func (s *Service) GetEnhanced(ctx context.Context, rxcui string) (*Insights, error) {
	d, err := s.drugs.Get(ctx, rxcui)
	if err != nil {
		return nil, err
	}
	if d.Insights == nil {
		return nil, ErrNoInsights
	}
	return d.Insights, nil
}

func (s *Service) Upsert(ctx context.Context, d *Drug) error {
	if err := d.Validate(); err != nil {
		return err
	}
	return s.drugs.Upsert(ctx, d)
}

// -- Comparison list --

func (s *Service) ComparisonList(ctx context.Context, userID string) ([]string, error) {
	return s.lists.Get(ctx, userID)
}

// AddToComparison adds the drug once. Only the first add counts toward
// the drug's popularity.
func (s *Service) AddToComparison(ctx context.Context, userID, rxcui string) ([]string, error) {
	if _, err := s.drugs.Get(ctx, rxcui); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.lists.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	next, added := AddToList(list, rxcui)
	if !added {
		return list, nil
	}
	if err := s.lists.Save(ctx, userID, next); err != nil {
		return nil, fmt.Errorf("save comparison list: %w", err)
	}
	if err := s.popularity.Increment(ctx, rxcui); err != nil {
		return nil, fmt.Errorf("count popularity: %w", err)
	}
	return next, nil
}

func (s *Service) RemoveFromComparison(ctx context.Context, userID, rxcui string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.lists.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	next, removed := RemoveFromList(list, rxcui)
	if !removed {
		return list, nil
	}
	if err := s.lists.Save(ctx, userID, next); err != nil {
		return nil, fmt.Errorf("save comparison list: %w", err)
	}
	return next, nil
}

func (s *Service) ClearComparison(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lists.Save(ctx, userID, []string{})
}

// Compare resolves the user's list and scores each drug, against the
// patient when one is given.
func (s *Service) Compare(ctx context.Context, userID string, patientID *uuid.UUID) ([]Scored, error) {
	var p *patient.Profile
	if patientID != nil {
		var err error
		if p, err = s.patients.Get(ctx, *patientID); err != nil {
			return nil, err
		}
	}

	list, err := s.lists.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	drugs, err := s.drugs.GetMany(ctx, list)
	if err != nil {
		return nil, err
	}
	out := make([]Scored, 0, len(drugs))
	for _, d := range drugs {
		score, reasons := ComparisonScore(*d, p)
		out = append(out, Scored{Drug: *d, Score: score, Reasons: reasons})
	}
	return out, nil
}

func (s *Service) Popular(ctx context.Context, n int) ([]Popularity, error) {
	if n <= 0 {
		n = 10
	}
	return s.popularity.Top(ctx, n)
}

// Seed upserts the starter catalog.
func (s *Service) Seed(ctx context.Context) (int, error) {
	cat := Catalog()
	for i := range cat {
		if err := s.Upsert(ctx, &cat[i]); err != nil {
			return i, fmt.Errorf("seed %s: %w", cat[i].RxCUI, err)
		}
	}
	return len(cat), nil
}
