package patient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oncodash/oncodash/internal/platform/db"
	"github.com/oncodash/oncodash/internal/platform/realtime"
)

type Service struct {
	profiles   Repository
	selections SelectionRepository
	events     realtime.Publisher
}

func NewService(profiles Repository, selections SelectionRepository, events realtime.Publisher) *Service {
	if events == nil {
		events = realtime.NopPublisher{}
	}
	return &Service{profiles: profiles, selections: selections, events: events}
}

// -- Profiles --

func (s *Service) Create(ctx context.Context, p *Profile) error {
	p.MRN = strings.TrimSpace(p.MRN)
	if p.MRN == "" {
		return fmt.Errorf("mrn is required")
	}
	if p.Demographics.LastName == "" {
		return fmt.Errorf("demographics.last_name is required")
	}
	flagOpioids(p.Medications)
	return s.profiles.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return s.profiles.GetByID(ctx, id)
}

func (s *Service) GetByMRN(ctx context.Context, mrn string) (*Profile, error) {
	return s.profiles.GetByMRN(ctx, mrn)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Profile, int, error) {
	return s.profiles.List(ctx, limit, offset)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.profiles.Delete(ctx, id)
}

// Dispatch loads the profile, reduces action over it, persists the result
// and announces it on the patient's topic.
func (s *Service) Dispatch(ctx context.Context, id uuid.UUID, action Action) (*Profile, error) {
	current, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := Reduce(current, action)
	if err != nil {
		return nil, err
	}
	if err := s.profiles.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("save patient %s: %w", id, err)
	}

	evt, err := realtime.NewEvent(realtime.PatientUpdated, realtime.PatientTopic(id.String()), id.String(),
		map[string]interface{}{"action": action.Type, "version": next.Version})
	if err == nil {
		_ = s.events.Publish(ctx, evt)
	}
	return next, nil
}

// LatestLabValues returns the most recent value per lab code.
func (s *Service) LatestLabValues(ctx context.Context, id uuid.UUID) (map[string]float64, error) {
	p, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return LatestLabValues(p), nil
}

// Seed stores n generated demo profiles, skipping MRNs already present.
func (s *Service) Seed(ctx context.Context, seed int64, n int) (int, error) {
	created := 0
	for _, p := range Generate(seed, n) {
		if _, err := s.profiles.GetByMRN(ctx, p.MRN); err == nil {
			continue
		}
		if err := s.profiles.Create(ctx, p); err != nil {
			return created, fmt.Errorf("seed %s: %w", p.MRN, err)
		}
		created++
	}
	return created, nil
}

// -- Selection --

func (s *Service) Select(ctx context.Context, userID string, patientID uuid.UUID) (*Selection, error) {
	if _, err := s.profiles.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	current, err := s.selections.Get(ctx, userID, db.SiteFromContext(ctx))
	if err != nil {
		return nil, err
	}
	next := Select(*current, patientID)
	next.UpdatedAt = time.Now().UTC()
	if err := s.selections.Save(ctx, &next); err != nil {
		return nil, fmt.Errorf("save selection: %w", err)
	}
	return &next, nil
}

func (s *Service) Deselect(ctx context.Context, userID string, patientID uuid.UUID) (*Selection, error) {
	current, err := s.selections.Get(ctx, userID, db.SiteFromContext(ctx))
	if err != nil {
		return nil, err
	}
	next := Forget(*current, patientID)
	if err := s.selections.Save(ctx, &next); err != nil {
		return nil, fmt.Errorf("save selection: %w", err)
	}
	return &next, nil
}

// Selected returns the active patient, or nil when none is selected.
func (s *Service) Selected(ctx context.Context, userID string) (*Profile, error) {
	sel, err := s.selections.Get(ctx, userID, db.SiteFromContext(ctx))
	if err != nil {
		return nil, err
	}
	if sel.PatientID == nil {
		return nil, nil
	}
	return s.profiles.GetByID(ctx, *sel.PatientID)
}

func (s *Service) Recent(ctx context.Context, userID string) ([]uuid.UUID, error) {
	sel, err := s.selections.Get(ctx, userID, db.SiteFromContext(ctx))
	if err != nil {
		return nil, err
	}
	if sel.Recent == nil {
		return []uuid.UUID{}, nil
	}
	return sel.Recent, nil
}
