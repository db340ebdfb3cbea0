package genomics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oncodash/oncodash/internal/domain/patient"
	"github.com/oncodash/oncodash/internal/platform/realtime"
)

// PatientReader confirms a report's patient exists before it is stored.
type PatientReader interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Profile, error)
}

type Service struct {
	reports  ReportRepository
	patients PatientReader
	events   realtime.Publisher
}

func NewService(reports ReportRepository, patients PatientReader, events realtime.Publisher) *Service {
	if events == nil {
		events = realtime.NopPublisher{}
	}
	return &Service{reports: reports, patients: patients, events: events}
}

func (s *Service) Create(ctx context.Context, r *Report) error {
	if r.Variants == nil {
		r.Variants = []Variant{}
	}
	if r.Annotations == nil {
		r.Annotations = []Annotation{}
	}
	if r.Scores == nil {
		r.Scores = []Score{}
	}
	if err := r.Validate(); err != nil {
		return err
	}
	if s.patients != nil {
		if _, err := s.patients.Get(ctx, r.PatientID); err != nil {
			return err
		}
	}
	if err := s.reports.Create(ctx, r); err != nil {
		return fmt.Errorf("store report: %w", err)
	}

	pid := r.PatientID.String()
	evt, err := realtime.NewEvent(realtime.PatientUpdated, realtime.PatientTopic(pid), pid,
		map[string]interface{}{"ngs_report": r.ID.String()})
	if err == nil {
		_ = s.events.Publish(ctx, evt)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Report, error) {
	return s.reports.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Report, int, error) {
	return s.reports.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) Latest(ctx context.Context, patientID uuid.UUID) (*Report, error) {
	return s.reports.LatestByPatient(ctx, patientID)
}

func (s *Service) Interpret(ctx context.Context, id uuid.UUID, f Filter, key SortKey) ([]InterpretedVariant, error) {
	r, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return Interpret(r, f, key)
}

func (s *Service) Summarize(ctx context.Context, id uuid.UUID) (Summary, error) {
	r, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(r), nil
}

// LatestSummary summarizes the patient's most recent report.
func (s *Service) LatestSummary(ctx context.Context, patientID uuid.UUID) (*Report, Summary, error) {
	r, err := s.reports.LatestByPatient(ctx, patientID)
	if err != nil {
		return nil, Summary{}, err
	}
	return r, Summarize(r), nil
}

// GenerateMock stores a demo report for the patient. A seed of zero picks
// one from the clock.
func (s *Service) GenerateMock(ctx context.Context, patientID uuid.UUID, seed int64) (*Report, error) {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	r := GenerateReport(seed, patientID)
	if err := s.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}
