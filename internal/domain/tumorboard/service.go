package tumorboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oncodash/oncodash/internal/domain/patient"
	"github.com/oncodash/oncodash/internal/platform/auth"
	"github.com/oncodash/oncodash/internal/platform/realtime"
)

// PatientReader confirms a case's patient exists.
type PatientReader interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Profile, error)
}

type Service struct {
	repo     Repository
	patients PatientReader
	events   realtime.Publisher
	now      func() time.Time
}

func NewService(repo Repository, patients PatientReader, events realtime.Publisher) *Service {
	if events == nil {
		events = realtime.NopPublisher{}
	}
	return &Service{repo: repo, patients: patients, events: events, now: time.Now}
}

func (s *Service) publish(ctx context.Context, meetingID uuid.UUID, payload map[string]interface{}) {
	evt, err := realtime.NewEvent(realtime.TumorBoardUpdated, realtime.TumorBoardTopic, meetingID.String(), payload)
	if err == nil {
		_ = s.events.Publish(ctx, evt)
	}
}

func (s *Service) Schedule(ctx context.Context, m *Meeting) error {
	m.Title = strings.TrimSpace(m.Title)
	if m.Title == "" {
		return fmt.Errorf("title is required")
	}
	if !m.ScheduledAt.After(s.now()) {
		return ErrInPast
	}
	if m.DurationMinutes < 0 {
		return fmt.Errorf("duration_minutes must not be negative")
	}
	if m.DurationMinutes == 0 {
		m.DurationMinutes = DefaultDuration
	}
	if m.Attendees == nil {
		m.Attendees = []string{}
	}
	if m.CreatedBy == "" {
		m.CreatedBy = auth.UserIDFromContext(ctx)
	}
	m.Status = StatusScheduled
	if err := s.repo.Create(ctx, m); err != nil {
		return fmt.Errorf("create meeting: %w", err)
	}
	s.publish(ctx, m.ID, map[string]interface{}{"status": m.Status})
	return nil
}

// Get returns the meeting with its cases.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Meeting, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Cases, err = s.repo.ListCases(ctx, id); err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	return m, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Meeting, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// Upcoming lists scheduled meetings from now on, soonest first.
func (s *Service) Upcoming(ctx context.Context, limit int) ([]*Meeting, error) {
	return s.repo.ListUpcoming(ctx, s.now(), limit)
}

func (s *Service) UpcomingForPatient(ctx context.Context, patientID uuid.UUID) ([]PatientCase, error) {
	return s.repo.UpcomingCasesForPatient(ctx, patientID, s.now())
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to Status) (*Meeting, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(m.Status, to) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, m.Status, to)
	}
	m.Status = to
	if err := s.repo.UpdateStatus(ctx, m); err != nil {
		return nil, err
	}
	s.publish(ctx, m.ID, map[string]interface{}{"status": m.Status})
	return m, nil
}

func (s *Service) Start(ctx context.Context, id uuid.UUID) (*Meeting, error) {
	return s.transition(ctx, id, StatusInProgress)
}

func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Meeting, error) {
	return s.transition(ctx, id, StatusCompleted)
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Meeting, error) {
	return s.transition(ctx, id, StatusCancelled)
}

func (s *Service) AddCase(ctx context.Context, c *Case) error {
	c.ClinicalQuestion = strings.TrimSpace(c.ClinicalQuestion)
	if c.ClinicalQuestion == "" {
		return fmt.Errorf("clinical_question is required")
	}
	if c.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	m, err := s.repo.GetByID(ctx, c.MeetingID)
	if err != nil {
		return err
	}
	if m.Status.Closed() {
		return ErrMeetingClosed
	}
	if s.patients != nil {
		if _, err := s.patients.Get(ctx, c.PatientID); err != nil {
			return err
		}
	}
	if c.PresenterID == "" {
		c.PresenterID = auth.UserIDFromContext(ctx)
	}
	c.Status = CasePending
	if err := s.repo.AddCase(ctx, c); err != nil {
		return fmt.Errorf("add case: %w", err)
	}
	s.publish(ctx, m.ID, map[string]interface{}{"case": c.ID.String(), "case_status": c.Status})
	return nil
}

// RecordDecision stores the board's outcome for a case. A decision without
// a status marks the case discussed.
func (s *Service) RecordDecision(ctx context.Context, caseID uuid.UUID, d Decision) (*Case, error) {
	if d.Status == "" {
		d.Status = CaseDiscussed
	}
	if !d.Status.Valid() {
		return nil, fmt.Errorf("invalid case status %q", d.Status)
	}
	if d.Status == CaseDiscussed && strings.TrimSpace(d.Decision) == "" {
		return nil, fmt.Errorf("decision is required for a discussed case")
	}
	c, err := s.repo.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	m, err := s.repo.GetByID(ctx, c.MeetingID)
	if err != nil {
		return nil, err
	}
	if m.Status == StatusCancelled {
		return nil, ErrMeetingClosed
	}
	c.Decision = strings.TrimSpace(d.Decision)
	if d.Recommendation != "" {
		c.Recommendation = d.Recommendation
	}
	c.Status = d.Status
	if err := s.repo.UpdateCase(ctx, c); err != nil {
		return nil, err
	}
	s.publish(ctx, m.ID, map[string]interface{}{"case": c.ID.String(), "case_status": c.Status})
	return c, nil
}
