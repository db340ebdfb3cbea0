package tumorboard

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("meeting not found")
	ErrCaseNotFound      = errors.New("case not found")
	ErrInvalidTransition = errors.New("invalid meeting transition")
	ErrMeetingClosed     = errors.New("meeting is closed")
	ErrInPast            = errors.New("scheduled_at must be in the future")
)

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusScheduled:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Closed meetings accept no new cases or decisions.
func (s Status) Closed() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type CaseStatus string

const (
	CasePending   CaseStatus = "pending"
	CaseDiscussed CaseStatus = "discussed"
	CaseDeferred  CaseStatus = "deferred"
)

func (s CaseStatus) Valid() bool {
	return s == CasePending || s == CaseDiscussed || s == CaseDeferred
}

// DefaultDuration is used when a meeting is scheduled without a duration.
const DefaultDuration = 60

type Meeting struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Location        string    `json:"location,omitempty"`
	VirtualLink     string    `json:"virtual_link,omitempty"`
	Status          Status    `json:"status"`
	Attendees       []string  `json:"attendees"`
	CreatedBy       string    `json:"created_by,omitempty"`
	Cases           []Case    `json:"cases,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type Case struct {
	ID               uuid.UUID  `json:"id"`
	MeetingID        uuid.UUID  `json:"meeting_id"`
	PatientID        uuid.UUID  `json:"patient_id"`
	PresenterID      string     `json:"presenter_id,omitempty"`
	ClinicalQuestion string     `json:"clinical_question"`
	Summary          string     `json:"summary,omitempty"`
	Recommendation   string     `json:"recommendation,omitempty"`
	Decision         string     `json:"decision,omitempty"`
	Status           CaseStatus `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// PatientCase is a case listed with its meeting's schedule.
type PatientCase struct {
	Case
	MeetingTitle string    `json:"meeting_title"`
	ScheduledAt  time.Time `json:"scheduled_at"`
}

type Decision struct {
	Decision       string     `json:"decision"`
	Recommendation string     `json:"recommendation,omitempty"`
	Status         CaseStatus `json:"status"`
}
