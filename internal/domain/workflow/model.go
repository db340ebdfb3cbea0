package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound            = errors.New("workflow not found")
	ErrTemplateNotFound    = errors.New("workflow template not found")
	ErrEmptyTemplate       = errors.New("workflow template has no steps")
	ErrStepNotFound        = errors.New("workflow step not found")
	ErrItemNotFound        = errors.New("checklist item not found")
	ErrInvalidTransition   = errors.New("invalid step transition")
	ErrChecklistIncomplete = errors.New("required checklist items are unchecked")
	ErrInstanceClosed      = errors.New("workflow is not active")
	ErrVersionConflict     = errors.New("workflow was changed by another user")
)

type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in-progress"
	StepCompleted  StepStatus = "completed"
	StepSkipped    StepStatus = "skipped"
)

func (s StepStatus) Terminal() bool {
	return s == StepCompleted || s == StepSkipped
}

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusCompleted || s == StatusCancelled
}

// -- Templates --

type ChecklistItem struct {
	ID       string `json:"id" yaml:"id"`
	Text     string `json:"text" yaml:"text"`
	Required bool   `json:"required" yaml:"required"`
}

type StepTemplate struct {
	ID          string          `json:"id" yaml:"id"`
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Role        string          `json:"role,omitempty" yaml:"role,omitempty"`
	Checklist   []ChecklistItem `json:"checklist,omitempty" yaml:"checklist,omitempty"`
}

type Template struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Steps       []StepTemplate `json:"steps" yaml:"steps"`
}

// Validate checks identifiers are present and unique. A template without
// steps is valid but cannot be started.
func (t Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("template id is required")
	}
	if t.Name == "" {
		return fmt.Errorf("template %s: name is required", t.ID)
	}
	steps := make(map[string]bool, len(t.Steps))
	for _, s := range t.Steps {
		if s.ID == "" {
			return fmt.Errorf("template %s: step id is required", t.ID)
		}
		if steps[s.ID] {
			return fmt.Errorf("template %s: duplicate step %s", t.ID, s.ID)
		}
		steps[s.ID] = true
		items := make(map[string]bool, len(s.Checklist))
		for _, it := range s.Checklist {
			if it.ID == "" || items[it.ID] {
				return fmt.Errorf("template %s: step %s: missing or duplicate checklist item %q", t.ID, s.ID, it.ID)
			}
			items[it.ID] = true
		}
	}
	return nil
}

// -- Instances --

type ChecklistState struct {
	ItemID    string     `json:"item_id"`
	Text      string     `json:"text"`
	Required  bool       `json:"required"`
	Checked   bool       `json:"checked"`
	CheckedBy string     `json:"checked_by,omitempty"`
	CheckedAt *time.Time `json:"checked_at,omitempty"`
}

type StepState struct {
	StepID      string           `json:"step_id"`
	Name        string           `json:"name"`
	Role        string           `json:"role,omitempty"`
	Status      StepStatus       `json:"status"`
	Checklist   []ChecklistState `json:"checklist"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	CompletedBy string           `json:"completed_by,omitempty"`
}

type Instance struct {
	ID           uuid.UUID   `json:"id"`
	TemplateID   string      `json:"template_id"`
	TemplateName string      `json:"template_name"`
	PatientID    uuid.UUID   `json:"patient_id"`
	Status       Status      `json:"status"`
	CurrentStep  string      `json:"current_step,omitempty"`
	Progress     int         `json:"progress"`
	Steps        []StepState `json:"steps"`
	StartedBy    string      `json:"started_by"`
	StartedAt    time.Time   `json:"started_at"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
	UpdatedAt    time.Time   `json:"updated_at"`
	// Version increments on every stored change.
	Version int `json:"version"`
}

type Comment struct {
	ID         uuid.UUID `json:"id"`
	InstanceID uuid.UUID `json:"instance_id"`
	StepID     string    `json:"step_id,omitempty"`
	AuthorID   string    `json:"author_id"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}
