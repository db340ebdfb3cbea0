package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oncodash/oncodash/internal/platform/realtime"
)

// TemplateSource supplies the active templates.
type TemplateSource interface {
	WorkflowTemplates() []Template
}

// StaticTemplates is a fixed TemplateSource.
type StaticTemplates []Template

func (s StaticTemplates) WorkflowTemplates() []Template { return s }

type Service struct {
	templates TemplateSource
	instances InstanceRepository
	events    realtime.Publisher
	now       func() time.Time
}

func NewService(templates TemplateSource, instances InstanceRepository, events realtime.Publisher) *Service {
	if templates == nil {
		templates = StaticTemplates(DefaultTemplates())
	}
	if events == nil {
		events = realtime.NopPublisher{}
	}
	return &Service{templates: templates, instances: instances, events: events, now: time.Now}
}

// -- Templates --

func (s *Service) Templates() []Template {
	return s.templates.WorkflowTemplates()
}

func (s *Service) Template(id string) (Template, error) {
	for _, t := range s.templates.WorkflowTemplates() {
		if t.ID == id {
			return t, nil
		}
	}
	return Template{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
}

// -- Instances --

func (s *Service) Start(ctx context.Context, templateID string, patientID uuid.UUID, startedBy string) (*Instance, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	t, err := s.Template(templateID)
	if err != nil {
		return nil, err
	}
	inst, err := NewInstance(t, patientID, startedBy, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.instances.Create(ctx, inst); err != nil {
		return nil, fmt.Errorf("create workflow: %w", err)
	}
	s.publish(ctx, realtime.WorkflowUpdated, inst, map[string]interface{}{
		"action": "started", "status": inst.Status, "current_step": inst.CurrentStep, "progress": inst.Progress,
	})
	return inst, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Instance, error) {
	return s.instances.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, status Status, limit, offset int) ([]*Instance, int, error) {
	if status != "" && !status.Valid() {
		return nil, 0, fmt.Errorf("invalid status: %s", status)
	}
	return s.instances.List(ctx, status, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*Instance, int, error) {
	if status != "" && !status.Valid() {
		return nil, 0, fmt.Errorf("invalid status: %s", status)
	}
	return s.instances.ListByPatient(ctx, patientID, status, limit, offset)
}

// writeAttempts bounds how often mutate reloads after a concurrent write.
const writeAttempts = 3

// mutate loads an instance, applies fn and persists the result. When
// another writer got there first, fn is applied again to the fresh state,
// so its checks always see the stored instance.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, action string, fn func(*Instance, time.Time) error) (*Instance, error) {
	var inst *Instance
	for attempt := 1; ; attempt++ {
		var err error
		inst, err = s.instances.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(inst, s.now().UTC()); err != nil {
			return nil, err
		}
		err = s.instances.Update(ctx, inst)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrVersionConflict) || attempt == writeAttempts {
			return nil, fmt.Errorf("update workflow %s: %w", id, err)
		}
	}
	s.publish(ctx, realtime.WorkflowUpdated, inst, map[string]interface{}{
		"action": action, "status": inst.Status, "current_step": inst.CurrentStep, "progress": inst.Progress,
	})
	return inst, nil
}

func (s *Service) UpdateStep(ctx context.Context, id uuid.UUID, stepID string, to StepStatus, actor string) (*Instance, error) {
	return s.mutate(ctx, id, "step."+string(to), func(inst *Instance, now time.Time) error {
		return inst.Transition(stepID, to, actor, now)
	})
}

func (s *Service) ToggleChecklist(ctx context.Context, id uuid.UUID, stepID, itemID string, checked bool, actor string) (*Instance, error) {
	return s.mutate(ctx, id, "checklist", func(inst *Instance, now time.Time) error {
		return inst.ToggleChecklist(stepID, itemID, checked, actor, now)
	})
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Instance, error) {
	return s.mutate(ctx, id, "cancelled", func(inst *Instance, now time.Time) error {
		return inst.Cancel(now)
	})
}

// -- Comments --

func (s *Service) AddComment(ctx context.Context, cm *Comment) error {
	cm.Body = strings.TrimSpace(cm.Body)
	if cm.Body == "" {
		return fmt.Errorf("body is required")
	}
	inst, err := s.instances.GetByID(ctx, cm.InstanceID)
	if err != nil {
		return err
	}
	if cm.StepID != "" {
		if _, err := inst.step(cm.StepID); err != nil {
			return err
		}
	}
	if err := s.instances.AddComment(ctx, cm); err != nil {
		return fmt.Errorf("add comment: %w", err)
	}
	s.publish(ctx, realtime.WorkflowComment, inst, cm)
	return nil
}

func (s *Service) ListComments(ctx context.Context, id uuid.UUID) ([]*Comment, error) {
	if _, err := s.instances.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.instances.ListComments(ctx, id)
}

func (s *Service) publish(ctx context.Context, eventType string, inst *Instance, payload interface{}) {
	evt, err := realtime.NewEvent(eventType, realtime.WorkflowTopic(inst.ID.String()), inst.ID.String(), payload)
	if err != nil {
		return
	}
	_ = s.events.Publish(ctx, evt)
}
