package workflow

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

var allowedTransitions = map[StepStatus]map[StepStatus]bool{
	StepPending:    {StepInProgress: true, StepSkipped: true},
	StepInProgress: {StepCompleted: true, StepSkipped: true},
}

// CanTransition reports whether a step may move from one status to another.
func CanTransition(from, to StepStatus) bool {
	return allowedTransitions[from][to]
}

// NewInstance starts t for a patient: the first step is in progress and
// every other step is pending.
func NewInstance(t Template, patientID uuid.UUID, startedBy string, now time.Time) (*Instance, error) {
	if len(t.Steps) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyTemplate, t.ID)
	}

	inst := &Instance{
		ID:           uuid.New(),
		TemplateID:   t.ID,
		TemplateName: t.Name,
		PatientID:    patientID,
		Status:       StatusActive,
		CurrentStep:  t.Steps[0].ID,
		Steps:        make([]StepState, len(t.Steps)),
		StartedBy:    startedBy,
		StartedAt:    now,
		UpdatedAt:    now,
		Version:      1,
	}
	for i, st := range t.Steps {
		state := StepState{StepID: st.ID, Name: st.Name, Role: st.Role, Status: StepPending,
			Checklist: make([]ChecklistState, len(st.Checklist))}
		for j, it := range st.Checklist {
			state.Checklist[j] = ChecklistState{ItemID: it.ID, Text: it.Text, Required: it.Required}
		}
		inst.Steps[i] = state
	}
	inst.Steps[0].Status = StepInProgress
	inst.Steps[0].StartedAt = &now
	return inst, nil
}

func (i *Instance) step(stepID string) (*StepState, error) {
	for idx := range i.Steps {
		if i.Steps[idx].StepID == stepID {
			return &i.Steps[idx], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrStepNotFound, stepID)
}

// Transition moves a step to status to. After a step completes or is
// skipped the first remaining step becomes current and in progress; when
// none remain the instance completes.
func (i *Instance) Transition(stepID string, to StepStatus, actor string, now time.Time) error {
	if i.Status != StatusActive {
		return ErrInstanceClosed
	}
	st, err := i.step(stepID)
	if err != nil {
		return err
	}
	if !CanTransition(st.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, st.Status, to)
	}
	if to == StepCompleted {
		for _, item := range st.Checklist {
			if item.Required && !item.Checked {
				return fmt.Errorf("%w: %s", ErrChecklistIncomplete, item.ItemID)
			}
		}
	}

	st.Status = to
	switch to {
	case StepInProgress:
		st.StartedAt = &now
	case StepCompleted, StepSkipped:
		st.CompletedAt = &now
		st.CompletedBy = actor
		i.advance(now)
	}

	i.Progress = ComputeProgress(i.Steps)
	i.UpdatedAt = now
	return nil
}

func (i *Instance) advance(now time.Time) {
	for idx := range i.Steps {
		next := &i.Steps[idx]
		if next.Status.Terminal() {
			continue
		}
		if next.Status == StepPending {
			next.Status = StepInProgress
			next.StartedAt = &now
		}
		i.CurrentStep = next.StepID
		return
	}
	i.CurrentStep = ""
	i.Status = StatusCompleted
	i.CompletedAt = &now
}

// ToggleChecklist checks or unchecks an item on a step that is still open.
func (i *Instance) ToggleChecklist(stepID, itemID string, checked bool, actor string, now time.Time) error {
	if i.Status != StatusActive {
		return ErrInstanceClosed
	}
	st, err := i.step(stepID)
	if err != nil {
		return err
	}
	if st.Status.Terminal() {
		return fmt.Errorf("%w: step %s is %s", ErrInvalidTransition, stepID, st.Status)
	}
	for idx := range st.Checklist {
		item := &st.Checklist[idx]
		if item.ItemID != itemID {
			continue
		}
		item.Checked = checked
		if checked {
			item.CheckedBy = actor
			item.CheckedAt = &now
		} else {
			item.CheckedBy = ""
			item.CheckedAt = nil
		}
		i.UpdatedAt = now
		return nil
	}
	return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
}

func (i *Instance) Cancel(now time.Time) error {
	if i.Status != StatusActive {
		return ErrInstanceClosed
	}
	i.Status = StatusCancelled
	i.CompletedAt = &now
	i.UpdatedAt = now
	return nil
}

// ComputeProgress is the rounded share of steps that are completed or
// skipped.
func ComputeProgress(steps []StepState) int {
	if len(steps) == 0 {
		return 0
	}
	done := 0
	for _, s := range steps {
		if s.Status.Terminal() {
			done++
		}
	}
	return int(math.Round(float64(done) / float64(len(steps)) * 100))
}
