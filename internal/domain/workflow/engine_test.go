package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func threeStepTemplate() Template {
	return Template{
		ID:   "t",
		Name: "Three steps",
		Steps: []StepTemplate{
			{ID: "a", Name: "A", Checklist: []ChecklistItem{
				{ID: "must", Text: "Required item", Required: true},
				{ID: "nice", Text: "Optional item"},
			}},
			{ID: "b", Name: "B"},
			{ID: "c", Name: "C"},
		},
	}
}

func startThree(t *testing.T) *Instance {
	t.Helper()
	inst, err := NewInstance(threeStepTemplate(), uuid.New(), "u1", t0)
	require.NoError(t, err)
	return inst
}

func statuses(inst *Instance) []StepStatus {
	out := make([]StepStatus, len(inst.Steps))
	for i, s := range inst.Steps {
		out[i] = s.Status
	}
	return out
}

func TestNewInstance(t *testing.T) {
	inst := startThree(t)

	assert.Equal(t, StatusActive, inst.Status)
	assert.Equal(t, "a", inst.CurrentStep)
	assert.Equal(t, 0, inst.Progress)
	assert.Equal(t, []StepStatus{StepInProgress, StepPending, StepPending}, statuses(inst))
	require.NotNil(t, inst.Steps[0].StartedAt)
	assert.Len(t, inst.Steps[0].Checklist, 2)
}

func TestNewInstance_EmptyTemplate(t *testing.T) {
	_, err := NewInstance(Template{ID: "empty", Name: "Empty"}, uuid.New(), "u1", t0)
	assert.True(t, errors.Is(err, ErrEmptyTemplate))
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to StepStatus
		want     bool
	}{
		{StepPending, StepInProgress, true},
		{StepPending, StepSkipped, true},
		{StepPending, StepCompleted, false},
		{StepInProgress, StepCompleted, true},
		{StepInProgress, StepSkipped, true},
		{StepInProgress, StepPending, false},
		{StepCompleted, StepInProgress, false},
		{StepCompleted, StepSkipped, false},
		{StepSkipped, StepInProgress, false},
		{StepSkipped, StepCompleted, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestTransition_RequiresChecklist(t *testing.T) {
	inst := startThree(t)

	err := inst.Transition("a", StepCompleted, "u1", t0)
	require.True(t, errors.Is(err, ErrChecklistIncomplete))
	assert.Equal(t, StepInProgress, inst.Steps[0].Status)

	require.NoError(t, inst.ToggleChecklist("a", "must", true, "u1", t0))
	require.NoError(t, inst.Transition("a", StepCompleted, "u1", t0.Add(time.Minute)))
	assert.Equal(t, StepCompleted, inst.Steps[0].Status)
	assert.Equal(t, "u1", inst.Steps[0].CompletedBy)
}

func TestTransition_SkipDoesNotNeedChecklist(t *testing.T) {
	inst := startThree(t)
	require.NoError(t, inst.Transition("a", StepSkipped, "u1", t0))
	assert.Equal(t, "b", inst.CurrentStep)
}

func TestTransition_AdvanceAndProgress(t *testing.T) {
	inst := startThree(t)
	require.NoError(t, inst.ToggleChecklist("a", "must", true, "u1", t0))

	require.NoError(t, inst.Transition("a", StepCompleted, "u1", t0))
	assert.Equal(t, "b", inst.CurrentStep)
	assert.Equal(t, []StepStatus{StepCompleted, StepInProgress, StepPending}, statuses(inst))
	assert.Equal(t, 33, inst.Progress)

	// Skipping a later pending step leaves the current step alone.
	require.NoError(t, inst.Transition("c", StepSkipped, "u1", t0))
	assert.Equal(t, "b", inst.CurrentStep)
	assert.Equal(t, 67, inst.Progress)
	assert.Equal(t, StatusActive, inst.Status)

	require.NoError(t, inst.Transition("b", StepCompleted, "u1", t0))
	assert.Equal(t, StatusCompleted, inst.Status)
	assert.Equal(t, "", inst.CurrentStep)
	assert.Equal(t, 100, inst.Progress)
	require.NotNil(t, inst.CompletedAt)

	err := inst.Transition("b", StepSkipped, "u1", t0)
	assert.True(t, errors.Is(err, ErrInstanceClosed))
}

func TestTransition_TerminalStepsAreFinal(t *testing.T) {
	inst := startThree(t)
	require.NoError(t, inst.Transition("a", StepSkipped, "u1", t0))

	for _, to := range []StepStatus{StepInProgress, StepCompleted, StepPending, StepSkipped} {
		err := inst.Transition("a", to, "u1", t0)
		assert.True(t, errors.Is(err, ErrInvalidTransition), "skipped -> %s", to)
	}
}

func TestTransition_UnknownStep(t *testing.T) {
	inst := startThree(t)
	assert.True(t, errors.Is(inst.Transition("zzz", StepSkipped, "u1", t0), ErrStepNotFound))
}

func TestTransition_PendingToInProgress(t *testing.T) {
	inst := startThree(t)
	require.NoError(t, inst.Transition("c", StepInProgress, "u1", t0))
	assert.Equal(t, StepInProgress, inst.Steps[2].Status)
	assert.Equal(t, "a", inst.CurrentStep)
	assert.Equal(t, 0, inst.Progress)
}

func TestToggleChecklist(t *testing.T) {
	inst := startThree(t)

	require.NoError(t, inst.ToggleChecklist("a", "nice", true, "u2", t0))
	item := inst.Steps[0].Checklist[1]
	assert.True(t, item.Checked)
	assert.Equal(t, "u2", item.CheckedBy)

	require.NoError(t, inst.ToggleChecklist("a", "nice", false, "u2", t0))
	item = inst.Steps[0].Checklist[1]
	assert.False(t, item.Checked)
	assert.Nil(t, item.CheckedAt)

	assert.True(t, errors.Is(inst.ToggleChecklist("a", "missing", true, "u2", t0), ErrItemNotFound))

	require.NoError(t, inst.Transition("a", StepSkipped, "u1", t0))
	assert.True(t, errors.Is(inst.ToggleChecklist("a", "nice", true, "u2", t0), ErrInvalidTransition))
}

func TestCancel(t *testing.T) {
	inst := startThree(t)
	require.NoError(t, inst.Cancel(t0))
	assert.Equal(t, StatusCancelled, inst.Status)
	assert.True(t, errors.Is(inst.Cancel(t0), ErrInstanceClosed))
	assert.True(t, errors.Is(inst.Transition("a", StepSkipped, "u1", t0), ErrInstanceClosed))
}

func TestComputeProgress(t *testing.T) {
	mk := func(ss ...StepStatus) []StepState {
		out := make([]StepState, len(ss))
		for i, s := range ss {
			out[i] = StepState{Status: s}
		}
		return out
	}
	assert.Equal(t, 0, ComputeProgress(nil))
	assert.Equal(t, 25, ComputeProgress(mk(StepCompleted, StepInProgress, StepPending, StepPending)))
	assert.Equal(t, 50, ComputeProgress(mk(StepSkipped, StepCompleted, StepPending, StepInProgress)))
	assert.Equal(t, 67, ComputeProgress(mk(StepSkipped, StepCompleted, StepPending)))
	assert.Equal(t, 100, ComputeProgress(mk(StepSkipped, StepCompleted)))
}

func TestDefaultTemplates_Valid(t *testing.T) {
	ids := map[string]bool{}
	for _, tpl := range DefaultTemplates() {
		require.NoError(t, tpl.Validate(), tpl.ID)
		assert.NotEmpty(t, tpl.Steps, tpl.ID)
		ids[tpl.ID] = true
	}
	for _, id := range []string{TemplateIntake, TemplateChemoCycleStart, TemplateTumorBoardPrep, TemplateMolecularTesting} {
		assert.True(t, ids[id], id)
	}
}

func TestTemplate_ValidateDuplicates(t *testing.T) {
	tpl := threeStepTemplate()
	tpl.Steps[1].ID = "a"
	assert.Error(t, tpl.Validate())

	tpl = threeStepTemplate()
	tpl.Steps[0].Checklist[1].ID = "must"
	assert.Error(t, tpl.Validate())
}
