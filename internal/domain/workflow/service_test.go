package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/oncodash/oncodash/internal/platform/realtime"
)

// -- Mock Repository --

type mockInstanceRepo struct {
	records  map[uuid.UUID]*Instance
	comments map[uuid.UUID][]*Comment
	// beforeUpdate runs ahead of each Update, standing in for another writer.
	beforeUpdate func(m *mockInstanceRepo, id uuid.UUID)
}

func newMockInstanceRepo() *mockInstanceRepo {
	return &mockInstanceRepo{
		records:  make(map[uuid.UUID]*Instance),
		comments: make(map[uuid.UUID][]*Comment),
	}
}

// copyInstance round-trips through JSON so callers never share step slices
// with the store.
func copyInstance(in *Instance) *Instance {
	data, _ := json.Marshal(in)
	var out Instance
	_ = json.Unmarshal(data, &out)
	return &out
}

func (m *mockInstanceRepo) Create(_ context.Context, inst *Instance) error {
	m.records[inst.ID] = copyInstance(inst)
	return nil
}

func (m *mockInstanceRepo) GetByID(_ context.Context, id uuid.UUID) (*Instance, error) {
	inst, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyInstance(inst), nil
}

func (m *mockInstanceRepo) Update(_ context.Context, inst *Instance) error {
	if m.beforeUpdate != nil {
		m.beforeUpdate(m, inst.ID)
	}
	stored, ok := m.records[inst.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != inst.Version {
		return ErrVersionConflict
	}
	inst.Version++
	m.records[inst.ID] = copyInstance(inst)
	return nil
}

// writeElsewhere applies fn to the stored instance as a competing writer.
func (m *mockInstanceRepo) writeElsewhere(id uuid.UUID, fn func(*Instance)) {
	inst := m.records[id]
	fn(inst)
	inst.Version++
}

func (m *mockInstanceRepo) List(_ context.Context, status Status, limit, offset int) ([]*Instance, int, error) {
	var result []*Instance
	for _, inst := range m.records {
		if status == "" || inst.Status == status {
			result = append(result, copyInstance(inst))
		}
	}
	return result, len(result), nil
}

func (m *mockInstanceRepo) ListByPatient(_ context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*Instance, int, error) {
	var result []*Instance
	for _, inst := range m.records {
		if inst.PatientID == patientID && (status == "" || inst.Status == status) {
			result = append(result, copyInstance(inst))
		}
	}
	return result, len(result), nil
}

func (m *mockInstanceRepo) AddComment(_ context.Context, cm *Comment) error {
	cm.ID = uuid.New()
	cm.CreatedAt = time.Now()
	m.comments[cm.InstanceID] = append(m.comments[cm.InstanceID], cm)
	return nil
}

func (m *mockInstanceRepo) ListComments(_ context.Context, id uuid.UUID) ([]*Comment, error) {
	return m.comments[id], nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *capturePublisher) Publish(_ context.Context, evt realtime.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func newTestService() (*Service, *capturePublisher) {
	svc, _, pub := newTestServiceWithRepo()
	return svc, pub
}

func newTestServiceWithRepo() (*Service, *mockInstanceRepo, *capturePublisher) {
	pub := &capturePublisher{}
	repo := newMockInstanceRepo()
	tpls := append(DefaultTemplates(), threeStepTemplate(), Template{ID: "empty", Name: "Empty"})
	return NewService(StaticTemplates(tpls), repo, pub), repo, pub
}

// -- Service Tests --

func TestService_Start(t *testing.T) {
	svc, pub := newTestService()
	inst, err := svc.Start(context.Background(), TemplateChemoCycleStart, uuid.New(), "nurse-1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if inst.CurrentStep != "labs" || inst.Progress != 0 || inst.Status != StatusActive {
		t.Errorf("unexpected start state %+v", inst)
	}
	if len(pub.events) != 1 || pub.events[0].Type != realtime.WorkflowUpdated {
		t.Fatalf("expected one workflow.updated event, got %+v", pub.events)
	}
	if pub.events[0].Topic != realtime.WorkflowTopic(inst.ID.String()) {
		t.Errorf("unexpected topic %s", pub.events[0].Topic)
	}
}

func TestService_Start_Errors(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Start(ctx, "nope", uuid.New(), "u"); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("expected ErrTemplateNotFound, got %v", err)
	}
	if _, err := svc.Start(ctx, "empty", uuid.New(), "u"); !errors.Is(err, ErrEmptyTemplate) {
		t.Errorf("expected ErrEmptyTemplate, got %v", err)
	}
	if _, err := svc.Start(ctx, "t", uuid.Nil, "u"); err == nil {
		t.Error("expected error for missing patient")
	}
}

func TestService_FullRun(t *testing.T) {
	svc, pub := newTestService()
	ctx := context.Background()
	inst, _ := svc.Start(ctx, "t", uuid.New(), "u1")

	if _, err := svc.ToggleChecklist(ctx, inst.ID, "a", "must", true, "u1"); err != nil {
		t.Fatalf("ToggleChecklist: %v", err)
	}
	for _, step := range []string{"a", "b", "c"} {
		if _, err := svc.UpdateStep(ctx, inst.ID, step, StepCompleted, "u1"); err != nil {
			t.Fatalf("complete %s: %v", step, err)
		}
	}

	got, _ := svc.Get(ctx, inst.ID)
	if got.Status != StatusCompleted || got.Progress != 100 {
		t.Errorf("expected completed at 100%%, got %s at %d", got.Status, got.Progress)
	}
	// start + checklist + three steps
	if len(pub.events) != 5 {
		t.Errorf("expected 5 events, got %d", len(pub.events))
	}
}

func TestService_UpdateStep_RejectedLeavesStore(t *testing.T) {
	svc, pub := newTestService()
	ctx := context.Background()
	inst, _ := svc.Start(ctx, "t", uuid.New(), "u1")

	if _, err := svc.UpdateStep(ctx, inst.ID, "a", StepCompleted, "u1"); !errors.Is(err, ErrChecklistIncomplete) {
		t.Fatalf("expected ErrChecklistIncomplete, got %v", err)
	}
	got, _ := svc.Get(ctx, inst.ID)
	if got.Steps[0].Status != StepInProgress {
		t.Errorf("store changed on rejected transition: %s", got.Steps[0].Status)
	}
	if len(pub.events) != 1 {
		t.Errorf("expected only the start event, got %d", len(pub.events))
	}
}

func TestService_ConcurrentWritesBothLand(t *testing.T) {
	svc, repo, _ := newTestServiceWithRepo()
	ctx := context.Background()
	inst, _ := svc.Start(ctx, "t", uuid.New(), "u1")

	repo.beforeUpdate = func(m *mockInstanceRepo, id uuid.UUID) {
		m.beforeUpdate = nil
		m.writeElsewhere(id, func(in *Instance) { in.Steps[0].Checklist[1].Checked = true })
	}
	got, err := svc.ToggleChecklist(ctx, inst.ID, "a", "must", true, "u1")
	if err != nil {
		t.Fatalf("ToggleChecklist: %v", err)
	}
	stored, _ := svc.Get(ctx, inst.ID)
	if !stored.Steps[0].Checklist[0].Checked || !stored.Steps[0].Checklist[1].Checked {
		t.Errorf("expected both checklist writes to survive, got %+v", stored.Steps[0].Checklist)
	}
	if got.Version != stored.Version || stored.Version != 3 {
		t.Errorf("expected version 3, got returned %d stored %d", got.Version, stored.Version)
	}
}

func TestService_StaleCompletionSeesUncheck(t *testing.T) {
	svc, repo, pub := newTestServiceWithRepo()
	ctx := context.Background()
	inst, _ := svc.Start(ctx, "t", uuid.New(), "u1")
	if _, err := svc.ToggleChecklist(ctx, inst.ID, "a", "must", true, "u1"); err != nil {
		t.Fatalf("ToggleChecklist: %v", err)
	}

	// Another clinician unchecks the required item while this completion is in flight.
	repo.beforeUpdate = func(m *mockInstanceRepo, id uuid.UUID) {
		m.beforeUpdate = nil
		m.writeElsewhere(id, func(in *Instance) { in.Steps[0].Checklist[0].Checked = false })
	}
	if _, err := svc.UpdateStep(ctx, inst.ID, "a", StepCompleted, "u2"); !errors.Is(err, ErrChecklistIncomplete) {
		t.Fatalf("expected ErrChecklistIncomplete, got %v", err)
	}
	stored, _ := svc.Get(ctx, inst.ID)
	if stored.Steps[0].Status != StepInProgress || stored.Steps[0].Checklist[0].Checked {
		t.Errorf("uncheck was lost: %+v", stored.Steps[0])
	}
	if len(pub.events) != 2 {
		t.Errorf("expected start and checklist events only, got %d", len(pub.events))
	}
}

func TestService_PersistentConflict(t *testing.T) {
	svc, repo, _ := newTestServiceWithRepo()
	ctx := context.Background()
	inst, _ := svc.Start(ctx, "t", uuid.New(), "u1")

	calls := 0
	repo.beforeUpdate = func(m *mockInstanceRepo, id uuid.UUID) {
		calls++
		m.writeElsewhere(id, func(*Instance) {})
	}
	if _, err := svc.ToggleChecklist(ctx, inst.ID, "a", "nice", true, "u1"); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	if calls != writeAttempts {
		t.Errorf("expected %d attempts, got %d", writeAttempts, calls)
	}
	if code := statusOf(httpError(ErrVersionConflict)); code != http.StatusConflict {
		t.Errorf("expected 409, got %d", code)
	}
}

func TestService_Comments(t *testing.T) {
	svc, pub := newTestService()
	ctx := context.Background()
	inst, _ := svc.Start(ctx, "t", uuid.New(), "u1")

	if err := svc.AddComment(ctx, &Comment{InstanceID: inst.ID, StepID: "b", AuthorID: "u2", Body: "  labs pending  "}); err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if err := svc.AddComment(ctx, &Comment{InstanceID: inst.ID, StepID: "zz", AuthorID: "u2", Body: "x"}); !errors.Is(err, ErrStepNotFound) {
		t.Errorf("expected ErrStepNotFound, got %v", err)
	}
	if err := svc.AddComment(ctx, &Comment{InstanceID: inst.ID, Body: "   "}); err == nil {
		t.Error("expected error for empty body")
	}

	comments, err := svc.ListComments(ctx, inst.ID)
	if err != nil || len(comments) != 1 || comments[0].Body != "labs pending" {
		t.Fatalf("unexpected comments %v (%v)", comments, err)
	}
	last := pub.events[len(pub.events)-1]
	if last.Type != realtime.WorkflowComment {
		t.Errorf("expected workflow.comment event, got %s", last.Type)
	}
}

func TestService_ListByPatient_InvalidStatus(t *testing.T) {
	svc, _ := newTestService()
	if _, _, err := svc.ListByPatient(context.Background(), uuid.New(), "paused", 10, 0); err == nil {
		t.Error("expected error for invalid status")
	}
}

// -- Handler Tests --

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _ := newTestService()
	return NewHandler(svc), echo.New()
}

func jsonCtx(e *echo.Echo, method, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func statusOf(err error) int {
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return 0
}

func TestHandler_StartWorkflow(t *testing.T) {
	h, e := newTestHandler()
	c, rec := jsonCtx(e, http.MethodPost, `{"template_id":"new-patient-intake","patient_id":"`+uuid.New().String()+`"}`)

	if err := h.StartWorkflow(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"current_step":"records"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_StartWorkflow_UnknownTemplate(t *testing.T) {
	h, e := newTestHandler()
	c, _ := jsonCtx(e, http.MethodPost, `{"template_id":"x","patient_id":"`+uuid.New().String()+`"}`)
	if code := statusOf(h.StartWorkflow(c)); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestHandler_UpdateStep_Conflict(t *testing.T) {
	h, e := newTestHandler()
	inst, _ := h.svc.Start(context.Background(), "t", uuid.New(), "u1")

	c, _ := jsonCtx(e, http.MethodPut, `{"status":"completed"}`)
	c.SetParamNames("id", "step")
	c.SetParamValues(inst.ID.String(), "b")
	if code := statusOf(h.UpdateStep(c)); code != http.StatusConflict {
		t.Errorf("expected 409 for pending -> completed, got %d", code)
	}
}

func TestHandler_ToggleAndComplete(t *testing.T) {
	h, e := newTestHandler()
	inst, _ := h.svc.Start(context.Background(), "t", uuid.New(), "u1")

	c, _ := jsonCtx(e, http.MethodPut, `{"checked":true}`)
	c.SetParamNames("id", "step", "item")
	c.SetParamValues(inst.ID.String(), "a", "must")
	if err := h.ToggleChecklist(c); err != nil {
		t.Fatalf("ToggleChecklist: %v", err)
	}

	c, rec := jsonCtx(e, http.MethodPut, `{"status":"completed"}`)
	c.SetParamNames("id", "step")
	c.SetParamValues(inst.ID.String(), "a")
	if err := h.UpdateStep(c); err != nil {
		t.Fatalf("UpdateStep: %v", err)
	}
	var got Instance
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got.CurrentStep != "b" || got.Progress != 33 {
		t.Errorf("expected current b at 33%%, got %s at %d", got.CurrentStep, got.Progress)
	}
}

func TestHandler_GetWorkflow_NotFound(t *testing.T) {
	h, e := newTestHandler()
	c, _ := jsonCtx(e, http.MethodGet, "")
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())
	if code := statusOf(h.GetWorkflow(c)); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestHandler_ListTemplates(t *testing.T) {
	h, e := newTestHandler()
	c, rec := jsonCtx(e, http.MethodGet, "")
	if err := h.ListTemplates(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var tpls []Template
	_ = json.Unmarshal(rec.Body.Bytes(), &tpls)
	if len(tpls) != 6 {
		t.Errorf("expected 6 templates, got %d", len(tpls))
	}
}
