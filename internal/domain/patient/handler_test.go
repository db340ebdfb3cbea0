package patient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/oncodash/oncodash/internal/platform/auth"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _ := newTestService()
	return NewHandler(svc), echo.New()
}

func jsonRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func httpStatus(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
	}
	return he.Code
}

func TestHandler_CreatePatient(t *testing.T) {
	h, e := newTestHandler()
	body := `{"mrn":"MRN-9","demographics":{"first_name":"Ines","last_name":"Ivanova"},"medications":[{"name":"Fentanyl patch"}]}`
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, body), rec)

	if err := h.CreatePatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var p Profile
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.ID == uuid.Nil || p.Version != 1 {
		t.Errorf("expected stored profile, got %+v", p)
	}
	if !p.Medications[0].Opioid {
		t.Error("expected fentanyl flagged as opioid")
	}
}

func TestHandler_CreatePatient_BadRequest(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(jsonRequest(http.MethodPost, `{"demographics":{"last_name":"X"}}`), httptest.NewRecorder())

	if err := h.CreatePatient(c); err == nil || httpStatus(t, err) != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_GetPatient_NotFound(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	if err := h.GetPatient(c); err == nil || httpStatus(t, err) != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_GetPatient_InvalidID(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	if err := h.GetPatient(c); err == nil || httpStatus(t, err) != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_DispatchAction(t *testing.T) {
	h, e := newTestHandler()
	p := createPatient(t, h.svc, "MRN-D")

	rec := httptest.NewRecorder()
	body := `{"type":"set_allergies","payload":[{"substance":"Sulfa","severity":"mild"}]}`
	c := e.NewContext(jsonRequest(http.MethodPost, body), rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := h.DispatchAction(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got Profile
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if len(got.Allergies) != 1 || got.Allergies[0].Substance != "Sulfa" || got.Version != 2 {
		t.Errorf("unexpected profile %+v", got)
	}
}

func TestHandler_DispatchAction_Unknown(t *testing.T) {
	h, e := newTestHandler()
	p := createPatient(t, h.svc, "MRN-U")

	c := e.NewContext(jsonRequest(http.MethodPost, `{"type":"explode","payload":{}}`), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := h.DispatchAction(c); err == nil || httpStatus(t, err) != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_ListPatients(t *testing.T) {
	h, e := newTestHandler()
	for _, mrn := range []string{"M1", "M2", "M3"} {
		createPatient(t, h.svc, mrn)
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?limit=2", nil), rec)
	if err := h.ListPatients(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var page struct {
		Data    []Profile `json:"data"`
		Total   int       `json:"total"`
		HasMore bool      `json:"has_more"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 3 || len(page.Data) != 2 || !page.HasMore {
		t.Errorf("unexpected page: total=%d len=%d has_more=%v", page.Total, len(page.Data), page.HasMore)
	}
}

func TestHandler_SelectionFlow(t *testing.T) {
	h, e := newTestHandler()
	p := createPatient(t, h.svc, "MRN-S")

	withUser := func(req *http.Request) *http.Request {
		return req.WithContext(auth.WithIdentity(req.Context(), "user-7", auth.RoleNurse))
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(withUser(httptest.NewRequest(http.MethodGet, "/", nil)), rec)
	if err := h.GetSelection(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 with nothing selected, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(withUser(jsonRequest(http.MethodPut, `{"patient_id":"`+p.ID.String()+`"}`)), rec)
	if err := h.SelectPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(withUser(httptest.NewRequest(http.MethodGet, "/", nil)), rec)
	if err := h.GetSelection(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), p.ID.String()) {
		t.Errorf("expected selected patient, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_SelectPatient_MissingID(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(jsonRequest(http.MethodPut, `{}`), httptest.NewRecorder())
	if err := h.SelectPatient(c); err == nil || httpStatus(t, err) != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}
