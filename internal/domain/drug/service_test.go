package drug

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncodash/oncodash/internal/domain/patient"
	"github.com/oncodash/oncodash/internal/platform/auth"
)

type mockDrugRepo struct{ store map[string]*Drug }

func (m *mockDrugRepo) Search(_ context.Context, q, class string, limit, offset int) ([]*Drug, int, error) {
	var out []*Drug
	for _, d := range m.store {
		if d.Matches(q) && (class == "" || strings.EqualFold(d.DrugClass, class)) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	total := len(out)
	if offset > total {
		offset = total
	}
	if end := offset + limit; end < total {
		out = out[:end]
	}
	return out[offset:], total, nil
}

func (m *mockDrugRepo) Get(_ context.Context, rxcui string) (*Drug, error) {
	d, ok := m.store[rxcui]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

func (m *mockDrugRepo) GetMany(_ context.Context, ids []string) ([]*Drug, error) {
	var out []*Drug
	for _, id := range ids {
		if d, ok := m.store[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockDrugRepo) Upsert(_ context.Context, d *Drug) error {
	cp := *d
	m.store[d.RxCUI] = &cp
	return nil
}

type mockLists struct {
	mu    sync.Mutex
	lists map[string][]string
}

func (m *mockLists) Get(_ context.Context, uid string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.lists[uid]...), nil
}

func (m *mockLists) Save(_ context.Context, uid string, l []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[uid] = append([]string{}, l...)
	return nil
}

type mockPopularity struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (m *mockPopularity) Increment(_ context.Context, rxcui string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[rxcui]++
	return nil
}

func (m *mockPopularity) Top(_ context.Context, n int) ([]Popularity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Popularity
	for k, v := range m.counts {
		out = append(out, Popularity{RxCUI: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].RxCUI < out[j].RxCUI
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

type mockProfiles map[uuid.UUID]*patient.Profile

func (m mockProfiles) Get(_ context.Context, id uuid.UUID) (*patient.Profile, error) {
	p, ok := m[id]
	if !ok {
		return nil, patient.ErrNotFound
	}
	return p, nil
}

func newTestService(profiles mockProfiles) (*Service, *mockPopularity) {
	pop := &mockPopularity{counts: map[string]int64{}}
	svc := NewService(&mockDrugRepo{store: map[string]*Drug{}}, &mockLists{lists: map[string][]string{}}, pop, profiles)
	if _, err := svc.Seed(context.Background()); err != nil {
		panic(err)
	}
	return svc, pop
}

func TestService_AddIdempotentAndPopularity(t *testing.T) {
	svc, pop := newTestService(nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		list, err := svc.AddToComparison(ctx, "u1", "224905")
		require.NoError(t, err)
		assert.Equal(t, []string{"224905"}, list)
	}
	_, err := svc.AddToComparison(ctx, "u2", "224905")
	require.NoError(t, err)
	assert.Equal(t, int64(2), pop.counts["224905"])

	_, err = svc.AddToComparison(ctx, "u1", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_AddConcurrent(t *testing.T) {
	svc, pop := newTestService(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.AddToComparison(ctx, "u1", "40048")
		}()
	}
	wg.Wait()

	list, err := svc.ComparisonList(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"40048"}, list)
	assert.Equal(t, int64(1), pop.counts["40048"])
}

func TestService_RemoveAndClear(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()
	for _, id := range []string{"224905", "40048", "1656052"} {
		_, err := svc.AddToComparison(ctx, "u1", id)
		require.NoError(t, err)
	}

	list, err := svc.RemoveFromComparison(ctx, "u1", "40048")
	require.NoError(t, err)
	assert.Equal(t, []string{"224905", "1656052"}, list)

	list, err = svc.RemoveFromComparison(ctx, "u1", "40048")
	require.NoError(t, err)
	assert.Equal(t, []string{"224905", "1656052"}, list)

	require.NoError(t, svc.ClearComparison(ctx, "u1"))
	list, err = svc.ComparisonList(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestService_Compare(t *testing.T) {
	pid := uuid.New()
	svc, _ := newTestService(mockProfiles{pid: {
		ID:          pid,
		Conditions:  []patient.Condition{{Name: "colorectal cancer"}},
		Medications: []patient.Medication{{Name: "Warfarin"}},
	}})
	ctx := context.Background()
	_, err := svc.AddToComparison(ctx, "u1", "224905")
	require.NoError(t, err)
	_, err = svc.AddToComparison(ctx, "u1", "1656052")
	require.NoError(t, err)

	scored, err := svc.Compare(ctx, "u1", &pid)
	require.NoError(t, err)
	require.Len(t, scored, 2)
	assert.Equal(t, "224905", scored[0].RxCUI)
	assert.Equal(t, 100-15-20+10, scored[0].Score)
	assert.Equal(t, 100, scored[1].Score)

	scored, err = svc.Compare(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, 85, scored[0].Score)

	missing := uuid.New()
	_, err = svc.Compare(ctx, "u1", &missing)
	assert.ErrorIs(t, err, patient.ErrNotFound)
}

func TestService_GetEnhanced(t *testing.T) {
	svc, _ := newTestService(nil)
	ins, err := svc.GetEnhanced(context.Background(), "1656052")
	require.NoError(t, err)
	assert.Equal(t, "1A", ins.EvidenceLevel)

	_, err = svc.GetEnhanced(context.Background(), "224905")
	assert.ErrorIs(t, err, ErrNoInsights)
}

func TestService_Upsert_Validation(t *testing.T) {
	svc, _ := newTestService(nil)
	assert.Error(t, svc.Upsert(context.Background(), &Drug{Name: "x"}))
	assert.Error(t, svc.Upsert(context.Background(), &Drug{RxCUI: "1"}))
}

func TestService_Search(t *testing.T) {
	svc, _ := newTestService(nil)
	items, total, err := svc.Search(context.Background(), "keytr", "", 25, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Pembrolizumab", items[0].Name)
}

func TestHandler_Comparison(t *testing.T) {
	svc, _ := newTestService(nil)
	h, e := NewHandler(svc), echo.New()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"rxcui":"40048"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(auth.WithIdentity(req.Context(), "u1", auth.RoleOncologist))
	rec := httptest.NewRecorder()
	require.NoError(t, h.AddToComparison(e.NewContext(req, rec)))

	var body struct {
		RxCUIs []string `json:"rxcuis"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"40048"}, body.RxCUIs)
}

func TestHandler_Comparison_NoIdentity(t *testing.T) {
	svc, _ := newTestService(nil)
	h, e := NewHandler(svc), echo.New()
	err := h.GetComparison(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder()))
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestHandler_GetDrug_NotFound(t *testing.T) {
	svc, _ := newTestService(nil)
	h, e := NewHandler(svc), echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("rxcui")
	c.SetParamValues("000")
	err := h.GetDrug(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, he.Code)
}
