package patient

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelect_MostRecentFirstDeduplicated(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	sel := Selection{UserID: "u1"}
	sel = Select(sel, a)
	sel = Select(sel, b)
	sel = Select(sel, c)
	sel = Select(sel, a)

	require.NotNil(t, sel.PatientID)
	assert.Equal(t, a, *sel.PatientID)
	assert.Equal(t, []uuid.UUID{a, c, b}, sel.Recent)
}

func TestSelect_CapsRecent(t *testing.T) {
	var sel Selection
	ids := make([]uuid.UUID, 15)
	for i := range ids {
		ids[i] = uuid.New()
		sel = Select(sel, ids[i])
	}

	assert.Len(t, sel.Recent, MaxRecent)
	assert.Equal(t, ids[14], sel.Recent[0])
	assert.Equal(t, ids[5], sel.Recent[MaxRecent-1])
}

func TestSelect_DoesNotShareBackingArray(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	first := Select(Selection{}, a)
	second := Select(first, b)

	assert.Equal(t, []uuid.UUID{a}, first.Recent)
	assert.Equal(t, []uuid.UUID{b, a}, second.Recent)
}

func TestForget(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	sel := Select(Select(Selection{}, a), b)

	sel = Forget(sel, b)
	assert.Nil(t, sel.PatientID)
	assert.Equal(t, []uuid.UUID{a}, sel.Recent)

	sel = Forget(sel, uuid.New())
	assert.Equal(t, []uuid.UUID{a}, sel.Recent)
}

func TestGenerate_Deterministic(t *testing.T) {
	first := Generate(42, 5)
	second := Generate(42, 5)
	require.Len(t, first, 5)
	assert.Equal(t, first, second)

	other := Generate(7, 5)
	assert.NotEqual(t, first[0].ID, other[0].ID)

	seen := map[string]bool{}
	for _, p := range first {
		assert.False(t, seen[p.MRN], "duplicate MRN %s", p.MRN)
		seen[p.MRN] = true
		assert.Len(t, p.LabValues, len(mockLabs))
		for _, m := range p.Medications {
			assert.Equal(t, IsOpioid(m.Name), m.Opioid)
		}
	}
}
