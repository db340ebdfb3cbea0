package drug

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oncodash/oncodash/internal/domain/patient"
)

func TestAddToList_Idempotent(t *testing.T) {
	list, added := AddToList(nil, "a")
	assert.True(t, added)
	list, _ = AddToList(list, "b")
	list, added = AddToList(list, "a")
	assert.False(t, added)
	list, _ = AddToList(list, "c")
	assert.Equal(t, []string{"a", "b", "c"}, list)
}

func TestAddToList_DoesNotAlias(t *testing.T) {
	orig := make([]string, 2, 8)
	copy(orig, []string{"a", "b"})
	next, _ := AddToList(orig, "c")
	next[0] = "z"
	assert.Equal(t, "a", orig[0])
}

func TestRemoveFromList_PreservesOrder(t *testing.T) {
	list := []string{"a", "b", "c", "d"}
	next, removed := RemoveFromList(list, "b")
	assert.True(t, removed)
	assert.Equal(t, []string{"a", "c", "d"}, next)
	assert.Equal(t, []string{"a", "b", "c", "d"}, list)

	same, removed := RemoveFromList(next, "zz")
	assert.False(t, removed)
	assert.Equal(t, next, same)
}

func TestComparisonScore(t *testing.T) {
	capecitabine := Drug{
		Name:              "Capecitabine",
		Indications:       []string{"colorectal cancer", "breast cancer"},
		Contraindications: []string{"DPD deficiency", "severe renal impairment", "warfarin"},
		BlackBoxWarning:   "warfarin interaction",
	}

	tests := []struct {
		name string
		p    *patient.Profile
		want int
	}{
		{"no patient: black box only", nil, 85},
		{"indication bonus", &patient.Profile{
			Conditions: []patient.Condition{{Name: "Metastatic colorectal cancer"}},
		}, 95},
		{"condition contraindication", &patient.Profile{
			Conditions: []patient.Condition{{Name: "Severe renal impairment"}},
		}, 45},
		{"medication contraindication", &patient.Profile{
			Medications: []patient.Medication{{Name: "Warfarin"}},
		}, 65},
		{"clamped at zero", &patient.Profile{
			Conditions:  []patient.Condition{{Name: "severe renal impairment"}, {Name: "DPD deficiency"}},
			Medications: []patient.Medication{{Name: "warfarin"}},
			Allergies:   []patient.Allergy{{Substance: "Warfarin"}},
		}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reasons := ComparisonScore(capecitabine, tt.p)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, reasons)
		})
	}
}

func TestComparisonScore_ClampedAtHundred(t *testing.T) {
	d := Drug{Indications: []string{"lung cancer", "melanoma"}}
	p := &patient.Profile{Conditions: []patient.Condition{{Name: "melanoma"}, {Name: "lung cancer"}}}
	got, reasons := ComparisonScore(d, p)
	assert.Equal(t, 100, got)
	assert.Len(t, reasons, 2)
}

func TestComparisonScore_IgnoresEmptyStrings(t *testing.T) {
	d := Drug{Contraindications: []string{""}}
	p := &patient.Profile{Conditions: []patient.Condition{{Name: ""}}}
	got, _ := ComparisonScore(d, p)
	assert.Equal(t, 100, got)
}

func TestEscapeLike(t *testing.T) {
	tests := map[string]string{
		"cisplatin": "cisplatin",
		"100%":      `100\%`,
		"5_fu":      `5\_fu`,
		`a\b`:       `a\\b`,
	}
	for in, want := range tests {
		assert.Equal(t, want, escapeLike(in), in)
	}
}
