package genomics

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fptr(v float64) *float64 { return &v }

func sampleReport() *Report {
	return &Report{
		ID:         uuid.New(),
		PatientID:  uuid.New(),
		LabName:    "Lab",
		TestName:   "Panel",
		TMB:        fptr(12.5),
		MSIStatus:  "MSS",
		ReportDate: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		Variants: []Variant{
			{ID: "v1", Gene: "TP53", VAF: 0.42},
			{ID: "v2", Gene: "EGFR", VAF: 0.18},
			{ID: "v3", Gene: "KRAS", VAF: 0.30},
			{ID: "v4", Gene: "ATM", VAF: 0.05},
		},
		Annotations: []Annotation{
			{VariantID: "v1", Significance: SignificancePathogenic, Tier: TierII},
			{VariantID: "v2", Significance: SignificancePathogenic, Tier: TierI, Therapies: []string{"Osimertinib"}},
			{VariantID: "v3", Significance: SignificanceUncertain, Tier: TierIII},
			{VariantID: "v2", Significance: SignificanceBenign, Tier: TierIV},
		},
		Scores: []Score{
			{VariantID: "v1", Score: 35},
			{VariantID: "v2", Score: 95, ApprovedTherapies: []string{"Erlotinib", "Osimertinib"}},
			{VariantID: "v3", Score: 20, ApprovedTherapies: []string{"Sotorasib"}},
		},
	}
}

func ids(items []InterpretedVariant) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestBuildIndex_FirstEntryWins(t *testing.T) {
	idx := BuildIndex(sampleReport())
	require.NotNil(t, idx.Annotation("v2"))
	assert.Equal(t, TierI, idx.Annotation("v2").Tier)
	assert.Nil(t, idx.Annotation("v4"))
	assert.Nil(t, idx.Score("v4"))
}

func TestInterpret_DefaultSortByScore(t *testing.T) {
	out, err := Interpret(sampleReport(), Filter{}, "")
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"v2", "v1", "v3", "v4"}, ids(out)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, out[0].Actionable)
	assert.True(t, out[1].Actionable, "tier II is actionable")
	assert.True(t, out[2].Actionable, "approved therapy is actionable")
	assert.False(t, out[3].Actionable)
}

func TestInterpret_SortKeys(t *testing.T) {
	tests := []struct {
		key  SortKey
		want []string
	}{
		{SortGene, []string{"v4", "v2", "v3", "v1"}},
		{SortVAF, []string{"v1", "v3", "v2", "v4"}},
		{SortTier, []string{"v2", "v1", "v3", "v4"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			out, err := Interpret(sampleReport(), Filter{}, tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(out))
		})
	}
}

func TestInterpret_InvalidSort(t *testing.T) {
	_, err := Interpret(sampleReport(), Filter{}, "position")
	assert.ErrorIs(t, err, ErrInvalidSort)
}

func TestInterpret_Filters(t *testing.T) {
	tests := []struct {
		name string
		f    Filter
		want []string
	}{
		{"gene prefix case-insensitive", Filter{Gene: "eg"}, []string{"v2"}},
		{"significance", Filter{Significance: []Significance{SignificanceUncertain}}, []string{"v3"}},
		{"min tier", Filter{MinTier: TierII}, []string{"v2", "v1"}},
		{"min score", Filter{MinScore: 30}, []string{"v2", "v1"}},
		{"actionable only", Filter{ActionableOnly: true}, []string{"v2", "v1", "v3"}},
		{"combined", Filter{MinTier: TierIII, MinScore: 25}, []string{"v2", "v1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Interpret(sampleReport(), tt.f, SortScore)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(out))
		})
	}
}

func TestFilter_Validate(t *testing.T) {
	assert.Error(t, Filter{MinTier: "V"}.Validate())
	assert.Error(t, Filter{Significance: []Significance{"maybe"}}.Validate())
	assert.Error(t, Filter{MinScore: 101}.Validate())
	assert.NoError(t, Filter{MinTier: TierIV, MinScore: 100}.Validate())
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleReport())
	assert.Equal(t, 4, s.VariantCount)
	assert.Equal(t, map[string]int{"I": 1, "II": 1, "III": 1, "IV": 0, "unclassified": 1}, s.ByTier)
	assert.Equal(t, 2, s.PathogenicCount)
	assert.Equal(t, 3, s.ActionableCount)
	assert.Equal(t, []string{"Erlotinib", "Osimertinib", "Sotorasib"}, s.Therapies)
	assert.True(t, s.TMBHigh)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(&Report{})
	assert.Zero(t, s.VariantCount)
	assert.Equal(t, 0, s.ByTier["unclassified"])
	assert.NotNil(t, s.Therapies)
	assert.False(t, s.TMBHigh)
}

func TestReport_Validate(t *testing.T) {
	r := sampleReport()
	require.NoError(t, r.Validate())

	r.Annotations = append(r.Annotations, Annotation{VariantID: "v9", Significance: SignificanceBenign})
	assert.Error(t, r.Validate())

	r = sampleReport()
	r.Variants = append(r.Variants, Variant{ID: "v1", Gene: "BRAF"})
	assert.Error(t, r.Validate())

	r = sampleReport()
	r.Variants[0].VAF = 1.5
	assert.Error(t, r.Validate())

	r = sampleReport()
	r.Scores[0].Score = 120
	assert.Error(t, r.Validate())
}

func TestGenerateReport_Deterministic(t *testing.T) {
	pid := uuid.New()
	a, b := GenerateReport(7, pid), GenerateReport(7, pid)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("same seed produced different reports:\n%s", diff)
	}
	require.NoError(t, a.Validate())
	assert.GreaterOrEqual(t, len(a.Variants), 4)
	assert.NotEqual(t, a.ID, GenerateReport(8, pid).ID)
}
