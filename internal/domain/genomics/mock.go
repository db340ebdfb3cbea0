package genomics

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

var mockNamespace = uuid.MustParse("0b8e6a52-3c4f-4d8e-a1f2-9e7c5b3d1a64")

type mockVariant struct {
	gene, hgvsp, consequence string
	significance             Significance
	tier                     Tier
	therapies                []string
	score                    int
	evidence                 string
	trials                   int
}

var mockCatalog = []mockVariant{
	{"EGFR", "p.L858R", "missense", SignificancePathogenic, TierI, []string{"Osimertinib", "Erlotinib"}, 95, "A", 42},
	{"KRAS", "p.G12C", "missense", SignificancePathogenic, TierI, []string{"Sotorasib", "Adagrasib"}, 90, "A", 35},
	{"BRAF", "p.V600E", "missense", SignificancePathogenic, TierI, []string{"Dabrafenib", "Trametinib"}, 92, "A", 51},
	{"PIK3CA", "p.H1047R", "missense", SignificancePathogenic, TierI, []string{"Alpelisib"}, 80, "A", 18},
	{"ERBB2", "amplification", "copy_number_gain", SignificancePathogenic, TierI, []string{"Trastuzumab", "Trastuzumab deruxtecan"}, 88, "A", 27},
	{"TP53", "p.R273H", "missense", SignificancePathogenic, TierII, nil, 35, "C", 12},
	{"BRCA2", "p.K3326*", "stop_gained", SignificanceLikelyPathogenic, TierII, []string{"Olaparib"}, 70, "D", 2},
	{"ATM", "p.R3008C", "missense", SignificanceUncertain, TierIII, nil, 15, "D", 4},
	{"ARID1A", "p.Q586*", "stop_gained", SignificanceLikelyPathogenic, TierII, nil, 40, "C", 6},
	{"STK11", "p.F354L", "missense", SignificanceUncertain, TierIII, nil, 12, "D", 1},
	{"CDKN2A", "deletion", "copy_number_loss", SignificancePathogenic, TierII, []string{"Palbociclib"}, 55, "B", 9},
	{"NF1", "p.R1947*", "stop_gained", SignificanceLikelyPathogenic, TierII, nil, 30, "C", 3},
	{"APC", "p.R1450*", "stop_gained", SignificancePathogenic, TierII, nil, 25, "C", 2},
	{"POLE", "p.V411L", "missense", SignificanceBenign, TierIV, nil, 5, "D", 0},
}

var mockChromosomes = map[string]string{
	"EGFR": "7", "KRAS": "12", "BRAF": "7", "PIK3CA": "3", "ERBB2": "17", "TP53": "17", "BRCA2": "13",
	"ATM": "11", "ARID1A": "1", "STK11": "19", "CDKN2A": "9", "NF1": "17", "APC": "5", "POLE": "12",
}

// GenerateReport builds a demo report for a patient. The same seed and
// patient always produce the same report.
func GenerateReport(seed int64, patientID uuid.UUID) *Report {
	rng := rand.New(rand.NewSource(seed))
	n := 4 + rng.Intn(6)
	purity := float64(20+rng.Intn(70)) / 100
	tmb := float64(rng.Intn(250)) / 10
	msi := "MSS"
	if tmb >= 20 {
		msi = "MSI-H"
	}

	r := &Report{
		ID:          uuid.NewSHA1(mockNamespace, []byte(fmt.Sprintf("%s/%d", patientID, seed))),
		PatientID:   patientID,
		LabName:     "Demo Molecular Laboratory",
		TestName:    "Comprehensive Solid Tumor Panel (324 genes)",
		Specimen:    "FFPE tumor tissue",
		TumorPurity: &purity,
		TMB:         &tmb,
		MSIStatus:   msi,
		ReportDate:  time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC).AddDate(0, 0, rng.Intn(120)),
		Variants:    []Variant{},
		Annotations: []Annotation{},
		Scores:      []Score{},
	}

	for i, ci := range rng.Perm(len(mockCatalog))[:n] {
		m := mockCatalog[ci]
		id := fmt.Sprintf("v%02d", i+1)
		r.Variants = append(r.Variants, Variant{
			ID:          id,
			Gene:        m.gene,
			Chromosome:  mockChromosomes[m.gene],
			Position:    int64(1_000_000 + rng.Intn(100_000_000)),
			HGVSp:       m.hgvsp,
			Consequence: m.consequence,
			VAF:         float64(5+rng.Intn(55)) / 100,
			Depth:       200 + rng.Intn(1200),
		})
		// Leave roughly one in six variants unannotated.
		if rng.Intn(6) == 0 {
			continue
		}
		r.Annotations = append(r.Annotations, Annotation{
			VariantID:    id,
			Significance: m.significance,
			Tier:         m.tier,
			Therapies:    m.therapies,
			Evidence:     fmt.Sprintf("Level %s evidence", m.evidence),
		})
		r.Scores = append(r.Scores, Score{
			VariantID:         id,
			Score:             m.score,
			EvidenceLevel:     m.evidence,
			ApprovedTherapies: m.therapies,
			TrialCount:        m.trials,
		})
	}
	return r
}
