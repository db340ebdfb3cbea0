package patient

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

var mockNamespace = uuid.MustParse("6f1c2a9e-4b1d-4f5e-9a51-0c3e7d2b8a10")

var (
	mockFirstNames = []string{"Ana", "Ben", "Chloe", "Dev", "Elena", "Femi", "Grace", "Hiro", "Ines", "Jonas"}
	mockLastNames  = []string{"Alvarez", "Brooks", "Chen", "Dubois", "Eze", "Fischer", "Gupta", "Haddad", "Ivanova", "Jensen"}
	mockConditions = []Condition{
		{Code: "C50.9", Name: "Breast cancer"},
		{Code: "C34.90", Name: "Non-small cell lung cancer"},
		{Code: "C18.9", Name: "Colon cancer"},
		{Code: "F32.9", Name: "Depression"},
		{Code: "G47.33", Name: "Obstructive sleep apnea"},
		{Code: "N18.3", Name: "Chronic kidney disease stage 3"},
		{Code: "F10.20", Name: "Alcohol abuse"},
		{Code: "I10", Name: "Hypertension"},
	}
	mockMedications = []Medication{
		{Name: "Oxycodone", RxCUI: "7804", Dose: 10, Unit: "mg", FrequencyPerDay: 4, Route: "oral"},
		{Name: "Morphine sulfate ER", RxCUI: "7052", Dose: 30, Unit: "mg", FrequencyPerDay: 2, Route: "oral"},
		{Name: "Lorazepam", RxCUI: "6470", Dose: 1, Unit: "mg", FrequencyPerDay: 2, Route: "oral"},
		{Name: "Ondansetron", RxCUI: "26225", Dose: 8, Unit: "mg", FrequencyPerDay: 3, Route: "oral"},
		{Name: "Lisinopril", RxCUI: "29046", Dose: 10, Unit: "mg", FrequencyPerDay: 1, Route: "oral"},
		{Name: "Sertraline", RxCUI: "36437", Dose: 50, Unit: "mg", FrequencyPerDay: 1, Route: "oral"},
	}
	mockAllergies = []Allergy{
		{Substance: "Penicillin", Reaction: "Rash", Severity: "moderate"},
		{Substance: "Sulfonamide", Reaction: "Hives", Severity: "mild"},
		{Substance: "Platinum compounds", Reaction: "Anaphylaxis", Severity: "severe"},
	}
	mockRegimens = []string{"FOLFOX", "AC-T", "Carboplatin/Pemetrexed", "Pembrolizumab", "Capecitabine"}
	mockLabs     = []struct {
		code, name, unit string
		lo, hi           float64
	}{
		{"anc", "Absolute neutrophil count", "cells/uL", 800, 4500},
		{"platelets", "Platelets", "/uL", 60000, 350000},
		{"hemoglobin", "Hemoglobin", "g/dL", 7, 15},
		{"crcl", "Creatinine clearance", "mL/min", 35, 120},
		{"bilirubin", "Total bilirubin", "mg/dL", 0.3, 2.4},
		{"alt", "ALT", "U/L", 10, 180},
	}
)

// Generate returns n demo profiles. The same seed always yields the same
// profiles, IDs included.
func Generate(seed int64, n int) []*Profile {
	rng := rand.New(rand.NewSource(seed))
	base := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)

	out := make([]*Profile, 0, n)
	for i := 0; i < n; i++ {
		dob := base.AddDate(-(25 + rng.Intn(55)), -rng.Intn(12), -rng.Intn(28))
		ecog := rng.Intn(4)
		height := float64(150 + rng.Intn(40))
		weight := float64(50 + rng.Intn(50))
		sex := "female"
		if rng.Intn(2) == 1 {
			sex = "male"
		}

		p := &Profile{
			ID:  uuid.NewSHA1(mockNamespace, []byte(fmt.Sprintf("%d/%d", seed, i))),
			MRN: fmt.Sprintf("MRN-%d-%05d", seed, i+1),
			Demographics: Demographics{
				FirstName:   mockFirstNames[rng.Intn(len(mockFirstNames))],
				LastName:    mockLastNames[rng.Intn(len(mockLastNames))],
				DateOfBirth: &dob,
				Sex:         sex,
				ECOG:        &ecog,
				HeightCM:    &height,
				WeightKG:    &weight,
			},
			Conditions:       pick(rng, mockConditions, 1+rng.Intn(3)),
			Medications:      flagOpioids(pick(rng, mockMedications, rng.Intn(4))),
			Allergies:        pick(rng, mockAllergies, rng.Intn(2)),
			TreatmentHistory: []Treatment{},
			CreatedAt:        base,
			UpdatedAt:        base,
		}

		for _, l := range mockLabs {
			p.LabValues = append(p.LabValues, LabValue{
				Code:        l.code,
				Name:        l.name,
				Unit:        l.unit,
				Value:       roundTo(l.lo+rng.Float64()*(l.hi-l.lo), 1),
				CollectedAt: base.Add(-time.Duration(rng.Intn(72)) * time.Hour),
			})
		}

		for line := 1; line <= rng.Intn(3); line++ {
			start := base.AddDate(0, -6*line, 0)
			p.TreatmentHistory = append(p.TreatmentHistory, Treatment{
				Regimen:   mockRegimens[rng.Intn(len(mockRegimens))],
				Line:      line,
				StartDate: &start,
				Response:  []string{"complete", "partial", "stable", "progression"}[rng.Intn(4)],
			})
		}

		out = append(out, p)
	}
	return out
}

// pick returns k distinct elements of src in source order.
func pick[T any](rng *rand.Rand, src []T, k int) []T {
	if k > len(src) {
		k = len(src)
	}
	idx := rng.Perm(len(src))[:k]
	chosen := make([]bool, len(src))
	for _, i := range idx {
		chosen[i] = true
	}
	out := make([]T, 0, k)
	for i, v := range src {
		if chosen[i] {
			out = append(out, v)
		}
	}
	return out
}

func roundTo(v float64, places int) float64 {
	p := 1.0
	for i := 0; i < places; i++ {
		p *= 10
	}
	return float64(int64(v*p+0.5)) / p
}
