package opioid

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownFactor = errors.New("unknown risk factor")

type Tier string

const (
	TierLow      Tier = "low"
	TierModerate Tier = "moderate"
	TierHigh     Tier = "high"
	TierVeryHigh Tier = "very_high"
)

// Factor is one weighted risk factor. It matches when any keyword is a
// case-insensitive substring of a condition or medication name, or when the
// age falls inside [AgeMin, AgeMax].
type Factor struct {
	ID          string   `json:"id" yaml:"id"`
	Label       string   `json:"label" yaml:"label"`
	Weight      int      `json:"weight" yaml:"weight"`
	Conditions  []string `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Medications []string `json:"medications,omitempty" yaml:"medications,omitempty"`
	AgeMin      *int     `json:"age_min,omitempty" yaml:"age_min,omitempty"`
	AgeMax      *int     `json:"age_max,omitempty" yaml:"age_max,omitempty"`
}

func (f Factor) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("factor id is required")
	}
	if f.Weight <= 0 {
		return fmt.Errorf("factor %s: weight must be positive", f.ID)
	}
	if len(f.Conditions) == 0 && len(f.Medications) == 0 && f.AgeMin == nil && f.AgeMax == nil {
		return fmt.Errorf("factor %s: no match criteria", f.ID)
	}
	return nil
}

// Cutoffs are the inclusive upper scores of the low, moderate and high
// tiers. Anything above HighMax is very high.
type Cutoffs struct {
	LowMax      int `json:"low_max" yaml:"low_max"`
	ModerateMax int `json:"moderate_max" yaml:"moderate_max"`
	HighMax     int `json:"high_max" yaml:"high_max"`
}

func DefaultCutoffs() Cutoffs {
	return Cutoffs{LowMax: 2, ModerateMax: 5, HighMax: 8}
}

func (c Cutoffs) Validate() error {
	if c.LowMax < 0 || c.LowMax >= c.ModerateMax || c.ModerateMax >= c.HighMax {
		return fmt.Errorf("tier cutoffs must increase: low %d, moderate %d, high %d", c.LowMax, c.ModerateMax, c.HighMax)
	}
	return nil
}

func (c Cutoffs) Bucket(score int) Tier {
	switch {
	case score <= c.LowMax:
		return TierLow
	case score <= c.ModerateMax:
		return TierModerate
	case score <= c.HighMax:
		return TierHigh
	default:
		return TierVeryHigh
	}
}

func intPtr(v int) *int { return &v }

// DefaultFactors is the built-in weighted factor list.
func DefaultFactors() []Factor {
	return []Factor{
		{ID: "alcohol_abuse", Label: "Alcohol abuse", Weight: 3,
			Conditions: []string{"alcohol abuse", "alcohol use disorder", "alcohol dependence", "alcoholism"}},
		{ID: "illicit_drug_abuse", Label: "Illicit drug abuse", Weight: 4,
			Conditions: []string{"illicit drug", "cocaine", "heroin", "methamphetamine", "cannabis use disorder", "substance use disorder"}},
		{ID: "prescription_drug_abuse", Label: "Prescription drug abuse", Weight: 5,
			Conditions: []string{"prescription drug abuse", "prescription drug misuse", "opioid use disorder", "opioid abuse"}},
		{ID: "age_16_45", Label: "Age 16-45", Weight: 1, AgeMin: intPtr(16), AgeMax: intPtr(45)},
		{ID: "depression", Label: "Depression", Weight: 1,
			Conditions: []string{"depression", "depressive"}},
		{ID: "psychiatric_disease", Label: "Other psychiatric disease", Weight: 2,
			Conditions: []string{"bipolar", "schizophrenia", "attention deficit", "adhd", "obsessive-compulsive", "ocd"}},
		{ID: "benzodiazepine", Label: "Concurrent benzodiazepine", Weight: 2,
			Medications: []string{"benzodiazepine", "alprazolam", "lorazepam", "diazepam", "clonazepam", "temazepam", "midazolam", "chlordiazepoxide"}},
		{ID: "sleep_apnea", Label: "Sleep apnea", Weight: 1,
			Conditions: []string{"sleep apnea"}},
	}
}

// Subject is what factors are matched against. Age is -1 when unknown.
type Subject struct {
	Age         int      `json:"age"`
	Conditions  []string `json:"conditions"`
	Medications []string `json:"medications"`
}

type MatchedFactor struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Weight   int    `json:"weight"`
	Evidence string `json:"evidence"`
}

type Assessment struct {
	Score   int             `json:"score"`
	Tier    Tier            `json:"tier"`
	Matched []MatchedFactor `json:"matched"`
	MME     *MMEResult      `json:"mme,omitempty"`
}

// Match returns the evidence for f in s, or "" when f does not apply.
func (f Factor) Match(s Subject) string {
	if ev := firstContaining(s.Conditions, f.Conditions); ev != "" {
		return ev
	}
	if ev := firstContaining(s.Medications, f.Medications); ev != "" {
		return ev
	}
	if (f.AgeMin != nil || f.AgeMax != nil) && s.Age >= 0 {
		if (f.AgeMin == nil || s.Age >= *f.AgeMin) && (f.AgeMax == nil || s.Age <= *f.AgeMax) {
			return fmt.Sprintf("age %d", s.Age)
		}
	}
	return ""
}

func firstContaining(values, keywords []string) string {
	for _, v := range values {
		lv := strings.ToLower(v)
		for _, k := range keywords {
			if k != "" && strings.Contains(lv, strings.ToLower(k)) {
				return v
			}
		}
	}
	return ""
}

// Assess sums the weights of every factor matching s.
func Assess(factors []Factor, cutoffs Cutoffs, s Subject) Assessment {
	a := Assessment{Matched: []MatchedFactor{}}
	for _, f := range factors {
		if ev := f.Match(s); ev != "" {
			a.Score += f.Weight
			a.Matched = append(a.Matched, MatchedFactor{ID: f.ID, Label: f.Label, Weight: f.Weight, Evidence: ev})
		}
	}
	a.Tier = cutoffs.Bucket(a.Score)
	return a
}

// AssessFactors scores an explicit set of factor IDs.
func AssessFactors(factors []Factor, cutoffs Cutoffs, ids []string) (Assessment, error) {
	byID := make(map[string]Factor, len(factors))
	for _, f := range factors {
		byID[f.ID] = f
	}

	a := Assessment{Matched: []MatchedFactor{}}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		f, ok := byID[id]
		if !ok {
			return Assessment{}, fmt.Errorf("%w: %s", ErrUnknownFactor, id)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		a.Score += f.Weight
		a.Matched = append(a.Matched, MatchedFactor{ID: f.ID, Label: f.Label, Weight: f.Weight, Evidence: "reported"})
	}
	a.Tier = cutoffs.Bucket(a.Score)
	return a, nil
}
