package genomics

import (
	"fmt"
	"sort"
	"strings"
)

// Index joins a report's annotations and scores to variants by variant ID.
// The first entry for an ID wins.
type Index struct {
	annotations map[string]*Annotation
	scores      map[string]*Score
}

func BuildIndex(r *Report) *Index {
	idx := &Index{
		annotations: make(map[string]*Annotation, len(r.Annotations)),
		scores:      make(map[string]*Score, len(r.Scores)),
	}
	for i := range r.Annotations {
		a := &r.Annotations[i]
		if _, ok := idx.annotations[a.VariantID]; !ok {
			idx.annotations[a.VariantID] = a
		}
	}
	for i := range r.Scores {
		s := &r.Scores[i]
		if _, ok := idx.scores[s.VariantID]; !ok {
			idx.scores[s.VariantID] = s
		}
	}
	return idx
}

func (idx *Index) Annotation(variantID string) *Annotation { return idx.annotations[variantID] }
func (idx *Index) Score(variantID string) *Score           { return idx.scores[variantID] }

// InterpretedVariant is a variant with its annotation and score joined in.
type InterpretedVariant struct {
	Variant
	Annotation *Annotation `json:"annotation,omitempty"`
	Score      *Score      `json:"actionability,omitempty"`
	Actionable bool        `json:"actionable"`
}

func (iv InterpretedVariant) tierRank() int {
	if iv.Annotation == nil {
		return 0
	}
	return iv.Annotation.Tier.Rank()
}

func (iv InterpretedVariant) score() int {
	if iv.Score == nil {
		return -1
	}
	return iv.Score.Score
}

// actionable: tier I/II, or at least one approved therapy.
func actionable(a *Annotation, s *Score) bool {
	if a != nil {
		if r := a.Tier.Rank(); r == 1 || r == 2 {
			return true
		}
	}
	return s != nil && len(s.ApprovedTherapies) > 0
}

// Filter narrows interpreted variants. Zero values disable a criterion.
// MinTier keeps variants at least as strong as the given tier, so "II"
// keeps tiers I and II.
type Filter struct {
	Gene           string         `json:"gene,omitempty"`
	Significance   []Significance `json:"significance,omitempty"`
	MinTier        Tier           `json:"min_tier,omitempty"`
	MinScore       int            `json:"min_score,omitempty"`
	ActionableOnly bool           `json:"actionable_only,omitempty"`
}

func (f Filter) Validate() error {
	if f.MinTier != "" && f.MinTier.Rank() == 0 {
		return fmt.Errorf("invalid min_tier %q", f.MinTier)
	}
	for _, s := range f.Significance {
		if !s.Valid() {
			return fmt.Errorf("invalid significance %q", s)
		}
	}
	if f.MinScore < 0 || f.MinScore > 100 {
		return fmt.Errorf("min_score must be between 0 and 100")
	}
	return nil
}

func (f Filter) match(iv InterpretedVariant) bool {
	if f.Gene != "" && !strings.HasPrefix(strings.ToUpper(iv.Gene), strings.ToUpper(f.Gene)) {
		return false
	}
	if len(f.Significance) > 0 {
		if iv.Annotation == nil {
			return false
		}
		found := false
		for _, s := range f.Significance {
			if iv.Annotation.Significance == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.MinTier != "" {
		r := iv.tierRank()
		if r == 0 || r > f.MinTier.Rank() {
			return false
		}
	}
	if f.MinScore > 0 && iv.score() < f.MinScore {
		return false
	}
	if f.ActionableOnly && !iv.Actionable {
		return false
	}
	return true
}

type SortKey string

const (
	SortScore SortKey = "score"
	SortGene  SortKey = "gene"
	SortVAF   SortKey = "vaf"
	SortTier  SortKey = "tier"
)

func lessGene(a, b InterpretedVariant) bool {
	ga, gb := strings.ToUpper(a.Gene), strings.ToUpper(b.Gene)
	if ga != gb {
		return ga < gb
	}
	return a.ID < b.ID
}

// Interpret joins, filters and sorts the report's variants. An empty sort
// key sorts by score, highest first. Unscored and untiered variants sort
// last.
func Interpret(r *Report, f Filter, key SortKey) ([]InterpretedVariant, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	var less func(a, b InterpretedVariant) bool
	switch key {
	case "", SortScore:
		less = func(a, b InterpretedVariant) bool {
			if a.score() != b.score() {
				return a.score() > b.score()
			}
			return lessGene(a, b)
		}
	case SortGene:
		less = lessGene
	case SortVAF:
		less = func(a, b InterpretedVariant) bool {
			if a.VAF != b.VAF {
				return a.VAF > b.VAF
			}
			return lessGene(a, b)
		}
	case SortTier:
		less = func(a, b InterpretedVariant) bool {
			ra, rb := a.tierRank(), b.tierRank()
			if ra != rb {
				if ra == 0 || rb == 0 {
					return rb == 0
				}
				return ra < rb
			}
			return lessGene(a, b)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidSort, key)
	}

	idx := BuildIndex(r)
	out := make([]InterpretedVariant, 0, len(r.Variants))
	for _, v := range r.Variants {
		a, s := idx.Annotation(v.ID), idx.Score(v.ID)
		iv := InterpretedVariant{Variant: v, Annotation: a, Score: s, Actionable: actionable(a, s)}
		if f.match(iv) {
			out = append(out, iv)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out, nil
}

// TMBHighCutoff is the mutations-per-megabase level reported as TMB-high.
const TMBHighCutoff = 10.0

type Summary struct {
	VariantCount    int            `json:"variant_count"`
	ByTier          map[string]int `json:"by_tier"`
	PathogenicCount int            `json:"pathogenic_count"`
	ActionableCount int            `json:"actionable_count"`
	Therapies       []string       `json:"therapies"`
	TMB             *float64       `json:"tmb,omitempty"`
	TMBHigh         bool           `json:"tmb_high"`
	MSIStatus       string         `json:"msi_status,omitempty"`
}

// Summarize counts variants per tier and collects the distinct therapies
// named by annotations and actionability scores.
func Summarize(r *Report) Summary {
	s := Summary{
		VariantCount: len(r.Variants),
		ByTier:       map[string]int{"I": 0, "II": 0, "III": 0, "IV": 0, "unclassified": 0},
		Therapies:    []string{},
		TMB:          r.TMB,
		MSIStatus:    r.MSIStatus,
	}
	if r.TMB != nil && *r.TMB >= TMBHighCutoff {
		s.TMBHigh = true
	}

	idx := BuildIndex(r)
	therapies := map[string]bool{}
	for _, v := range r.Variants {
		a, sc := idx.Annotation(v.ID), idx.Score(v.ID)
		if a != nil && a.Tier.Rank() > 0 {
			s.ByTier[string(a.Tier)]++
		} else {
			s.ByTier["unclassified"]++
		}
		if a != nil && a.Significance.IsPathogenic() {
			s.PathogenicCount++
		}
		if actionable(a, sc) {
			s.ActionableCount++
		}
		if a != nil {
			for _, t := range a.Therapies {
				therapies[t] = true
			}
		}
		if sc != nil {
			for _, t := range sc.ApprovedTherapies {
				therapies[t] = true
			}
		}
	}
	for t := range therapies {
		s.Therapies = append(s.Therapies, t)
	}
	sort.Strings(s.Therapies)
	return s
}
