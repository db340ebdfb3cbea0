package genomics

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("report not found")
	ErrInvalidSort = errors.New("invalid sort key")
)

type Significance string

const (
	SignificancePathogenic       Significance = "pathogenic"
	SignificanceLikelyPathogenic Significance = "likely_pathogenic"
	SignificanceUncertain        Significance = "vus"
	SignificanceLikelyBenign     Significance = "likely_benign"
	SignificanceBenign           Significance = "benign"
)

func (s Significance) Valid() bool {
	switch s {
	case SignificancePathogenic, SignificanceLikelyPathogenic, SignificanceUncertain,
		SignificanceLikelyBenign, SignificanceBenign:
		return true
	}
	return false
}

// IsPathogenic returns true for pathogenic or likely pathogenic calls.
func (s Significance) IsPathogenic() bool {
	return s == SignificancePathogenic || s == SignificanceLikelyPathogenic
}

// Tier is an AMP/ASCO/CAP somatic variant tier. Tier I is the strongest.
type Tier string

const (
	TierI   Tier = "I"
	TierII  Tier = "II"
	TierIII Tier = "III"
	TierIV  Tier = "IV"
)

// Rank is 1 for tier I through 4 for tier IV, and 0 for anything else.
func (t Tier) Rank() int {
	switch t {
	case TierI:
		return 1
	case TierII:
		return 2
	case TierIII:
		return 3
	case TierIV:
		return 4
	}
	return 0
}

type Variant struct {
	ID          string  `json:"id"`
	Gene        string  `json:"gene"`
	Chromosome  string  `json:"chromosome,omitempty"`
	Position    int64   `json:"position,omitempty"`
	Ref         string  `json:"ref,omitempty"`
	Alt         string  `json:"alt,omitempty"`
	HGVSc       string  `json:"hgvs_c,omitempty"`
	HGVSp       string  `json:"hgvs_p,omitempty"`
	Consequence string  `json:"consequence,omitempty"`
	VAF         float64 `json:"vaf"`
	Depth       int     `json:"depth,omitempty"`
}

type Annotation struct {
	VariantID    string       `json:"variant_id"`
	Significance Significance `json:"significance"`
	Tier         Tier         `json:"tier"`
	Therapies    []string     `json:"therapies,omitempty"`
	Evidence     string       `json:"evidence,omitempty"`
}

type Score struct {
	VariantID         string   `json:"variant_id"`
	Score             int      `json:"score"`
	EvidenceLevel     string   `json:"evidence_level,omitempty"`
	ApprovedTherapies []string `json:"approved_therapies,omitempty"`
	TrialCount        int      `json:"trial_count"`
}

type Report struct {
	ID          uuid.UUID    `json:"id"`
	PatientID   uuid.UUID    `json:"patient_id"`
	LabName     string       `json:"lab_name"`
	TestName    string       `json:"test_name"`
	Specimen    string       `json:"specimen,omitempty"`
	TumorPurity *float64     `json:"tumor_purity,omitempty"`
	TMB         *float64     `json:"tmb,omitempty"`
	MSIStatus   string       `json:"msi_status,omitempty"`
	ReportDate  time.Time    `json:"report_date"`
	Variants    []Variant    `json:"variants"`
	Annotations []Annotation `json:"annotations"`
	Scores      []Score      `json:"scores"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Validate checks the report is internally consistent: variant IDs are
// unique, and annotations and scores only reference known variants.
func (r *Report) Validate() error {
	if r.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if r.ReportDate.IsZero() {
		return fmt.Errorf("report_date is required")
	}
	ids := make(map[string]bool, len(r.Variants))
	for _, v := range r.Variants {
		if v.ID == "" || v.Gene == "" {
			return fmt.Errorf("variant id and gene are required")
		}
		if ids[v.ID] {
			return fmt.Errorf("duplicate variant id %s", v.ID)
		}
		if v.VAF < 0 || v.VAF > 1 {
			return fmt.Errorf("variant %s: vaf must be between 0 and 1", v.ID)
		}
		ids[v.ID] = true
	}
	for _, a := range r.Annotations {
		if !ids[a.VariantID] {
			return fmt.Errorf("annotation references unknown variant %s", a.VariantID)
		}
		if !a.Significance.Valid() {
			return fmt.Errorf("annotation %s: invalid significance %q", a.VariantID, a.Significance)
		}
		if a.Tier != "" && a.Tier.Rank() == 0 {
			return fmt.Errorf("annotation %s: invalid tier %q", a.VariantID, a.Tier)
		}
	}
	for _, s := range r.Scores {
		if !ids[s.VariantID] {
			return fmt.Errorf("score references unknown variant %s", s.VariantID)
		}
		if s.Score < 0 || s.Score > 100 {
			return fmt.Errorf("score %s: must be between 0 and 100", s.VariantID)
		}
	}
	return nil
}
