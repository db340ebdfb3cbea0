package drug

import (
	"fmt"
	"strings"

	"github.com/oncodash/oncodash/internal/domain/patient"
)

const (
	scoreBase              = 100
	penaltyContraindicated = 40
	penaltyInteraction     = 20
	penaltyBlackBox        = 15
	bonusIndication        = 10
)

// Scored is a drug with its comparison score for a patient. The score is
// computed on read and never stored.
type Scored struct {
	Drug
	Score   int      `json:"score"`
	Reasons []string `json:"reasons"`
}

// overlaps reports a case-insensitive substring match in either direction.
func overlaps(a, b string) bool {
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func anyOverlap(s string, list []string) bool {
	for _, v := range list {
		if overlaps(s, v) {
			return true
		}
	}
	return false
}

// ComparisonScore rates d for p on a 0-100 scale. Each contraindication
// matching a condition or allergy costs 40, each current medication named
// in the contraindications costs 20, a black-box warning costs 15, and each
// indication matching a condition adds 10. A nil patient only gets the
// black-box penalty.
func ComparisonScore(d Drug, p *patient.Profile) (int, []string) {
	score := scoreBase
	reasons := []string{}

	if d.BlackBoxWarning != "" {
		score -= penaltyBlackBox
		reasons = append(reasons, "black box warning")
	}

	if p != nil {
		var problems []string
		for _, c := range p.Conditions {
			problems = append(problems, c.Name)
		}
		for _, a := range p.Allergies {
			problems = append(problems, a.Substance)
		}

		for _, ci := range d.Contraindications {
			if anyOverlap(ci, problems) {
				score -= penaltyContraindicated
				reasons = append(reasons, fmt.Sprintf("contraindicated: %s", ci))
			}
		}
		for _, m := range p.Medications {
			if anyOverlap(m.Name, d.Contraindications) {
				score -= penaltyInteraction
				reasons = append(reasons, fmt.Sprintf("current medication %s is contraindicated", m.Name))
			}
		}
		for _, ind := range d.Indications {
			for _, c := range p.Conditions {
				if overlaps(ind, c.Name) {
					score += bonusIndication
					reasons = append(reasons, fmt.Sprintf("indicated for %s", c.Name))
					break
				}
			}
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, reasons
}
