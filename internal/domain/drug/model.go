package drug

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound   = errors.New("drug not found")
	ErrNoInsights = errors.New("drug has no clinical insights")
)

// Insights is the enhanced clinical detail shown alongside a drug.
type Insights struct {
	MechanismOfAction    string   `json:"mechanism_of_action,omitempty"`
	CommonAdverseEvents  []string `json:"common_adverse_events,omitempty"`
	MonitoringParameters []string `json:"monitoring_parameters,omitempty"`
	EfficacyNotes        string   `json:"efficacy_notes,omitempty"`
	EvidenceLevel        string   `json:"evidence_level,omitempty"`
}

type Drug struct {
	RxCUI             string    `json:"rxcui"`
	Name              string    `json:"name"`
	GenericName       string    `json:"generic_name,omitempty"`
	BrandNames        []string  `json:"brand_names"`
	DrugClass         string    `json:"drug_class,omitempty"`
	Indications       []string  `json:"indications"`
	Contraindications []string  `json:"contraindications"`
	BlackBoxWarning   string    `json:"black_box_warning,omitempty"`
	Insights          *Insights `json:"insights,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (d *Drug) Validate() error {
	d.RxCUI = strings.TrimSpace(d.RxCUI)
	d.Name = strings.TrimSpace(d.Name)
	if d.RxCUI == "" {
		return fmt.Errorf("rxcui is required")
	}
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}
	if d.BrandNames == nil {
		d.BrandNames = []string{}
	}
	if d.Indications == nil {
		d.Indications = []string{}
	}
	if d.Contraindications == nil {
		d.Contraindications = []string{}
	}
	return nil
}

// Matches reports whether q is a case-insensitive substring of any of the
// drug's names.
func (d *Drug) Matches(q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(d.Name), q) || strings.Contains(strings.ToLower(d.GenericName), q) {
		return true
	}
	for _, b := range d.BrandNames {
		if strings.Contains(strings.ToLower(b), q) {
			return true
		}
	}
	return false
}

type Popularity struct {
	RxCUI string `json:"rxcui"`
	Name  string `json:"name,omitempty"`
	Count int64  `json:"count"`
}
