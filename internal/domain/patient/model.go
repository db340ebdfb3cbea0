package patient

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("patient not found")
	ErrUnknownAction = errors.New("unknown action")
)

type Demographics struct {
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Sex         string     `json:"sex,omitempty"`
	ECOG        *int       `json:"ecog,omitempty"`
	HeightCM    *float64   `json:"height_cm,omitempty"`
	WeightKG    *float64   `json:"weight_kg,omitempty"`
}

type Condition struct {
	Code      string     `json:"code,omitempty"`
	Name      string     `json:"name"`
	Status    string     `json:"status,omitempty"`
	OnsetDate *time.Time `json:"onset_date,omitempty"`
}

type Medication struct {
	Name            string  `json:"name"`
	RxCUI           string  `json:"rxcui,omitempty"`
	Dose            float64 `json:"dose,omitempty"`
	Unit            string  `json:"unit,omitempty"`
	FrequencyPerDay float64 `json:"frequency_per_day,omitempty"`
	Route           string  `json:"route,omitempty"`
	Opioid          bool    `json:"opioid"`
}

type Allergy struct {
	Substance string `json:"substance"`
	Reaction  string `json:"reaction,omitempty"`
	Severity  string `json:"severity,omitempty"`
}

type LabValue struct {
	Code        string    `json:"code"`
	Name        string    `json:"name,omitempty"`
	Value       float64   `json:"value"`
	Unit        string    `json:"unit,omitempty"`
	CollectedAt time.Time `json:"collected_at"`
}

type Treatment struct {
	Regimen   string     `json:"regimen"`
	Line      int        `json:"line,omitempty"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Response  string     `json:"response,omitempty"`
}

// Profile is the aggregate a clinician works on. Sub-collections are always
// replaced wholesale.
type Profile struct {
	ID               uuid.UUID    `json:"id"`
	MRN              string       `json:"mrn"`
	SiteID           string       `json:"site_id,omitempty"`
	Demographics     Demographics `json:"demographics"`
	Conditions       []Condition  `json:"conditions"`
	Medications      []Medication `json:"medications"`
	Allergies        []Allergy    `json:"allergies"`
	LabValues        []LabValue   `json:"lab_values"`
	TreatmentHistory []Treatment  `json:"treatment_history"`
	Version          int          `json:"version"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// Age returns whole years at now, or -1 when the date of birth is unknown.
func (p *Profile) Age(now time.Time) int {
	dob := p.Demographics.DateOfBirth
	if dob == nil {
		return -1
	}
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	return years
}

// Clone returns a deep copy of p.
func (p *Profile) Clone() *Profile {
	out := *p
	out.Conditions = cloneSlice(p.Conditions)
	out.Medications = cloneSlice(p.Medications)
	out.Allergies = cloneSlice(p.Allergies)
	out.LabValues = cloneSlice(p.LabValues)
	out.TreatmentHistory = cloneSlice(p.TreatmentHistory)
	return &out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

// LatestLabs maps each lab code to its most recent value.
func LatestLabs(p *Profile) map[string]LabValue {
	out := make(map[string]LabValue, len(p.LabValues))
	for _, lv := range p.LabValues {
		code := strings.ToLower(lv.Code)
		if cur, ok := out[code]; !ok || lv.CollectedAt.After(cur.CollectedAt) {
			out[code] = lv
		}
	}
	return out
}

// LatestLabValues is LatestLabs reduced to the numeric values.
func LatestLabValues(p *Profile) map[string]float64 {
	latest := LatestLabs(p)
	out := make(map[string]float64, len(latest))
	for code, lv := range latest {
		out[code] = lv.Value
	}
	return out
}

var opioidNames = []string{
	"morphine", "oxycodone", "hydrocodone", "hydromorphone", "fentanyl",
	"methadone", "codeine", "tramadol", "tapentadol", "oxymorphone",
	"buprenorphine", "meperidine",
}

// IsOpioid reports whether a medication name refers to an opioid.
func IsOpioid(name string) bool {
	n := strings.ToLower(name)
	for _, o := range opioidNames {
		if strings.Contains(n, o) {
			return true
		}
	}
	return false
}
