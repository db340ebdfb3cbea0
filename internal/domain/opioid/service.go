package opioid

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/oncodash/oncodash/internal/domain/patient"
)

// RuleSource supplies the active factor list, tier cutoffs and MME limits.
type RuleSource interface {
	OpioidFactors() []Factor
	OpioidCutoffs() Cutoffs
	MMELimits() MMELimits
}

type defaultRules struct{}

func (defaultRules) OpioidFactors() []Factor { return DefaultFactors() }
func (defaultRules) OpioidCutoffs() Cutoffs  { return DefaultCutoffs() }
func (defaultRules) MMELimits() MMELimits    { return DefaultMMELimits() }

type ProfileReader interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Profile, error)
}

type Service struct {
	rules    RuleSource
	patients ProfileReader
	now      func() time.Time
}

func NewService(rules RuleSource, patients ProfileReader) *Service {
	if rules == nil {
		rules = defaultRules{}
	}
	return &Service{rules: rules, patients: patients, now: time.Now}
}

func (s *Service) Factors() []Factor {
	return s.rules.OpioidFactors()
}

// SubjectFromProfile flattens a profile into the fields factors match on.
func SubjectFromProfile(p *patient.Profile, now time.Time) Subject {
	s := Subject{Age: p.Age(now)}
	for _, c := range p.Conditions {
		s.Conditions = append(s.Conditions, c.Name)
	}
	for _, m := range p.Medications {
		s.Medications = append(s.Medications, m.Name)
	}
	return s
}

// DosesFromProfile returns the profile's opioid medications as MME inputs.
func DosesFromProfile(p *patient.Profile) []Dose {
	var doses []Dose
	for _, m := range p.Medications {
		if !m.Opioid && !patient.IsOpioid(m.Name) {
			continue
		}
		doses = append(doses, Dose{Name: m.Name, Amount: m.Dose, FrequencyPerDay: m.FrequencyPerDay, Route: m.Route})
	}
	return doses
}

// AssessProfile scores an already loaded profile.
func (s *Service) AssessProfile(p *patient.Profile) Assessment {
	a := Assess(s.rules.OpioidFactors(), s.rules.OpioidCutoffs(), SubjectFromProfile(p, s.now()))
	mme := CalculateMME(DosesFromProfile(p), s.rules.MMELimits())
	a.MME = &mme
	return a
}

func (s *Service) AssessPatient(ctx context.Context, patientID uuid.UUID) (Assessment, error) {
	p, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return Assessment{}, err
	}
	return s.AssessProfile(p), nil
}

// AssessAdHoc scores reported factor IDs and, when doses are given, their
// MME.
func (s *Service) AssessAdHoc(ids []string, doses []Dose) (Assessment, error) {
	a, err := AssessFactors(s.rules.OpioidFactors(), s.rules.OpioidCutoffs(), ids)
	if err != nil {
		return Assessment{}, err
	}
	if len(doses) > 0 {
		mme := CalculateMME(doses, s.rules.MMELimits())
		a.MME = &mme
	}
	return a, nil
}

func (s *Service) MME(doses []Dose) MMEResult {
	return CalculateMME(doses, s.rules.MMELimits())
}
