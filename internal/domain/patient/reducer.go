package patient

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	ActionSetProfile          = "set_profile"
	ActionUpdateDemographics  = "update_demographics"
	ActionSetConditions       = "set_conditions"
	ActionSetMedications      = "set_medications"
	ActionSetAllergies        = "set_allergies"
	ActionSetLabValues        = "set_lab_values"
	ActionAddLabValue         = "add_lab_value"
	ActionAddTreatment        = "add_treatment"
	ActionSetTreatmentHistory = "set_treatment_history"
)

// Action is a state change dispatched against a profile.
type Action struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewAction marshals payload into an Action.
func NewAction(actionType string, payload interface{}) (Action, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Action{}, fmt.Errorf("marshal %s payload: %w", actionType, err)
	}
	return Action{Type: actionType, Payload: data}, nil
}

// profileBody is the replaceable part of a profile accepted by set_profile.
type profileBody struct {
	MRN              string       `json:"mrn"`
	Demographics     Demographics `json:"demographics"`
	Conditions       []Condition  `json:"conditions"`
	Medications      []Medication `json:"medications"`
	Allergies        []Allergy    `json:"allergies"`
	LabValues        []LabValue   `json:"lab_values"`
	TreatmentHistory []Treatment  `json:"treatment_history"`
}

// Reduce applies a to a copy of p and returns the copy. p is never modified.
func Reduce(p *Profile, a Action) (*Profile, error) {
	next := p.Clone()

	switch a.Type {
	case ActionSetProfile:
		var body profileBody
		if err := decode(a, &body); err != nil {
			return nil, err
		}
		if body.MRN != "" {
			next.MRN = body.MRN
		}
		next.Demographics = body.Demographics
		next.Conditions = body.Conditions
		next.Medications = flagOpioids(body.Medications)
		next.Allergies = body.Allergies
		next.LabValues = body.LabValues
		next.TreatmentHistory = body.TreatmentHistory

	case ActionUpdateDemographics:
		var d Demographics
		if err := decode(a, &d); err != nil {
			return nil, err
		}
		next.Demographics = d

	case ActionSetConditions:
		var cs []Condition
		if err := decode(a, &cs); err != nil {
			return nil, err
		}
		next.Conditions = cs

	case ActionSetMedications:
		var ms []Medication
		if err := decode(a, &ms); err != nil {
			return nil, err
		}
		next.Medications = flagOpioids(ms)

	case ActionSetAllergies:
		var as []Allergy
		if err := decode(a, &as); err != nil {
			return nil, err
		}
		next.Allergies = as

	case ActionSetLabValues:
		var ls []LabValue
		if err := decode(a, &ls); err != nil {
			return nil, err
		}
		for _, lv := range ls {
			if strings.TrimSpace(lv.Code) == "" {
				return nil, fmt.Errorf("%s: lab code is required", a.Type)
			}
		}
		next.LabValues = ls

	case ActionAddLabValue:
		var lv LabValue
		if err := decode(a, &lv); err != nil {
			return nil, err
		}
		if strings.TrimSpace(lv.Code) == "" {
			return nil, fmt.Errorf("%s: lab code is required", a.Type)
		}
		next.LabValues = append(next.LabValues, lv)

	case ActionAddTreatment:
		var tr Treatment
		if err := decode(a, &tr); err != nil {
			return nil, err
		}
		if strings.TrimSpace(tr.Regimen) == "" {
			return nil, fmt.Errorf("%s: regimen is required", a.Type)
		}
		next.TreatmentHistory = append(next.TreatmentHistory, tr)

	case ActionSetTreatmentHistory:
		var ts []Treatment
		if err := decode(a, &ts); err != nil {
			return nil, err
		}
		next.TreatmentHistory = ts

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, a.Type)
	}

	return next, nil
}

func decode(a Action, v interface{}) error {
	if len(a.Payload) == 0 {
		return fmt.Errorf("%s: payload is required", a.Type)
	}
	if err := json.Unmarshal(a.Payload, v); err != nil {
		return fmt.Errorf("%s: invalid payload: %w", a.Type, err)
	}
	return nil
}

func flagOpioids(ms []Medication) []Medication {
	for i := range ms {
		ms[i].Opioid = IsOpioid(ms[i].Name)
	}
	return ms
}
