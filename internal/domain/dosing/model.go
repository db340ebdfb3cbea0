package dosing

import (
	"fmt"
	"strings"
)

type Severity string

const (
	SeverityHold    Severity = "hold"
	SeverityReduce  Severity = "reduce"
	SeverityMonitor Severity = "monitor"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityHold, SeverityReduce, SeverityMonitor:
		return true
	}
	return false
}

// Threshold is one lab safety bound. Min and Max are exclusive: a value
// equal to a bound is within range.
type Threshold struct {
	Lab            string   `json:"lab" yaml:"lab"`
	Label          string   `json:"label" yaml:"label"`
	Min            *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max            *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Unit           string   `json:"unit" yaml:"unit"`
	Recommendation string   `json:"recommendation" yaml:"recommendation"`
	Severity       Severity `json:"severity" yaml:"severity"`
}

func (t Threshold) Validate() error {
	if strings.TrimSpace(t.Lab) == "" {
		return fmt.Errorf("threshold lab is required")
	}
	if t.Min == nil && t.Max == nil {
		return fmt.Errorf("threshold %s: min or max is required", t.Lab)
	}
	if t.Min != nil && t.Max != nil && *t.Min > *t.Max {
		return fmt.Errorf("threshold %s: min %v exceeds max %v", t.Lab, *t.Min, *t.Max)
	}
	if !t.Severity.Valid() {
		return fmt.Errorf("threshold %s: invalid severity %q", t.Lab, t.Severity)
	}
	if strings.TrimSpace(t.Recommendation) == "" {
		return fmt.Errorf("threshold %s: recommendation is required", t.Lab)
	}
	return nil
}

// Recommendation is emitted for every threshold a value falls outside of.
type Recommendation struct {
	Lab      string   `json:"lab"`
	Label    string   `json:"label"`
	Value    float64  `json:"value"`
	Bound    float64  `json:"bound"`
	Below    bool     `json:"below"`
	Unit     string   `json:"unit"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

type Result struct {
	Recommendations []Recommendation `json:"recommendations"`
	Missing         []string         `json:"missing"`
	Evaluated       int              `json:"evaluated"`
	HoldRequired    bool             `json:"hold_required"`
}

func ptr(v float64) *float64 { return &v }

// DefaultThresholds are the built-in bounds used when no rule file
// overrides them.
func DefaultThresholds() []Threshold {
	return []Threshold{
		{Lab: "anc", Label: "ANC", Min: ptr(1500), Unit: "cells/µL", Severity: SeverityHold,
			Recommendation: "Hold chemotherapy until ANC recovers"},
		{Lab: "platelets", Label: "Platelets", Min: ptr(100000), Unit: "/µL", Severity: SeverityHold,
			Recommendation: "Hold chemotherapy until platelets recover"},
		{Lab: "hemoglobin", Label: "Hemoglobin", Min: ptr(8), Unit: "g/dL", Severity: SeverityMonitor,
			Recommendation: "Monitor for anemia and consider transfusion"},
		{Lab: "crcl", Label: "Creatinine clearance", Min: ptr(60), Unit: "mL/min", Severity: SeverityReduce,
			Recommendation: "Reduce dose of renally cleared agents"},
		{Lab: "bilirubin", Label: "Total bilirubin", Max: ptr(1.5), Unit: "mg/dL", Severity: SeverityReduce,
			Recommendation: "Reduce dose of hepatically cleared agents"},
		{Lab: "alt", Label: "ALT", Max: ptr(135), Unit: "U/L", Severity: SeverityReduce,
			Recommendation: "Reduce dose and monitor liver function"},
	}
}

// Evaluate checks values against thresholds in order. A threshold whose lab
// has no value is listed in Missing and never counts as a violation.
func Evaluate(thresholds []Threshold, values map[string]float64) Result {
	res := Result{Recommendations: []Recommendation{}, Missing: []string{}}
	labs := make(map[string]float64, len(values))
	for k, v := range values {
		labs[LabKey(k)] = v
	}

	for _, t := range thresholds {
		v, ok := labs[LabKey(t.Lab)]
		if !ok {
			res.Missing = append(res.Missing, t.Lab)
			continue
		}
		res.Evaluated++

		switch {
		case t.Min != nil && v < *t.Min:
			res.Recommendations = append(res.Recommendations, recommend(t, v, *t.Min, true))
		case t.Max != nil && v > *t.Max:
			res.Recommendations = append(res.Recommendations, recommend(t, v, *t.Max, false))
		default:
			continue
		}
		if t.Severity == SeverityHold {
			res.HoldRequired = true
		}
	}
	return res
}

// LabKey is the canonical form of a lab code: trimmed and lower case.
func LabKey(lab string) string {
	return strings.ToLower(strings.TrimSpace(lab))
}

func recommend(t Threshold, value, bound float64, below bool) Recommendation {
	label := t.Label
	if label == "" {
		label = t.Lab
	}
	dir := "above"
	if below {
		dir = "below"
	}
	return Recommendation{
		Lab:      t.Lab,
		Label:    label,
		Value:    value,
		Bound:    bound,
		Below:    below,
		Unit:     t.Unit,
		Severity: t.Severity,
		Message: fmt.Sprintf("%s %s %s %s (%s): %s",
			label, formatNum(value), dir, formatNum(bound), t.Unit, t.Recommendation),
	}
}

func formatNum(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
