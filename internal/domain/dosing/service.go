package dosing

import (
	"context"

	"github.com/google/uuid"
)

// ThresholdSource supplies the active thresholds. The rule book implements
// it so reloads take effect without restarting.
type ThresholdSource interface {
	Thresholds() []Threshold
}

// StaticThresholds is a fixed ThresholdSource.
type StaticThresholds []Threshold

func (s StaticThresholds) Thresholds() []Threshold { return s }

// LabReader resolves a patient's most recent lab values keyed by code.
type LabReader interface {
	LatestLabValues(ctx context.Context, patientID uuid.UUID) (map[string]float64, error)
}

type Service struct {
	rules ThresholdSource
	labs  LabReader
}

func NewService(rules ThresholdSource, labs LabReader) *Service {
	if rules == nil {
		rules = StaticThresholds(DefaultThresholds())
	}
	return &Service{rules: rules, labs: labs}
}

func (s *Service) Thresholds() []Threshold {
	return s.rules.Thresholds()
}

func (s *Service) Evaluate(values map[string]float64) Result {
	return Evaluate(s.rules.Thresholds(), values)
}

func (s *Service) EvaluatePatient(ctx context.Context, patientID uuid.UUID) (Result, error) {
	values, err := s.labs.LatestLabValues(ctx, patientID)
	if err != nil {
		return Result{}, err
	}
	return s.Evaluate(values), nil
}
