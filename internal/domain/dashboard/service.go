// Package dashboard assembles the per-patient overview from the clinical
// domains. Sections load concurrently and a failed section is reported
// alongside the others instead of failing the whole view.
package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/oncodash/oncodash/internal/domain/dosing"
	"github.com/oncodash/oncodash/internal/domain/genomics"
	"github.com/oncodash/oncodash/internal/domain/opioid"
	"github.com/oncodash/oncodash/internal/domain/patient"
	"github.com/oncodash/oncodash/internal/domain/tumorboard"
	"github.com/oncodash/oncodash/internal/domain/workflow"
)

// Section names used as keys of Dashboard.Errors.
const (
	SectionDoseGuidance = "dose_guidance"
	SectionOpioidRisk   = "opioid_risk"
	SectionWorkflows    = "workflows"
	SectionGenomics     = "genomics"
	SectionTumorBoard   = "tumor_board"
)

// MaxWorkflows caps the active workflows listed on a dashboard.
const MaxWorkflows = 20

type ProfileReader interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Profile, error)
}

type DoseEvaluator interface {
	EvaluatePatient(ctx context.Context, patientID uuid.UUID) (dosing.Result, error)
}

type RiskAssessor interface {
	AssessProfile(p *patient.Profile) opioid.Assessment
}

type WorkflowLister interface {
	ListByPatient(ctx context.Context, patientID uuid.UUID, status workflow.Status, limit, offset int) ([]*workflow.Instance, int, error)
}

type GenomicsReader interface {
	LatestSummary(ctx context.Context, patientID uuid.UUID) (*genomics.Report, genomics.Summary, error)
}

type BoardReader interface {
	UpcomingForPatient(ctx context.Context, patientID uuid.UUID) ([]tumorboard.PatientCase, error)
}

// ForkFunc hands a section its own database scope. release runs when the
// section finishes.
type ForkFunc func(ctx context.Context) (context.Context, func(), error)

// Sources bundles the section readers. A nil source leaves its section
// empty. Fork, when set, runs once per concurrent section.
type Sources struct {
	Fork       ForkFunc
	Patients   ProfileReader
	Dosing     DoseEvaluator
	Opioid     RiskAssessor
	Workflows  WorkflowLister
	Genomics   GenomicsReader
	TumorBoard BoardReader
}

type GenomicsSection struct {
	ReportID   uuid.UUID        `json:"report_id"`
	ReportDate time.Time        `json:"report_date"`
	Summary    genomics.Summary `json:"summary"`
}

type Dashboard struct {
	Patient         *patient.Profile         `json:"patient"`
	DoseGuidance    *dosing.Result           `json:"dose_guidance"`
	OpioidRisk      *opioid.Assessment       `json:"opioid_risk"`
	ActiveWorkflows []*workflow.Instance     `json:"active_workflows"`
	Genomics        *GenomicsSection         `json:"genomics"`
	TumorBoardCases []tumorboard.PatientCase `json:"tumor_board_cases"`
	Errors          map[string]string        `json:"errors,omitempty"`
	GeneratedAt     time.Time                `json:"generated_at"`
}

type Service struct {
	src Sources
	now func() time.Time
}

func NewService(src Sources) *Service {
	return &Service{src: src, now: time.Now}
}

// Build loads the dashboard for a patient. Only a failure to load the
// patient itself is returned as an error.
func (s *Service) Build(ctx context.Context, patientID uuid.UUID) (*Dashboard, error) {
	p, err := s.src.Patients.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}
	d := &Dashboard{
		Patient:         p,
		ActiveWorkflows: []*workflow.Instance{},
		TumorBoardCases: []tumorboard.PatientCase{},
		GeneratedAt:     s.now().UTC(),
	}

	var mu sync.Mutex
	fail := func(section string, err error) {
		zerolog.Ctx(ctx).Warn().Err(err).Str("section", section).Str("patient_id", patientID.String()).Msg("dashboard section failed")
		mu.Lock()
		defer mu.Unlock()
		if d.Errors == nil {
			d.Errors = make(map[string]string)
		}
		d.Errors[section] = err.Error()
	}

	if s.src.Opioid != nil {
		a := s.src.Opioid.AssessProfile(p)
		d.OpioidRisk = &a
	}

	eg, egCtx := errgroup.WithContext(ctx)
	run := func(section string, load func(ctx context.Context) error) {
		eg.Go(func() error {
			sctx, release := egCtx, func() {}
			if s.src.Fork != nil {
				var err error
				if sctx, release, err = s.src.Fork(egCtx); err != nil {
					fail(section, err)
					return nil
				}
			}
			defer release()
			if err := load(sctx); err != nil {
				fail(section, err)
			}
			return nil
		})
	}

	if s.src.Dosing != nil {
		run(SectionDoseGuidance, func(ctx context.Context) error {
			res, err := s.src.Dosing.EvaluatePatient(ctx, patientID)
			if err != nil {
				return err
			}
			d.DoseGuidance = &res
			return nil
		})
	}
	if s.src.Workflows != nil {
		run(SectionWorkflows, func(ctx context.Context) error {
			items, _, err := s.src.Workflows.ListByPatient(ctx, patientID, workflow.StatusActive, MaxWorkflows, 0)
			if err != nil {
				return err
			}
			if items != nil {
				d.ActiveWorkflows = items
			}
			return nil
		})
	}
	if s.src.Genomics != nil {
		run(SectionGenomics, func(ctx context.Context) error {
			r, sum, err := s.src.Genomics.LatestSummary(ctx, patientID)
			switch {
			case errors.Is(err, genomics.ErrNotFound):
				return nil
			case err != nil:
				return err
			}
			d.Genomics = &GenomicsSection{ReportID: r.ID, ReportDate: r.ReportDate, Summary: sum}
			return nil
		})
	}
	if s.src.TumorBoard != nil {
		run(SectionTumorBoard, func(ctx context.Context) error {
			cases, err := s.src.TumorBoard.UpcomingForPatient(ctx, patientID)
			if err != nil {
				return err
			}
			if cases != nil {
				d.TumorBoardCases = cases
			}
			return nil
		})
	}
	// Sections never return errors, so Wait only joins.
	_ = eg.Wait()
	return d, nil
}
