// Package rulebook loads the clinical rule file: dose-guidance thresholds,
// opioid risk factors and MME limits, and workflow templates. Sections left
// out of the file keep their built-in defaults.
package rulebook

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/oncodash/oncodash/internal/domain/dosing"
	"github.com/oncodash/oncodash/internal/domain/opioid"
	"github.com/oncodash/oncodash/internal/domain/workflow"
)

// File is the on-disk layout of a rule file.
type File struct {
	Dosing struct {
		Thresholds []dosing.Threshold `yaml:"thresholds"`
	} `yaml:"dosing"`
	Opioid struct {
		Factors   []opioid.Factor   `yaml:"factors"`
		Cutoffs   *opioid.Cutoffs   `yaml:"cutoffs"`
		MMELimits *opioid.MMELimits `yaml:"mme_limits"`
	} `yaml:"opioid"`
	Workflow struct {
		Templates []workflow.Template `yaml:"templates"`
	} `yaml:"workflow"`
}

// Rules is a complete, validated rule set.
type Rules struct {
	Thresholds []dosing.Threshold
	Factors    []opioid.Factor
	Cutoffs    opioid.Cutoffs
	MMELimits  opioid.MMELimits
	Templates  []workflow.Template
}

func Defaults() *Rules {
	return &Rules{
		Thresholds: dosing.DefaultThresholds(),
		Factors:    opioid.DefaultFactors(),
		Cutoffs:    opioid.DefaultCutoffs(),
		MMELimits:  opioid.DefaultMMELimits(),
		Templates:  workflow.DefaultTemplates(),
	}
}

// merge replaces entries of base that share a key with an override and
// appends the rest, keeping base order.
func merge[T any](base, overrides []T, key func(T) string) []T {
	out := make([]T, len(base))
	copy(out, base)
	pos := make(map[string]int, len(out))
	for i, v := range out {
		pos[key(v)] = i
	}
	for _, v := range overrides {
		if i, ok := pos[key(v)]; ok {
			out[i] = v
			continue
		}
		pos[key(v)] = len(out)
		out = append(out, v)
	}
	return out
}

// Apply overlays f on the defaults. Thresholds merge by lab, factors and
// templates by ID.
func (f *File) Apply() *Rules {
	r := Defaults()
	r.Thresholds = merge(r.Thresholds, f.Dosing.Thresholds, func(t dosing.Threshold) string { return dosing.LabKey(t.Lab) })
	r.Factors = merge(r.Factors, f.Opioid.Factors, func(fa opioid.Factor) string { return fa.ID })
	r.Templates = merge(r.Templates, f.Workflow.Templates, func(t workflow.Template) string { return t.ID })
	if f.Opioid.Cutoffs != nil {
		r.Cutoffs = *f.Opioid.Cutoffs
	}
	if f.Opioid.MMELimits != nil {
		r.MMELimits = *f.Opioid.MMELimits
	}
	return r
}

func (r *Rules) Validate() error {
	var errs []error
	for i, t := range r.Thresholds {
		if err := t.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("dosing.thresholds[%d]: %w", i, err))
		}
	}
	for i, f := range r.Factors {
		if err := f.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("opioid.factors[%d]: %w", i, err))
		}
	}
	if err := r.Cutoffs.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("opioid.cutoffs: %w", err))
	}
	if r.MMELimits.Caution <= 0 || r.MMELimits.High <= r.MMELimits.Caution {
		errs = append(errs, fmt.Errorf("opioid.mme_limits: need 0 < caution < high"))
	}
	for i, t := range r.Templates {
		if err := t.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("workflow.templates[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Parse decodes a rule file. Unknown keys are rejected so typos surface.
func Parse(rd io.Reader) (*Rules, error) {
	var f File
	dec := yaml.NewDecoder(rd)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	r := f.Apply()
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func LoadFile(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	r, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}
