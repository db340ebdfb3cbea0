package rulebook

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/oncodash/oncodash/internal/domain/dosing"
	"github.com/oncodash/oncodash/internal/domain/opioid"
	"github.com/oncodash/oncodash/internal/domain/workflow"
)

// Book serves the current rule set to the domain services. Reloads swap
// the whole set atomically, so readers never see a partial update.
type Book struct {
	path  string
	rules atomic.Pointer[Rules]
}

// New returns a book holding the built-in defaults.
func New() *Book {
	b := &Book{}
	b.rules.Store(Defaults())
	return b
}

// Open loads path into a new book. An empty path yields the defaults.
func Open(path string) (*Book, error) {
	b := New()
	if path == "" {
		return b, nil
	}
	b.path = path
	if err := b.Reload(); err != nil {
		return nil, err
	}
	return b, nil
}

// Reload re-reads the file. On error the current rules stay in place.
func (b *Book) Reload() error {
	r, err := LoadFile(b.path)
	if err != nil {
		return err
	}
	b.rules.Store(r)
	return nil
}

func (b *Book) Rules() *Rules { return b.rules.Load() }

func (b *Book) Thresholds() []dosing.Threshold         { return b.rules.Load().Thresholds }
func (b *Book) OpioidFactors() []opioid.Factor         { return b.rules.Load().Factors }
func (b *Book) OpioidCutoffs() opioid.Cutoffs          { return b.rules.Load().Cutoffs }
func (b *Book) MMELimits() opioid.MMELimits            { return b.rules.Load().MMELimits }
func (b *Book) WorkflowTemplates() []workflow.Template { return b.rules.Load().Templates }

const debounce = 250 * time.Millisecond

// Watch reloads the file when it changes until ctx is done. The parent
// directory is watched because editors often replace files rather than
// writing them in place. A bad edit is logged and the previous rules kept.
func (b *Book) Watch(ctx context.Context, logger zerolog.Logger) error {
	if b.path == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(b.path)); err != nil {
		w.Close()
		return err
	}
	logger = logger.With().Str("component", "rulebook").Str("file", b.path).Logger()

	go func() {
		defer w.Close()
		target := filepath.Clean(b.path)
		timer := time.NewTimer(debounce)
		timer.Stop()
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				timer.Reset(debounce)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn().Err(err).Msg("watch error")
			case <-timer.C:
				if err := b.Reload(); err != nil {
					logger.Error().Err(err).Msg("rule reload failed, keeping previous rules")
					continue
				}
				logger.Info().Msg("rules reloaded")
			}
		}
	}()
	return nil
}
