package checkpoint

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/fortuna/almanac/internal/fixture"
	"github.com/fortuna/almanac/internal/reconciliation"
	"github.com/fortuna/almanac/internal/store"
)

// Sink holds checkpoints. It must be distinct from the final store.
type Sink interface {
	store.Store
	Exists(ctx context.Context) (bool, error)
	Remove(ctx context.Context) error
}

// PathFor returns the checkpoint file used next to an output file:
// "fixtures.xlsx" checkpoints to "fixtures_temp.xlsx".
func PathFor(output string) string {
	ext := filepath.Ext(output)
	return strings.TrimSuffix(output, ext) + "_temp" + ext
}

// Manager writes the best known dataset to a checkpoint sink during a run
// and promotes it to the final store when the run completes.
type Manager struct {
	sink   Sink
	final  store.Store
	logger *log.Logger
}

// NewManager builds a manager. A nil logger uses the standard one.
func NewManager(sink Sink, final store.Store, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{sink: sink, final: final, logger: logger}
}

// Location names the checkpoint sink.
func (m *Manager) Location() string {
	return m.sink.Location()
}

// Save writes ds to the checkpoint sink. A failed write is logged and
// reported as false; the caller keeps its in-memory dataset.
func (m *Manager) Save(ctx context.Context, ds fixture.Dataset) bool {
	if err := m.sink.Save(ctx, ds); err != nil {
		m.logger.Printf("⚠️  checkpoint write to %s failed, continuing in memory: %v", m.sink.Location(), err)
		return false
	}
	m.logger.Printf("  ✓ checkpoint saved (%d rows) to %s", len(ds), m.sink.Location())
	return true
}

// Recover merges a checkpoint left by an earlier aborted run into ds.
// Checkpoint slices supersede the loaded ones. The second result reports
// whether a checkpoint was found and applied.
func (m *Manager) Recover(ctx context.Context, ds fixture.Dataset) (fixture.Dataset, bool) {
	ok, err := m.sink.Exists(ctx)
	if err != nil {
		m.logger.Printf("⚠️  cannot check for checkpoint at %s: %v", m.sink.Location(), err)
		return ds, false
	}
	if !ok {
		return ds, false
	}

	saved, err := m.sink.Load(ctx)
	if err != nil {
		m.logger.Printf("⚠️  checkpoint at %s is unreadable, ignoring it: %v", m.sink.Location(), err)
		return ds, false
	}

	merged := reconciliation.Merge(ds, saved)
	m.logger.Printf("✓ recovered %d rows from checkpoint %s", len(saved), m.sink.Location())
	return merged, true
}

// Commit writes ds to the final store and removes the checkpoint. When the
// final write fails the checkpoint is refreshed and left in place, and the
// error is returned for the operator.
func (m *Manager) Commit(ctx context.Context, ds fixture.Dataset) error {
	if err := m.final.Save(ctx, ds); err != nil {
		m.Save(ctx, ds)
		return fmt.Errorf("save dataset to %s (checkpoint kept at %s): %w", m.final.Location(), m.sink.Location(), err)
	}
	m.logger.Printf("✓ saved %d rows to %s", len(ds), m.final.Location())

	if err := m.sink.Remove(ctx); err != nil {
		m.logger.Printf("⚠️  could not remove checkpoint %s: %v", m.sink.Location(), err)
	}
	return nil
}

// Abort checkpoints ds after an abnormal stop and reports where the latest
// recoverable state lives. It returns the checkpoint location, or "" when
// nothing could be saved.
func (m *Manager) Abort(ctx context.Context, ds fixture.Dataset, cause error) string {
	if !m.Save(ctx, ds) {
		m.logger.Printf("❌ run stopped (%v) and the checkpoint could not be written; %d rows were not saved", cause, len(ds))
		return ""
	}
	m.logger.Printf("❌ run stopped (%v); latest recoverable state is in %s", cause, m.sink.Location())
	return m.sink.Location()
}
