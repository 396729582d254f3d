package reconciliation

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/fortuna/almanac/internal/fixture"
)

// Merge folds a freshly harvested batch into the stored dataset.
//
// Both sides are normalised first. Every (season, league, week) slice present
// in the batch replaces the stored slice wholesale; untouched slices survive.
// Rows sharing a uniqueness key collapse to the last occurrence, and the
// result is stably sorted by season, league, week ordinal and date.
//
// Merge is pure: identical inputs always produce identical output, and
// neither argument is modified. An empty batch returns the normalised
// existing dataset in its original order.
func Merge(existing, batch fixture.Dataset) fixture.Dataset {
	out, _ := merge(existing, batch)
	return out
}

// Stats describes what one merge did.
type Stats struct {
	Existing   int `json:"existing"`
	Batch      int `json:"batch"`
	Superseded int `json:"superseded"`
	Duplicates int `json:"duplicates"`
	Result     int `json:"result"`
	Slices     int `json:"slices"`
}

func merge(existing, batch fixture.Dataset) (fixture.Dataset, Stats) {
	st := Stats{Existing: len(existing), Batch: len(batch)}

	base := existing.Normalized()
	if len(batch) == 0 {
		if base == nil {
			base = fixture.Dataset{}
		}
		st.Result = len(base)
		return base, st
	}
	fresh := batch.Normalized()

	slices := make(map[fixture.SliceKey]struct{})
	for _, r := range fresh {
		slices[r.Slice()] = struct{}{}
	}
	st.Slices = len(slices)

	combined := make(fixture.Dataset, 0, len(base)+len(fresh))
	for _, r := range base {
		if _, replaced := slices[r.Slice()]; replaced {
			st.Superseded++
			continue
		}
		combined = append(combined, r)
	}
	combined = append(combined, fresh...)

	out := dedupKeepLast(combined)
	st.Duplicates = len(combined) - len(out)

	sortDataset(out)
	st.Result = len(out)
	return out, st
}

// dedupKeepLast drops earlier rows whose key reappears later, preserving the
// relative order of the survivors.
func dedupKeepLast(ds fixture.Dataset) fixture.Dataset {
	lastIdx := make(map[fixture.Key]int, len(ds))
	for i, r := range ds {
		lastIdx[r.Key()] = i
	}
	out := make(fixture.Dataset, 0, len(lastIdx))
	for i, r := range ds {
		if lastIdx[r.Key()] == i {
			out = append(out, r)
		}
	}
	return out
}

func sortDataset(ds fixture.Dataset) {
	sort.SliceStable(ds, func(i, j int) bool {
		a, b := ds[i], ds[j]
		if a.Season != b.Season {
			return a.Season < b.Season
		}
		if a.League != b.League {
			return a.League < b.League
		}
		if a.Week != b.Week {
			return fixture.WeekLess(a.Week, b.Week)
		}
		return fixture.DateSortKey(a.Date) < fixture.DateSortKey(b.Date)
	})
}

// Metrics tracks merge statistics across a run
type Metrics struct {
	Merges     int
	Superseded int
	Duplicates int
	LastMerge  time.Time
}

// Engine wraps Merge with run-level bookkeeping and logging.
type Engine struct {
	mu      sync.Mutex
	metrics Metrics
	logger  *log.Logger
}

// NewEngine creates a new merge engine. A nil logger uses the standard one.
func NewEngine(logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{logger: logger}
}

// Merge runs Merge and records what happened.
func (e *Engine) Merge(existing, batch fixture.Dataset) fixture.Dataset {
	out, st := merge(existing, batch)

	e.mu.Lock()
	e.metrics.Merges++
	e.metrics.Superseded += st.Superseded
	e.metrics.Duplicates += st.Duplicates
	e.metrics.LastMerge = time.Now()
	e.mu.Unlock()

	if st.Batch > 0 {
		e.logger.Printf("  merged %d rows over %d slices (superseded %d, duplicates %d, total %d)",
			st.Batch, st.Slices, st.Superseded, st.Duplicates, st.Result)
	}
	return out
}

// GetMetrics returns a snapshot of the merge metrics
func (e *Engine) GetMetrics() Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.metrics
}

// ResetMetrics clears all metrics
func (e *Engine) ResetMetrics() {
	e.mu.Lock()
	e.metrics = Metrics{}
	e.mu.Unlock()
}
