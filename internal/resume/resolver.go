package resume

import (
	"fmt"
	"strings"

	"github.com/fortuna/almanac/internal/fixture"
)

// Strategy names the rule that produced a resume decision.
type Strategy string

const (
	// StrategyFresh: nothing stored yet for the league season.
	StrategyFresh Strategy = "fresh"
	// StrategyExact: a locator label equals the stored last week.
	StrategyExact Strategy = "exact"
	// StrategyOrdinal: a locator carries the same week ordinal.
	StrategyOrdinal Strategy = "ordinal"
	// StrategyBoundary: the last week is gone, resume near the first later one.
	StrategyBoundary Strategy = "boundary"
	// StrategyRescan: nothing lines up, the whole season is fetched again.
	StrategyRescan Strategy = "rescan"
)

// BoundaryPolicy decides where StrategyBoundary resumes relative to the
// first locator whose ordinal passes the stored last week.
type BoundaryPolicy string

const (
	// StepBack resumes one week before the boundary locator so the week
	// straddling the gap is fetched again.
	StepBack BoundaryPolicy = "step_back"
	// AtBoundary resumes on the boundary locator itself.
	AtBoundary BoundaryPolicy = "exact"
)

// ParseBoundaryPolicy maps a config value to a policy. Empty means StepBack.
func ParseBoundaryPolicy(s string) (BoundaryPolicy, error) {
	switch BoundaryPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StepBack:
		return StepBack, nil
	case AtBoundary:
		return AtBoundary, nil
	default:
		return "", fmt.Errorf("unknown boundary policy %q", s)
	}
}

// Decision is where a season harvest should start.
type Decision struct {
	Index    int
	Strategy Strategy
	// LastWeek is the stored week the decision was derived from, empty for
	// StrategyFresh.
	LastWeek string
}

// Rescan reports whether the decision fell through every rule. Callers
// surface it as a warning.
func (d Decision) Rescan() bool {
	return d.Strategy == StrategyRescan
}

func (d Decision) String() string {
	if d.LastWeek == "" {
		return fmt.Sprintf("%s@%d", d.Strategy, d.Index)
	}
	return fmt.Sprintf("%s@%d (last week %s)", d.Strategy, d.Index, d.LastWeek)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithBoundaryPolicy overrides the default StepBack policy.
func WithBoundaryPolicy(p BoundaryPolicy) Option {
	return func(r *Resolver) {
		if p != "" {
			r.policy = p
		}
	}
}

// Resolver picks the week a season harvest resumes from. It holds no state
// besides its policy and is safe for concurrent use.
type Resolver struct {
	policy BoundaryPolicy
}

// NewResolver builds a resolver with the given options.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{policy: StepBack}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the boundary policy in use.
func (r *Resolver) Policy() BoundaryPolicy {
	return r.policy
}

// LastWeek returns the greatest stored week for a league season. Weeks
// compare by ordinal with the raw label breaking ties.
func LastWeek(ds fixture.Dataset, league, season string) (string, bool) {
	season = fixture.NormalizeSeason(season)

	var (
		last  string
		found bool
	)
	for _, r := range ds {
		if r.League != league || fixture.NormalizeSeason(r.Season) != season {
			continue
		}
		if !found || fixture.WeekLess(last, r.Week) {
			last = r.Week
			found = true
		}
	}
	return last, found
}

// Resolve returns the index into weeks to resume from. The rules run in
// order: fresh start, exact label, same ordinal, boundary, full rescan.
func (r *Resolver) Resolve(ds fixture.Dataset, league, season string, weeks []fixture.WeekLocator) Decision {
	last, ok := LastWeek(ds, league, season)
	if !ok {
		return Decision{Index: 0, Strategy: StrategyFresh}
	}

	for i, w := range weeks {
		if w.Label == last {
			return Decision{Index: i, Strategy: StrategyExact, LastWeek: last}
		}
	}

	lastNum, numeric := fixture.WeekOrdinal(last)
	if numeric && lastNum > 0 {
		for i, w := range weeks {
			if n, ok := fixture.WeekOrdinal(w.Label); ok && n == lastNum {
				return Decision{Index: i, Strategy: StrategyOrdinal, LastWeek: last}
			}
		}

		for i, w := range weeks {
			if n, ok := fixture.WeekOrdinal(w.Label); ok && n >= lastNum {
				idx := i
				if r.policy == StepBack {
					idx = max(i-1, 0)
				}
				return Decision{Index: idx, Strategy: StrategyBoundary, LastWeek: last}
			}
		}
	}

	return Decision{Index: 0, Strategy: StrategyRescan, LastWeek: last}
}
