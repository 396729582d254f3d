package resume

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/almanac/internal/fixture"
)

func locators(labels ...string) []fixture.WeekLocator {
	out := make([]fixture.WeekLocator, len(labels))
	for i, l := range labels {
		out[i] = fixture.WeekLocator{Position: i, Label: l}
	}
	return out
}

func composite(week int) string {
	return fmt.Sprintf("%d (%02d.09.2024 - %02d.09.2024)", week, week, week+1)
}

func storedWeeks(league, season string, weeks ...string) fixture.Dataset {
	ds := make(fixture.Dataset, 0, len(weeks))
	for _, w := range weeks {
		ds = append(ds, fixture.MatchRecord{Season: season, League: league, Week: w, Code: "MS"})
	}
	return ds
}

func TestLastWeek(t *testing.T) {
	ds := storedWeeks("X", "2024/2025", "2", "10", "9", "Playoff")
	ds = append(ds, storedWeeks("Y", "2024/2025", "30")...)
	ds = append(ds, storedWeeks("X", "2023/2024", "34")...)

	last, ok := LastWeek(ds, "X", "2024-25")
	require.True(t, ok)
	assert.Equal(t, "10", last)

	_, ok = LastWeek(ds, "Z", "2024/2025")
	assert.False(t, ok)
}

func TestResolve(t *testing.T) {
	ds := storedWeeks("X", "2024/2025", "5", "6", "7")

	tests := []struct {
		name     string
		policy   BoundaryPolicy
		weeks    []fixture.WeekLocator
		want     int
		strategy Strategy
	}{
		{
			name:     "exact label",
			weeks:    locators("1", "2", "3", "4", "5", "6", "7", "8"),
			want:     6,
			strategy: StrategyExact,
		},
		{
			name:     "ordinal inside composite label",
			weeks:    locators(composite(1), composite(2), composite(3), composite(4), composite(5), composite(6), composite(7), composite(8)),
			want:     6,
			strategy: StrategyOrdinal,
		},
		{
			name:     "boundary steps back one week",
			weeks:    locators("1", "2", "3", "4", "5", "6", "8", "9"),
			want:     5,
			strategy: StrategyBoundary,
		},
		{
			name:     "boundary at first locator clamps to zero",
			weeks:    locators("8", "9"),
			want:     0,
			strategy: StrategyBoundary,
		},
		{
			name:     "boundary without step back",
			policy:   AtBoundary,
			weeks:    locators("1", "2", "3", "4", "5", "6", "8", "9"),
			want:     6,
			strategy: StrategyBoundary,
		},
		{
			name:     "nothing matches",
			weeks:    locators("1", "2", "3", "4", "5"),
			want:     0,
			strategy: StrategyRescan,
		},
		{
			name:     "no locators",
			weeks:    nil,
			want:     0,
			strategy: StrategyRescan,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(WithBoundaryPolicy(tt.policy))
			got := r.Resolve(ds, "X", "2024/2025", tt.weeks)
			assert.Equal(t, tt.want, got.Index)
			assert.Equal(t, tt.strategy, got.Strategy)
			assert.Equal(t, "7", got.LastWeek)
			assert.Equal(t, tt.strategy == StrategyRescan, got.Rescan())
		})
	}
}

func TestResolveFresh(t *testing.T) {
	ds := storedWeeks("X", "2023/2024", "34")
	got := NewResolver().Resolve(ds, "X", "2024/2025", locators("1", "2"))
	assert.Equal(t, Decision{Index: 0, Strategy: StrategyFresh}, got)
}

func TestResolveNonNumericLastWeek(t *testing.T) {
	ds := storedWeeks("X", "2024/2025", "Final")

	got := NewResolver().Resolve(ds, "X", "2024/2025", locators("Semi", "Final"))
	assert.Equal(t, 1, got.Index)
	assert.Equal(t, StrategyExact, got.Strategy)

	got = NewResolver().Resolve(ds, "X", "2024/2025", locators("1", "2"))
	assert.True(t, got.Rescan())
}

func TestParseBoundaryPolicy(t *testing.T) {
	p, err := ParseBoundaryPolicy("")
	require.NoError(t, err)
	assert.Equal(t, StepBack, p)

	p, err = ParseBoundaryPolicy(" EXACT ")
	require.NoError(t, err)
	assert.Equal(t, AtBoundary, p)

	_, err = ParseBoundaryPolicy("sideways")
	assert.Error(t, err)
}
