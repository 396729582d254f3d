package fixture

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestDatasetSelect(t *testing.T) {
	ds := Dataset{
		{Season: "2024-25", League: "Premier", Week: "1", HomeTeam: "A"},
		{Season: "2024/2025", League: "premier", Week: "2 (01.09.2024 - 02.09.2024)", HomeTeam: "B"},
		{Season: "2023/2024", League: "Premier", Week: "2", HomeTeam: "C"},
		{Season: "2024/2025", League: "Liga", Week: "2", HomeTeam: "D"},
	}

	got := ds.Select(Filter{League: "PREMIER", Season: "2024-25", Week: "2"})
	assert.Len(t, got, 1)
	assert.Equal(t, "B", got[0].HomeTeam)

	assert.Len(t, ds.Select(Filter{}), 4)
	assert.Empty(t, ds.Select(Filter{League: "Nope"}))
}

func TestDatasetSummarize(t *testing.T) {
	ds := Dataset{
		{Season: "2024-25", League: "B", Week: "1"},
		{Season: "2024/2025", League: "B", Week: "10"},
		{Season: "2024/2025", League: "B", Week: "9"},
		{Season: "2024/2025", League: "B", Week: "9"},
		{Season: "2023/2024", League: "A", Week: "Playoff"},
	}
	want := []SeasonSummary{
		{League: "A", Season: "2023/2024", Matches: 1, Weeks: 1, LastWeek: "Playoff"},
		{League: "B", Season: "2024/2025", Matches: 4, Weeks: 3, LastWeek: "10"},
	}
	if diff := cmp.Diff(want, ds.Summarize()); diff != "" {
		t.Errorf("Summarize mismatch (-want +got):\n%s", diff)
	}
}

func TestDatasetCloneIsIndependent(t *testing.T) {
	ds := Dataset{{HomeTeam: "A"}}
	c := ds.Clone()
	c[0].HomeTeam = "B"
	assert.Equal(t, "A", ds[0].HomeTeam)
	assert.Nil(t, Dataset(nil).Clone())
}

func TestNormalizeSeasonsKeepsWeekLabels(t *testing.T) {
	ds := Dataset{{Season: "2024-25", Week: "3 (01.09.2024 - 02.09.2024)"}}
	got := ds.NormalizeSeasons()
	assert.Equal(t, "2024/2025", got[0].Season)
	assert.Equal(t, "3 (01.09.2024 - 02.09.2024)", got[0].Week)
	assert.Equal(t, "3", ds.Normalized()[0].Week)
}
