package reconciliation

import (
	"strings"

	"github.com/fortuna/almanac/internal/fixture"
)

// ConvertStats counts what ConvertLegacy touched.
type ConvertStats struct {
	Total      int `json:"total"`
	Converted  int `json:"converted"`
	Skipped    int `json:"skipped"`
	Unresolved int `json:"unresolved"`
}

// ConvertLegacy migrates datasets written before week labels were reduced on
// ingestion. Composite week labels become bare ordinals and short dates get
// their year from the label's date range. Rows already in the current shape
// are counted as skipped. The result is deduplicated and sorted like any
// merge output.
func ConvertLegacy(ds fixture.Dataset) (fixture.Dataset, ConvertStats) {
	st := ConvertStats{Total: len(ds)}

	out := make(fixture.Dataset, 0, len(ds))
	for _, r := range ds {
		week := fixture.ParseWeek(r.Week)
		date := fixture.ResolveDate(r.Week, r.Date)

		if week == r.Week && date == r.Date {
			st.Skipped++
		} else {
			st.Converted++
		}
		if date != "" && fixture.DateSortKey(date) == date {
			st.Unresolved++
		}

		r.Week = week
		r.Date = date
		r.Season = fixture.NormalizeSeason(r.Season)
		out = append(out, r)
	}

	return Merge(fixture.Dataset{}, out), st
}

// KeepFullTime drops every row whose market code is not the full-time
// result, returning the kept rows and how many were removed.
func KeepFullTime(ds fixture.Dataset) (fixture.Dataset, int) {
	out := make(fixture.Dataset, 0, len(ds))
	for _, r := range ds {
		if strings.EqualFold(strings.TrimSpace(r.Code), fixture.FullTimeCode) {
			out = append(out, r)
		}
	}
	return out, len(ds) - len(out)
}

// FillSeason sets the season of rows that carry none.
func FillSeason(ds fixture.Dataset, season string) fixture.Dataset {
	out := ds.Clone()
	if season == "" {
		return out
	}
	for i := range out {
		if strings.TrimSpace(out[i].Season) == "" {
			out[i].Season = season
		}
	}
	return out
}

// Fold merges datasets left to right. Slices in later datasets supersede
// the same slices in earlier ones.
func Fold(datasets ...fixture.Dataset) fixture.Dataset {
	acc := fixture.Dataset{}
	for _, ds := range datasets {
		if len(ds) == 0 {
			continue
		}
		acc = Merge(acc, ds)
	}
	return acc
}
