package fixture

import (
	"sort"
	"strings"
)

// Dataset is the ordered collection of harvested records.
type Dataset []MatchRecord

// Clone returns a copy that shares no backing array with d.
func (d Dataset) Clone() Dataset {
	if d == nil {
		return nil
	}
	out := make(Dataset, len(d))
	copy(out, d)
	return out
}

// NormalizeSeasons returns a copy with every season label canonicalised.
// Week labels are left as stored so legacy composite labels survive until
// they are converted.
func (d Dataset) NormalizeSeasons() Dataset {
	out := d.Clone()
	for i := range out {
		out[i].Season = NormalizeSeason(out[i].Season)
	}
	return out
}

// Normalized returns a copy with canonical seasons and bare week ordinals.
func (d Dataset) Normalized() Dataset {
	out := d.Clone()
	for i := range out {
		out[i] = out[i].Normalized()
	}
	return out
}

// Filter is a query over league, season and week. Empty fields match
// everything; Season is compared in canonical form.
type Filter struct {
	League string
	Season string
	Week   string
}

// Select returns the records matching f, in dataset order.
func (d Dataset) Select(f Filter) Dataset {
	season := NormalizeSeason(f.Season)
	week := ParseWeek(f.Week)

	out := Dataset{}
	for _, r := range d {
		if f.League != "" && !strings.EqualFold(r.League, f.League) {
			continue
		}
		if season != "" && NormalizeSeason(r.Season) != season {
			continue
		}
		if week != "" && ParseWeek(r.Week) != week {
			continue
		}
		out = append(out, r)
	}
	return out
}

// SeasonSummary describes what the dataset holds for one league season.
type SeasonSummary struct {
	League   string `json:"league"`
	Season   string `json:"season"`
	Matches  int    `json:"matches"`
	Weeks    int    `json:"weeks"`
	LastWeek string `json:"last_week"`
}

// Summarize groups the dataset per (league, season), sorted by league then
// season.
func (d Dataset) Summarize() []SeasonSummary {
	type group struct {
		summary SeasonSummary
		weeks   map[string]struct{}
		last    weekOrder
	}

	groups := make(map[[2]string]*group)
	for _, r := range d {
		season := NormalizeSeason(r.Season)
		k := [2]string{r.League, season}
		g, ok := groups[k]
		if !ok {
			g = &group{
				summary: SeasonSummary{League: r.League, Season: season},
				weeks:   make(map[string]struct{}),
				last:    weekOrder{class: -1},
			}
			groups[k] = g
		}
		g.summary.Matches++
		week := ParseWeek(r.Week)
		g.weeks[week] = struct{}{}
		if o := orderOfWeek(week); g.last.less(o) {
			g.last = o
			g.summary.LastWeek = week
		}
	}

	out := make([]SeasonSummary, 0, len(groups))
	for _, g := range groups {
		g.summary.Weeks = len(g.weeks)
		out = append(out, g.summary)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].League != out[j].League {
			return out[i].League < out[j].League
		}
		return out[i].Season < out[j].Season
	})
	return out
}
