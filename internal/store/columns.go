package store

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fortuna/almanac/internal/fixture"
)

// Column order of every tabular dataset file we write.
var header = []string{
	"season", "league", "week", "date", "code",
	"home_team", "away_team", "ft_score", "ht_score",
	"odds_1", "odds_x", "odds_2", "odds_1x", "odds_12", "odds_x2",
	"under", "over",
}

const (
	colSeason = iota
	colLeague
	colWeek
	colDate
	colCode
	colHome
	colAway
	colScore
	colHalfTime
	colOdds // first of fixture.OddsCount price columns
	columnCount = colOdds + fixture.OddsCount
)

// headerAliases maps lower-cased legacy column names to canonical ones.
// Files produced by older harvests used the site's Turkish labels.
var headerAliases = map[string]string{
	"season_year": "season",
	"sezon":       "season",
	"lig":         "league",
	"hafta":       "week",
	"tarih":       "date",
	"kod":         "code",
	"evsahibi":    "home_team",
	"ev sahibi":   "home_team",
	"home":        "home_team",
	"deplasman":   "away_team",
	"away":        "away_team",
	"skor":        "ft_score",
	"score":       "ft_score",
	"iy_skor":     "ht_score",
	"iy skor":     "ht_score",
	"1":           "odds_1",
	"0":           "odds_x",
	"x":           "odds_x",
	"2":           "odds_2",
	"1&0":         "odds_1x",
	"1x":          "odds_1x",
	"1&2":         "odds_12",
	"12":          "odds_12",
	"2&0":         "odds_x2",
	"x2":          "odds_x2",
	"alt":         "under",
	"üst":         "over",
	"ust":         "over",
}

// columnIndex maps each canonical column to its position in a file header,
// or -1 when the file lacks it.
type columnIndex [columnCount]int

func indexHeader(row []string) columnIndex {
	canonical := make(map[string]int, len(header))
	for i, name := range header {
		canonical[name] = i
	}

	var idx columnIndex
	for i := range idx {
		idx[i] = -1
	}
	for pos, raw := range row {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff")))
		if alias, ok := headerAliases[name]; ok {
			name = alias
		}
		col, ok := canonical[name]
		if !ok || idx[col] != -1 {
			continue
		}
		idx[col] = pos
	}
	return idx
}

func (idx columnIndex) cell(row []string, col int) string {
	pos := idx[col]
	if pos < 0 || pos >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[pos])
}

func decodeRecord(row []string, idx columnIndex) fixture.MatchRecord {
	var prices [fixture.OddsCount]decimal.NullDecimal
	for i := range prices {
		prices[i] = fixture.ParsePrice(idx.cell(row, colOdds+i))
	}
	return fixture.MatchRecord{
		Season:        idx.cell(row, colSeason),
		League:        idx.cell(row, colLeague),
		Week:          idx.cell(row, colWeek),
		Date:          idx.cell(row, colDate),
		Code:          idx.cell(row, colCode),
		HomeTeam:      idx.cell(row, colHome),
		AwayTeam:      idx.cell(row, colAway),
		FullTimeScore: idx.cell(row, colScore),
		HalfTimeScore: idx.cell(row, colHalfTime),
		Odds:          fixture.OddsFromValues(prices),
	}
}

func encodeRecord(r fixture.MatchRecord) []string {
	row := make([]string, 0, columnCount)
	row = append(row,
		r.Season, r.League, r.Week, r.Date, r.Code,
		r.HomeTeam, r.AwayTeam, r.FullTimeScore, r.HalfTimeScore,
	)
	for _, p := range r.Odds.Values() {
		row = append(row, formatPrice(p))
	}
	return row
}

func formatPrice(p decimal.NullDecimal) string {
	if !p.Valid {
		return ""
	}
	return p.Decimal.String()
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
