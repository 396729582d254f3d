package fixture

import (
	"github.com/shopspring/decimal"
)

// FullTimeCode marks the full-time result market. Every other code is
// dropped at ingestion.
const FullTimeCode = "MS"

// Odds holds the market prices published next to a fixture. Prices that were
// absent or unreadable on the page are left invalid (null).
type Odds struct {
	Home       decimal.NullDecimal `json:"home"`
	Draw       decimal.NullDecimal `json:"draw"`
	Away       decimal.NullDecimal `json:"away"`
	HomeOrDraw decimal.NullDecimal `json:"home_or_draw"`
	HomeOrAway decimal.NullDecimal `json:"home_or_away"`
	AwayOrDraw decimal.NullDecimal `json:"away_or_draw"`
	Under      decimal.NullDecimal `json:"under"`
	Over       decimal.NullDecimal `json:"over"`
}

// OddsCount is the number of market prices carried per record.
const OddsCount = 8

// Values returns the prices in column order.
func (o Odds) Values() [OddsCount]decimal.NullDecimal {
	return [OddsCount]decimal.NullDecimal{
		o.Home, o.Draw, o.Away,
		o.HomeOrDraw, o.HomeOrAway, o.AwayOrDraw,
		o.Under, o.Over,
	}
}

// OddsFromValues is the inverse of Odds.Values.
func OddsFromValues(v [OddsCount]decimal.NullDecimal) Odds {
	return Odds{
		Home: v[0], Draw: v[1], Away: v[2],
		HomeOrDraw: v[3], HomeOrAway: v[4], AwayOrDraw: v[5],
		Under: v[6], Over: v[7],
	}
}

// ParsePrice reads a scraped price. Anything that is not a number yields an
// invalid NullDecimal.
func ParsePrice(raw string) decimal.NullDecimal {
	cleaned := NormalizeText(raw)
	if cleaned == "" || cleaned == "-" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// MatchRecord is one harvested fixture.
type MatchRecord struct {
	Season        string `json:"season"`
	League        string `json:"league"`
	Week          string `json:"week"`
	Date          string `json:"date"`
	Code          string `json:"code"`
	HomeTeam      string `json:"home_team"`
	AwayTeam      string `json:"away_team"`
	FullTimeScore string `json:"full_time_score"`
	HalfTimeScore string `json:"half_time_score,omitempty"`
	Odds          Odds   `json:"odds"`
}

// Key is the uniqueness tuple of a record. Two records with the same Key are
// the same fixture; the later harvested one wins.
type Key struct {
	Season        string
	League        string
	Week          string
	Code          string
	Date          string
	HomeTeam      string
	AwayTeam      string
	FullTimeScore string
}

// SliceKey identifies one league/week of one season.
type SliceKey struct {
	Season string
	League string
	Week   string
}

// Key returns the record's uniqueness tuple.
func (r MatchRecord) Key() Key {
	return Key{
		Season:        r.Season,
		League:        r.League,
		Week:          r.Week,
		Code:          r.Code,
		Date:          r.Date,
		HomeTeam:      r.HomeTeam,
		AwayTeam:      r.AwayTeam,
		FullTimeScore: r.FullTimeScore,
	}
}

// Slice returns the (season, league, week) slice the record belongs to.
func (r MatchRecord) Slice() SliceKey {
	return SliceKey{Season: r.Season, League: r.League, Week: r.Week}
}

// Normalized returns a copy with canonical season and bare week ordinal. A
// short date takes its year from the week label's range before the label is
// reduced, since the range is gone afterwards.
func (r MatchRecord) Normalized() MatchRecord {
	r.Season = NormalizeSeason(r.Season)
	r.Date = ResolveDate(r.Week, r.Date)
	r.Week = ParseWeek(r.Week)
	return r
}

// WeekLocator points at one week page of a season. Position is the option
// index on the page; Label is the text shown for it, which may embed a date
// range.
type WeekLocator struct {
	Position int    `json:"position"`
	Label    string `json:"label"`
}
