package fixture

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	whitespacePattern  = regexp.MustCompile(`\s+`)
	hyphenGapPattern   = regexp.MustCompile(`\s*-\s*`)
	playedScorePattern = regexp.MustCompile(`\d+\s*-\s*\d+`)

	dashReplacer = strings.NewReplacer("\u00a0", " ", "\u2013", "-", "\u2014", "-", "\u2212", "-")

	placeholderScores = map[string]struct{}{
		"": {}, "-": {}, "vs": {}, "v": {}, "ert": {}, "tbd": {},
	}
)

// NormalizeText cleans a scraped cell: non-breaking spaces and dash variants
// are folded, runs of whitespace collapse and spaces around hyphens go away.
func NormalizeText(value string) string {
	cleaned := dashReplacer.Replace(strings.TrimSpace(value))
	cleaned = whitespacePattern.ReplaceAllString(cleaned, " ")
	cleaned = hyphenGapPattern.ReplaceAllString(cleaned, "-")
	return strings.TrimSpace(cleaned)
}

// IsPlayedScore reports whether a score cell holds a final result such as
// "2-1". Placeholders for unplayed or postponed fixtures return false.
func IsPlayedScore(value string) bool {
	cleaned := strings.ToLower(NormalizeText(value))
	if _, ok := placeholderScores[cleaned]; ok {
		return false
	}
	return playedScorePattern.MatchString(cleaned)
}

// ParseKind tags the outcome of parsing one raw fixture row.
type ParseKind int

const (
	// ParseOK carries a played full-time fixture.
	ParseOK ParseKind = iota
	// ParseUnplayed is a fixture without a final score yet.
	ParseUnplayed
	// ParseIgnored is a well-formed row for a market other than the
	// full-time result, or a table header row.
	ParseIgnored
	// ParseMalformed is a row that does not have the fixture table shape.
	ParseMalformed
)

func (k ParseKind) String() string {
	switch k {
	case ParseOK:
		return "ok"
	case ParseUnplayed:
		return "unplayed"
	case ParseIgnored:
		return "ignored"
	case ParseMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("ParseKind(%d)", int(k))
	}
}

// ParseResult is the tagged outcome of ParseRow. Record is only meaningful
// for ParseOK; Raw always holds the input cells.
type ParseResult struct {
	Kind   ParseKind
	Record MatchRecord
	Raw    []string
	Reason string
}

// RowContext carries what a row does not say about itself.
type RowContext struct {
	Season    string
	League    string
	WeekLabel string
}

// Column layout of the fixture table.
const (
	colDate      = 0
	colCode      = 1
	colHome      = 3
	colScore     = 5
	colAway      = 7
	colHalfTime  = 8
	minRowCells  = 10
	oddsWideFrom = 12
	oddsFrom     = 11
	headerMarker = "Fikstür"
)

// ParseRow turns the text cells of one fixture table row into a record.
// The season is canonicalised, the week reduced to its ordinal and the date
// completed with the year from the week label.
func ParseRow(cells []string, rc RowContext) ParseResult {
	res := ParseResult{Raw: cells}

	if len(cells) == 0 {
		res.Kind = ParseMalformed
		res.Reason = "empty row"
		return res
	}
	if strings.Contains(strings.Join(cells, ""), headerMarker) {
		res.Kind = ParseIgnored
		res.Reason = "header row"
		return res
	}
	if len(cells) < minRowCells {
		res.Kind = ParseMalformed
		res.Reason = fmt.Sprintf("expected at least %d cells, got %d", minRowCells, len(cells))
		return res
	}

	code := NormalizeText(cells[colCode])
	if !strings.EqualFold(code, FullTimeCode) {
		res.Kind = ParseIgnored
		res.Reason = fmt.Sprintf("market code %q", code)
		return res
	}

	score := NormalizeText(cells[colScore])
	if !IsPlayedScore(score) {
		res.Kind = ParseUnplayed
		res.Reason = fmt.Sprintf("score %q not played", score)
		return res
	}

	halfTime := NormalizeText(cells[colHalfTime])

	from := oddsFrom
	if len(cells) > oddsWideFrom {
		from = oddsWideFrom
	}
	var prices [OddsCount]decimal.NullDecimal
	for i := 0; i < OddsCount && from+i < len(cells); i++ {
		prices[i] = ParsePrice(cells[from+i])
	}

	res.Kind = ParseOK
	res.Record = MatchRecord{
		Season:        NormalizeSeason(rc.Season),
		League:        rc.League,
		Week:          ParseWeek(rc.WeekLabel),
		Date:          ResolveDate(rc.WeekLabel, NormalizeText(cells[colDate])),
		Code:          strings.ToUpper(code),
		HomeTeam:      NormalizeText(cells[colHome]),
		AwayTeam:      NormalizeText(cells[colAway]),
		FullTimeScore: score,
		HalfTimeScore: halfTime,
		Odds:          OddsFromValues(prices),
	}
	return res
}

// ParseRows parses every row and tallies the outcomes per kind.
func ParseRows(rows [][]string, rc RowContext) ([]MatchRecord, map[ParseKind]int) {
	counts := make(map[ParseKind]int)
	var records []MatchRecord
	for _, row := range rows {
		res := ParseRow(row, rc)
		counts[res.Kind]++
		if res.Kind == ParseOK {
			records = append(records, res.Record)
		}
	}
	return records, counts
}
