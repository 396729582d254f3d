package fixture

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixtureRow builds a table row in the page's column layout.
func fixtureRow(date, code, home, score, away, ht string, odds ...string) []string {
	row := []string{date, code, "", home, "", score, "", away, ht, "", "", ""}
	return append(row, odds...)
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Galatasaray  ", "Galatasaray"},
		{"Fenerbahçe SK", "Fenerbahçe SK"},
		{"2 – 1", "2-1"},
		{"1\u20140", "1-0"},
		{"0 − 0", "0-0"},
		{"a \t\n b", "a b"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeText(tt.in), "%q", tt.in)
	}
}

func TestIsPlayedScore(t *testing.T) {
	for _, s := range []string{"2-1", "0 - 0", "10–9"} {
		assert.True(t, IsPlayedScore(s), s)
	}
	for _, s := range []string{"", "-", "vs", "V", "ERT", "tbd", "20:00", "abc"} {
		assert.False(t, IsPlayedScore(s), s)
	}
}

func TestParseRow(t *testing.T) {
	rc := RowContext{
		Season:    "2024-25",
		League:    "Süper Lig",
		WeekLabel: "17 (28.12.2024 - 2.01.2025)",
	}

	t.Run("played full time", func(t *testing.T) {
		row := fixtureRow("29/12", "MS", " Galatasaray ", "2 - 1", "Fenerbahçe", "1-0",
			"1.85", "3.40", "4.10", "1.20", "1.30", "1.95", "2.05", "1.72")
		res := ParseRow(row, rc)
		require.Equal(t, ParseOK, res.Kind, res.Reason)

		r := res.Record
		assert.Equal(t, "2024/2025", r.Season)
		assert.Equal(t, "Süper Lig", r.League)
		assert.Equal(t, "17", r.Week)
		assert.Equal(t, "29/12/2024", r.Date)
		assert.Equal(t, "MS", r.Code)
		assert.Equal(t, "Galatasaray", r.HomeTeam)
		assert.Equal(t, "Fenerbahçe", r.AwayTeam)
		assert.Equal(t, "2-1", r.FullTimeScore)
		assert.Equal(t, "1-0", r.HalfTimeScore)
		assert.True(t, r.Odds.Home.Valid)
		assert.True(t, decimal.RequireFromString("1.85").Equal(r.Odds.Home.Decimal))
		assert.True(t, decimal.RequireFromString("1.72").Equal(r.Odds.Over.Decimal))
	})

	t.Run("missing odds stay null", func(t *testing.T) {
		row := fixtureRow("01/01", "MS", "A", "0-0", "B", "", "2.10", "-")
		res := ParseRow(row, rc)
		require.Equal(t, ParseOK, res.Kind)
		assert.Equal(t, "01/01/2025", res.Record.Date)
		assert.True(t, res.Record.Odds.Home.Valid)
		assert.False(t, res.Record.Odds.Draw.Valid)
		assert.False(t, res.Record.Odds.Over.Valid)
		assert.Empty(t, res.Record.HalfTimeScore)
	})

	t.Run("narrow row reads odds from column eleven", func(t *testing.T) {
		row := []string{"30/12", "MS", "", "A", "", "3-3", "", "B", "1-1", "", "", "1.50"}
		res := ParseRow(row, rc)
		require.Equal(t, ParseOK, res.Kind)
		assert.True(t, decimal.RequireFromString("1.50").Equal(res.Record.Odds.Home.Decimal))
	})

	t.Run("other market ignored", func(t *testing.T) {
		res := ParseRow(fixtureRow("29/12", "IY", "A", "1-0", "B", "1-0"), rc)
		assert.Equal(t, ParseIgnored, res.Kind)
	})

	t.Run("header ignored", func(t *testing.T) {
		row := fixtureRow("Tarih", "Kod", "Fikstür", "Skor", "", "", "")
		assert.Equal(t, ParseIgnored, ParseRow(row, rc).Kind)
	})

	t.Run("unplayed", func(t *testing.T) {
		for _, score := range []string{"-", "vs", "ERT", ""} {
			res := ParseRow(fixtureRow("02/01", "MS", "A", score, "B", ""), rc)
			assert.Equal(t, ParseUnplayed, res.Kind, score)
		}
	})

	t.Run("too few cells", func(t *testing.T) {
		res := ParseRow([]string{"29/12", "MS", "A"}, rc)
		assert.Equal(t, ParseMalformed, res.Kind)
		assert.Equal(t, []string{"29/12", "MS", "A"}, res.Raw)
	})
}

func TestParseRows(t *testing.T) {
	rc := RowContext{Season: "2024/2025", League: "L", WeekLabel: "3"}
	rows := [][]string{
		fixtureRow("01/09", "MS", "A", "1-0", "B", "0-0"),
		fixtureRow("01/09", "IY", "A", "0-0", "B", "0-0"),
		fixtureRow("02/09", "MS", "C", "-", "D", ""),
		{"short"},
	}
	records, counts := ParseRows(rows, rc)
	require.Len(t, records, 1)
	assert.Equal(t, "3", records[0].Week)
	assert.Equal(t, map[ParseKind]int{ParseOK: 1, ParseIgnored: 1, ParseUnplayed: 1, ParseMalformed: 1}, counts)
}
