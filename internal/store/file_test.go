package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/almanac/internal/fixture"
)

func sampleDataset() fixture.Dataset {
	price := func(s string) decimal.NullDecimal {
		return decimal.NewNullDecimal(decimal.RequireFromString(s))
	}
	return fixture.Dataset{
		{
			Season: "2024/2025", League: "Süper Lig", Week: "1", Date: "10/08/2024", Code: "MS",
			HomeTeam: "Galatasaray", AwayTeam: "Hatayspor", FullTimeScore: "2-1", HalfTimeScore: "1-0",
			Odds: fixture.Odds{
				Home: price("1.25"), Draw: price("5.5"), Away: price("9.75"),
				HomeOrDraw: price("1.02"), HomeOrAway: price("1.1"), AwayOrDraw: price("3.4"),
				Under: price("2.35"), Over: price("1.52"),
			},
		},
		{
			Season: "2024/2025", League: "Süper Lig", Week: "2", Date: "17/08/2024", Code: "MS",
			HomeTeam: "Fenerbahçe", AwayTeam: "Alanyaspor", FullTimeScore: "0-0",
			Odds: fixture.Odds{Home: price("1.4")},
		},
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	for _, ext := range []string{".csv", ".xlsx"} {
		t.Run(ext, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "out", "fixtures"+ext)
			s, err := NewFileStore(path)
			require.NoError(t, err)

			exists, err := s.Exists(ctx)
			require.NoError(t, err)
			assert.False(t, exists)

			want := sampleDataset()
			require.NoError(t, s.Save(ctx, want))

			got, err := s.Load(ctx)
			require.NoError(t, err)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}

			entries, err := os.ReadDir(filepath.Dir(path))
			require.NoError(t, err)
			assert.Len(t, entries, 1, "temporary files must not be left behind")

			require.NoError(t, s.Remove(ctx))
			require.NoError(t, s.Remove(ctx))
			exists, err = s.Exists(ctx)
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

func TestFileStoreLoadMissingIsEmpty(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "none.xlsx"))
	require.NoError(t, err)

	ds, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, ds)
	assert.Empty(t, ds)
}

func TestFileStoreLegacyHeaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy_2023-2024.csv")
	content := "\ufeffSeason,Lig,Hafta,Tarih,Kod,EvSahibi,Deplasman,Skor,IY_Skor,1,0,2,1&0,1&2,2&0,Alt,Üst,Extra\n" +
		"2023-24,Premier,5 (12.09.2023 - 15.09.2023),14/09,MS,A,B,2-1,1-1,1.85,3.40,-,,,,2.05,1.72,ignored\n" +
		",,,,,,,,,,,,,,,,,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := NewFileStore(path)
	require.NoError(t, err)
	ds, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, ds, 1)

	r := ds[0]
	assert.Equal(t, "2023/2024", r.Season)
	assert.Equal(t, "Premier", r.League)
	assert.Equal(t, "5 (12.09.2023 - 15.09.2023)", r.Week, "week labels are converted separately")
	assert.Equal(t, "14/09", r.Date)
	assert.Equal(t, "1-1", r.HalfTimeScore)
	assert.True(t, decimal.RequireFromString("1.85").Equal(r.Odds.Home.Decimal))
	assert.False(t, r.Odds.Away.Valid)
	assert.False(t, r.Odds.HomeOrDraw.Valid)
	assert.True(t, decimal.RequireFromString("1.72").Equal(r.Odds.Over.Decimal))
}

func TestFileStoreMissingColumnsAreEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thin.csv")
	require.NoError(t, os.WriteFile(path, []byte("league,home_team\nX,A\n"), 0o644))

	s, err := NewFileStore(path)
	require.NoError(t, err)
	ds, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, fixture.MatchRecord{League: "X", HomeTeam: "A"}, ds[0])
}

func TestNewFileStoreRejectsUnknownFormat(t *testing.T) {
	_, err := NewFileStore("fixtures.json")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestSiblingPath(t *testing.T) {
	assert.Equal(t, "/data/fixtures.csv", SiblingPath("/data/fixtures.xlsx", ".csv"))
}
