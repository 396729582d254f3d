package store

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/fortuna/almanac/internal/fixture"
)

var fixtureColumns = []string{
	"position", "season", "league", "week", "match_date", "code",
	"home_team", "away_team", "ft_score", "ht_score",
	"odds_home", "odds_draw", "odds_away",
	"odds_home_or_draw", "odds_home_or_away", "odds_away_or_draw",
	"odds_under", "odds_over",
}

// PostgresStore mirrors the dataset into the fixtures table. Every Save
// replaces the table contents inside one transaction.
type PostgresStore struct {
	db *Database
}

// NewPostgresStore builds a store on an open database. Migrations must have
// been applied.
func NewPostgresStore(db *Database) *PostgresStore {
	return &PostgresStore{db: db}
}

// Location names the backing table.
func (s *PostgresStore) Location() string {
	return "postgres:fixtures"
}

// Load reads the table in stored order.
func (s *PostgresStore) Load(ctx context.Context) (fixture.Dataset, error) {
	query := `
		SELECT season, league, week, match_date, code, home_team, away_team,
		       ft_score, ht_score,
		       odds_home, odds_draw, odds_away,
		       odds_home_or_draw, odds_home_or_away, odds_away_or_draw,
		       odds_under, odds_over
		FROM fixtures
		ORDER BY position
	`
	rows, err := s.db.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query fixtures: %w", err)
	}
	defer rows.Close()

	ds := fixture.Dataset{}
	for rows.Next() {
		var r fixture.MatchRecord
		o := &r.Odds
		if err := rows.Scan(
			&r.Season, &r.League, &r.Week, &r.Date, &r.Code, &r.HomeTeam, &r.AwayTeam,
			&r.FullTimeScore, &r.HalfTimeScore,
			&o.Home, &o.Draw, &o.Away,
			&o.HomeOrDraw, &o.HomeOrAway, &o.AwayOrDraw,
			&o.Under, &o.Over,
		); err != nil {
			return nil, fmt.Errorf("scan fixture: %w", err)
		}
		ds = append(ds, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fixtures: %w", err)
	}
	return ds.NormalizeSeasons(), nil
}

// Save replaces the table with ds using COPY.
func (s *PostgresStore) Save(ctx context.Context, ds fixture.Dataset) error {
	tx, err := s.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM fixtures"); err != nil {
		return fmt.Errorf("clear fixtures: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("fixtures", fixtureColumns...))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", err)
	}

	for i, r := range ds {
		o := r.Odds
		if _, err := stmt.ExecContext(ctx,
			i, r.Season, r.League, r.Week, r.Date, r.Code, r.HomeTeam, r.AwayTeam,
			r.FullTimeScore, r.HalfTimeScore,
			o.Home, o.Draw, o.Away,
			o.HomeOrDraw, o.HomeOrAway, o.AwayOrDraw,
			o.Under, o.Over,
		); err != nil {
			stmt.Close()
			return fmt.Errorf("copy fixture %d: %w", i, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("close copy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
