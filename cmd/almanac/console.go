package main

import (
	"log"

	"github.com/fortuna/almanac/internal/fixture"
	"github.com/fortuna/almanac/internal/harvest"
	"github.com/fortuna/almanac/internal/resume"
)

// consoleReporter prints run progress for interactive use.
type consoleReporter struct {
	logger *log.Logger
}

func (c *consoleReporter) OnRunStart(leagues []harvest.League) {
	c.logger.Printf("Harvesting %d leagues", len(leagues))
}

func (c *consoleReporter) OnLeagueStart(league harvest.League, index, total int) {
	c.logger.Printf("[%d/%d] %s", index+1, total, league.Name)
}

func (c *consoleReporter) OnSeasonResume(league harvest.League, season string, d resume.Decision) {
	c.logger.Printf("  → Season %s: %s", fixture.NormalizeSeason(season), d)
}

func (c *consoleReporter) OnWeekFetched(league harvest.League, season string, week fixture.WeekLocator, records int) {
	c.logger.Printf("    %s: %d matches", week.Label, records)
}

func (c *consoleReporter) OnSeasonComplete(league harvest.League, season string, records int) {
	c.logger.Printf("  ✓ %s %s: %d matches", league.Name, fixture.NormalizeSeason(season), records)
}

func (c *consoleReporter) OnLeagueError(league harvest.League, err error) {
	c.logger.Printf("  ❌ %s skipped: %v", league.Name, err)
}

func (c *consoleReporter) OnCheckpoint(location string, rows int, saved bool) {
	if saved {
		c.logger.Printf("  Checkpoint %s (%d rows)", location, rows)
	}
}

func (c *consoleReporter) OnRunComplete(res harvest.Result) {
	c.logger.Printf("✓ %d leagues, %d failed, %d new rows, %d total", res.Leagues, res.LeaguesFailed, res.Records, len(res.Dataset))
}

func (c *consoleReporter) OnRunAborted(res harvest.Result, cause error) {
	if res.Checkpoint != "" {
		c.logger.Printf("❌ Run stopped: %v. Progress kept in %s", cause, res.Checkpoint)
		return
	}
	c.logger.Printf("❌ Run stopped: %v", cause)
}
