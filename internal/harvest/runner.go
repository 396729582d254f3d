package harvest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/fortuna/almanac/internal/checkpoint"
	"github.com/fortuna/almanac/internal/fixture"
	"github.com/fortuna/almanac/internal/reconciliation"
	"github.com/fortuna/almanac/internal/resume"
	"github.com/fortuna/almanac/internal/store"
)

// abortWriteTimeout bounds the checkpoint write after a cancelled run.
const abortWriteTimeout = 30 * time.Second

// Runner harvests leagues one week at a time and folds the results into the
// dataset it is given. A Runner drives a single navigator session and must
// not run concurrently with itself.
type Runner struct {
	nav         Navigator
	leagues     []League
	source      store.Store
	checkpoints *checkpoint.Manager
	resolver    *resume.Resolver
	engine      *reconciliation.Engine
	opts        Options
	logger      *log.Logger
}

// NewRunner wires a runner. source is read at the start of Harvest; the
// checkpoint manager owns the final write.
func NewRunner(nav Navigator, leagues []League, source store.Store, checkpoints *checkpoint.Manager, opts Options, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.New(log.Writer(), "[harvest] ", log.LstdFlags)
	}
	opts = opts.withDefaults()
	return &Runner{
		nav:         nav,
		leagues:     leagues,
		source:      source,
		checkpoints: checkpoints,
		resolver:    resume.NewResolver(resume.WithBoundaryPolicy(opts.BoundaryPolicy)),
		engine:      reconciliation.NewEngine(logger),
		opts:        opts,
		logger:      logger,
	}
}

// Leagues returns the configured leagues.
func (r *Runner) Leagues() []League {
	return r.leagues
}

// Harvest performs a complete run: load the stored dataset, fold in any
// checkpoint left by an aborted run, visit every league and commit. When the
// run stops early the best known dataset is checkpointed synchronously, even
// if ctx is already cancelled.
func (r *Runner) Harvest(ctx context.Context, rep Reporter) (Result, error) {
	if rep == nil {
		rep = NopReporter{}
	}

	ds, err := r.source.Load(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load dataset from %s: %w", r.source.Location(), err)
	}
	r.logger.Printf("Loaded %d rows from %s", len(ds), r.source.Location())

	ds, _ = r.checkpoints.Recover(ctx, ds)

	res, err := r.Run(ctx, ds, rep)
	if err != nil {
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortWriteTimeout)
		defer cancel()
		res.Checkpoint = r.checkpoints.Abort(actx, res.Dataset, err)
		rep.OnRunAborted(res, err)
		return res, err
	}

	if err := r.checkpoints.Commit(ctx, res.Dataset); err != nil {
		res.Checkpoint = r.checkpoints.Location()
		rep.OnRunAborted(res, err)
		return res, err
	}

	r.logger.Printf("✓ Harvest complete: %d leagues, %d failed, %d new rows, %d total",
		res.Leagues, res.LeaguesFailed, res.Records, len(res.Dataset))
	rep.OnRunComplete(res)
	return res, nil
}

// Run visits every league, threading ds through each season merge, and
// returns the merged dataset in Result.Dataset. A failing league is logged
// and skipped. Cancellation or a panic outside a league stops the run with
// ErrInterrupted; the returned Result still carries everything merged so far.
func (r *Runner) Run(ctx context.Context, ds fixture.Dataset, rep Reporter) (res Result, err error) {
	if rep == nil {
		rep = NopReporter{}
	}
	res.Dataset = ds

	defer func() {
		if p := recover(); p != nil {
			res.Interrupted = true
			err = fmt.Errorf("%w: panic: %v", ErrInterrupted, p)
		}
	}()

	rep.OnRunStart(r.leagues)
	total := len(r.leagues)

	for i, league := range r.leagues {
		if cerr := ctx.Err(); cerr != nil {
			res.Interrupted = true
			return res, fmt.Errorf("%w: %w", ErrInterrupted, cerr)
		}

		r.logger.Printf("[%d/%d] %s", i+1, total, league.Name)
		rep.OnLeagueStart(league, i, total)

		next, lerr := r.runLeague(ctx, league, res.Dataset, rep, &res)
		res.Dataset = next

		if lerr != nil {
			if cerr := ctx.Err(); cerr != nil {
				res.Interrupted = true
				return res, fmt.Errorf("%w: %w", ErrInterrupted, cerr)
			}
			r.logger.Printf("❌ %s: %v (moving to next league)", league.Name, lerr)
			res.LeaguesFailed++
			res.Failures = append(res.Failures, LeagueFailure{League: league.Name, Error: lerr.Error()})
			rep.OnLeagueError(league, lerr)
			continue
		}
		res.Leagues++
	}

	return res, nil
}

// runLeague harvests the configured number of recent seasons of one league,
// oldest first. The named result always holds the latest merged dataset so a
// recovered panic keeps earlier seasons.
func (r *Runner) runLeague(ctx context.Context, league League, ds fixture.Dataset, rep Reporter, res *Result) (merged fixture.Dataset, err error) {
	merged = ds
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in league %s: %v", league.Name, p)
		}
	}()

	var seasons []string
	err = r.bounded(ctx, func(ctx context.Context) error {
		var serr error
		seasons, serr = r.nav.Seasons(ctx, league)
		return serr
	})
	if err != nil {
		return merged, fmt.Errorf("list seasons: %w", err)
	}
	if len(seasons) == 0 {
		r.logger.Printf("⚠️  %s: no seasons listed", league.Name)
		return merged, nil
	}
	if len(seasons) > r.opts.Seasons {
		seasons = seasons[:r.opts.Seasons]
	}

	for i := len(seasons) - 1; i >= 0; i-- {
		season := seasons[i]

		var weeks []fixture.WeekLocator
		err = r.bounded(ctx, func(ctx context.Context) error {
			var werr error
			weeks, werr = r.nav.Weeks(ctx, league, season)
			return werr
		})
		if err != nil {
			return merged, fmt.Errorf("list weeks of %s: %w", season, err)
		}

		decision := r.resolver.Resolve(merged, league.Name, fixture.NormalizeSeason(season), weeks)
		if decision.Rescan() {
			res.Rescans++
			r.logger.Printf("⚠️  %s %s: last stored week %s not found among %d weeks, rescanning season",
				league.Name, season, decision.LastWeek, len(weeks))
		} else {
			r.logger.Printf("  %s %s: resume %s", league.Name, season, decision)
		}
		rep.OnSeasonResume(league, season, decision)

		batch, fetched, serr := r.runSeason(ctx, league, season, weeks[decision.Index:], rep)
		res.Weeks += fetched
		if len(batch) > 0 {
			merged = r.engine.Merge(merged, batch)
			res.Records += len(batch)
		}
		if serr != nil {
			if len(batch) > 0 && ctx.Err() == nil {
				rep.OnCheckpoint(r.checkpoints.Location(), len(merged), r.checkpoints.Save(ctx, merged))
			}
			return merged, fmt.Errorf("season %s: %w", season, serr)
		}

		res.Seasons++
		r.logger.Printf("  ✓ %s %s: %d rows from %d weeks", league.Name, season, len(batch), fetched)
		rep.OnSeasonComplete(league, season, len(batch))
		rep.OnCheckpoint(r.checkpoints.Location(), len(merged), r.checkpoints.Save(ctx, merged))
	}

	return merged, nil
}

// runSeason fetches weeks in order until the source runs dry. It returns the
// parsed batch and the number of weeks fetched.
func (r *Runner) runSeason(ctx context.Context, league League, season string, weeks []fixture.WeekLocator, rep Reporter) (fixture.Dataset, int, error) {
	var (
		batch   fixture.Dataset
		fetched int
	)

	for i, week := range weeks {
		if err := ctx.Err(); err != nil {
			return batch, fetched, err
		}

		var rows [][]string
		err := r.bounded(ctx, func(ctx context.Context) error {
			var ferr error
			rows, ferr = r.nav.FetchWeek(ctx, league, season, week)
			return ferr
		})
		if err != nil {
			return batch, fetched, fmt.Errorf("week %s: %w", week.Label, err)
		}
		fetched++

		records, counts := fixture.ParseRows(rows, fixture.RowContext{
			Season:    season,
			League:    league.Name,
			WeekLabel: week.Label,
		})
		if n := counts[fixture.ParseMalformed]; n > 0 {
			r.logger.Printf("⚠️  %s %s week %s: dropped %d malformed rows", league.Name, season, week.Label, n)
		}
		rep.OnWeekFetched(league, season, week, len(records))

		if weekOutcome(i == 0, len(records)) == StopSeason {
			r.logger.Printf("  %s %s: week %s has no results, stopping season", league.Name, season, week.Label)
			break
		}
		batch = append(batch, records...)
	}

	return batch, fetched, nil
}

// weekOutcome applies the early-exit rule: an empty first week after resume
// is skipped over, an empty later week ends the season.
func weekOutcome(first bool, records int) WeekOutcome {
	if records == 0 && !first {
		return StopSeason
	}
	return WeekContinue
}

// bounded runs fn under the week timeout. The call is abandoned when the
// deadline passes even if fn ignores its context.
func (r *Runner) bounded(ctx context.Context, fn func(context.Context) error) error {
	if r.opts.WeekTimeout <= 0 {
		return fn(ctx)
	}

	cctx, cancel := context.WithTimeout(ctx, r.opts.WeekTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- fmt.Errorf("panic: %v", p)
			}
		}()
		done <- fn(cctx)
	}()

	select {
	case err := <-done:
		if err != nil && errors.Is(cctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w after %s: %v", ErrTimeout, r.opts.WeekTimeout, err)
		}
		return err
	case <-cctx.Done():
		if err := ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("%w after %s", ErrTimeout, r.opts.WeekTimeout)
	}
}
