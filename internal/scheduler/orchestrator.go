package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fortuna/almanac/internal/harvest"
)

// Trigger starts a harvest run. harvest.Service implements it.
type Trigger interface {
	Trigger(ctx context.Context, trigger string) (*harvest.Run, error)
}

// Config holds scheduler configuration
type Config struct {
	Spec       string         // cron spec, default "0 3 * * *"
	RunOnStart bool           // trigger once when the scheduler starts
	Location   *time.Location // default time.Local
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		Spec:     "0 3 * * *",
		Location: time.Local,
	}
}

// Orchestrator triggers harvests on a cron schedule.
type Orchestrator struct {
	trigger Trigger
	config  Config
	cron    *cron.Cron
	entry   cron.EntryID
	logger  *log.Logger

	mu        sync.Mutex
	fired     int
	skipped   int
	lastRunID string
	lastError string
	lastFired time.Time
}

// NewOrchestrator validates the cron schedule and builds a stopped scheduler.
func NewOrchestrator(trigger Trigger, config Config, logger *log.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[scheduler] ", log.LstdFlags)
	}
	if config.Spec == "" {
		config.Spec = DefaultConfig().Spec
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if _, err := cron.ParseStandard(config.Spec); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", config.Spec, err)
	}

	cl := cron.PrintfLogger(logger)
	return &Orchestrator{
		trigger: trigger,
		config:  config,
		cron: cron.New(
			cron.WithLocation(config.Location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
	}, nil
}

// Start schedules the harvest job and begins the cron loop.
func (o *Orchestrator) Start(ctx context.Context) error {
	id, err := o.cron.AddFunc(o.config.Spec, func() { o.fire(ctx, "cron") })
	if err != nil {
		return fmt.Errorf("schedule harvest: %w", err)
	}
	o.entry = id
	o.cron.Start()

	o.logger.Printf("→ Harvest scheduled %q, next run %s", o.config.Spec, o.NextRun().Format("2006-01-02 15:04:05"))

	if o.config.RunOnStart {
		go o.fire(ctx, "startup")
	}
	return nil
}

// Stop halts the schedule and waits for a running job callback to return.
func (o *Orchestrator) Stop() {
	o.logger.Println("Stopping scheduler...")
	<-o.cron.Stop().Done()
	o.logger.Println("✓ Scheduler stopped")
}

// NextRun returns the next scheduled time, zero before Start.
func (o *Orchestrator) NextRun() time.Time {
	if o.entry == 0 {
		return time.Time{}
	}
	return o.cron.Entry(o.entry).Next
}

// GetStatus returns current scheduler status
func (o *Orchestrator) GetStatus() map[string]interface{} {
	o.mu.Lock()
	defer o.mu.Unlock()

	status := map[string]interface{}{
		"schedule": o.config.Spec,
		"fired":    o.fired,
		"skipped":  o.skipped,
	}
	if next := o.NextRun(); !next.IsZero() {
		status["next_run"] = next
	}
	if !o.lastFired.IsZero() {
		status["last_fired"] = o.lastFired
	}
	if o.lastRunID != "" {
		status["last_run_id"] = o.lastRunID
	}
	if o.lastError != "" {
		status["last_error"] = o.lastError
	}
	return status
}

func (o *Orchestrator) fire(ctx context.Context, source string) {
	if ctx.Err() != nil {
		return
	}

	run, err := o.trigger.Trigger(ctx, source)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastFired = time.Now()

	switch {
	case errors.Is(err, harvest.ErrRunInProgress):
		o.skipped++
		o.logger.Printf("⚠️  Scheduled harvest skipped: %v", err)
	case err != nil:
		o.lastError = err.Error()
		o.logger.Printf("❌ Scheduled harvest failed to start: %v", err)
	default:
		o.fired++
		o.lastRunID = run.RunID
		o.lastError = ""
		o.logger.Printf("✓ Scheduled harvest %s started (%s)", run.RunID, source)
	}
}
