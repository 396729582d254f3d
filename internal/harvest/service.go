package harvest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunStore persists run history. Repository is the PostgreSQL version.
type RunStore interface {
	CreateRun(ctx context.Context, run *Run) (*Run, error)
	UpdateProgress(ctx context.Context, runID string, leaguesDone, records int, message string) error
	FinishRun(ctx context.Context, runID string, status RunStatus, res Result, message string, runErr error) error
	ResetStuckRuns(ctx context.Context) error
	ListRecentRuns(ctx context.Context, limit int) ([]*Run, error)
}

// Service runs harvests in the background, one at a time, and keeps their
// history.
type Service struct {
	runner   *Runner
	runs     RunStore
	reporter Reporter

	historyLimit int

	mu          sync.Mutex
	active      *Run
	history     []*Run
	subscribers []func(Event)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// NewService constructs a Service. runs and reporter may be nil.
func NewService(runner *Runner, runs RunStore, reporter Reporter, logger *log.Logger) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	if logger == nil {
		logger = log.New(log.Writer(), "[harvest] ", log.LstdFlags)
	}
	if reporter == nil {
		reporter = NopReporter{}
	}

	return &Service{
		runner:       runner,
		runs:         runs,
		reporter:     reporter,
		historyLimit: 10,
		ctx:          ctx,
		cancel:       cancel,
		logger:       logger,
	}
}

// Subscribe registers fn to receive every event of every run. Call before
// Start.
func (s *Service) Subscribe(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Start marks runs orphaned by an earlier process as interrupted.
func (s *Service) Start() {
	if s.runs == nil {
		return
	}
	if err := s.runs.ResetStuckRuns(s.ctx); err != nil {
		s.logger.Printf("failed to reset runs: %v", err)
	}
}

// Shutdown cancels the active run and waits for its checkpoint to be written.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Trigger starts a run in the background. It fails with ErrRunInProgress
// while another run is active.
func (s *Service) Trigger(ctx context.Context, trigger string) (*Run, error) {
	s.mu.Lock()
	if err := s.ctx.Err(); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("service stopped: %w", err)
	}
	if s.active != nil {
		id := s.active.RunID
		s.mu.Unlock()
		return nil, fmt.Errorf("%w (run %s)", ErrRunInProgress, id)
	}

	now := time.Now().UTC()
	run := &Run{
		RunID:         uuid.NewString(),
		Trigger:       trigger,
		Status:        RunStatusRunning,
		StatusMessage: sql.NullString{String: "Starting harvest", Valid: true},
		LeaguesTotal:  len(s.runner.Leagues()),
		CreatedAt:     now,
		UpdatedAt:     now,
		StartedAt:     sql.NullTime{Time: now, Valid: true},
	}
	s.active = run
	// Paired with cancel under mu in Shutdown.
	s.wg.Add(1)
	s.mu.Unlock()

	if s.runs != nil {
		if stored, err := s.runs.CreateRun(ctx, run); err != nil {
			s.logger.Printf("⚠️  failed to record run %s: %v", run.RunID, err)
		} else {
			s.mu.Lock()
			run.CreatedAt = stored.CreatedAt
			s.mu.Unlock()
		}
	}

	s.logger.Printf("Run %s started (%s)", run.RunID, trigger)

	go s.execute(run)

	s.mu.Lock()
	defer s.mu.Unlock()
	return run.Copy(), nil
}

// Status returns the active run plus recent history.
func (s *Service) Status(ctx context.Context) (*StatusSummary, error) {
	summary := &StatusSummary{}

	s.mu.Lock()
	if s.active != nil {
		v := s.active.View()
		summary.Active = &v
	}
	local := make([]*Run, len(s.history))
	for i, r := range s.history {
		local[i] = r.Copy()
	}
	s.mu.Unlock()

	history := local
	if s.runs != nil {
		stored, err := s.runs.ListRecentRuns(ctx, s.historyLimit)
		if err != nil {
			return nil, err
		}
		history = stored
	}

	for _, r := range history {
		summary.History = append(summary.History, r.View())
	}
	return summary, nil
}

func (s *Service) execute(run *Run) {
	defer s.wg.Done()

	tracker := EventReporter(func(e Event) {
		e.RunID = run.RunID
		s.track(run, e)
		s.publish(e)
	})

	res, err := s.runner.Harvest(s.ctx, MultiReporter{s.reporter, tracker})

	status, message := RunStatusCompleted, "Harvest completed"
	switch {
	case errors.Is(err, ErrInterrupted):
		status, message = RunStatusInterrupted, "Harvest interrupted"
	case err != nil:
		status, message = RunStatusFailed, "Harvest failed"
	}

	now := time.Now().UTC()
	s.mu.Lock()
	run.Status = status
	run.StatusMessage = sql.NullString{String: message, Valid: true}
	run.LeaguesDone = res.Leagues + res.LeaguesFailed
	run.Records = res.Records
	run.Checkpoint = sql.NullString{String: res.Checkpoint, Valid: res.Checkpoint != ""}
	if err != nil {
		run.LastError = sql.NullString{String: err.Error(), Valid: true}
	}
	run.UpdatedAt = now
	run.CompletedAt = sql.NullTime{Time: now, Valid: true}
	s.mu.Unlock()

	if s.runs != nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), 10*time.Second)
		if ferr := s.runs.FinishRun(ctx, run.RunID, status, res, message, err); ferr != nil {
			s.logger.Printf("⚠️  failed to record result of run %s: %v", run.RunID, ferr)
		}
		cancel()
	}

	s.mu.Lock()
	s.active = nil
	s.history = append([]*Run{run.Copy()}, s.history...)
	if len(s.history) > s.historyLimit {
		s.history = s.history[:s.historyLimit]
	}
	s.mu.Unlock()

	s.logger.Printf("Run %s %s", run.RunID, status)
}

// track keeps the in-memory run and the stored progress current.
func (s *Service) track(run *Run, e Event) {
	var message string

	s.mu.Lock()
	switch e.Type {
	case EventLeagueStarted:
		run.LeaguesDone = e.Current - 1
		message = fmt.Sprintf("Harvesting %s (%d/%d)", e.League, e.Current, e.Total)
	case EventWeekFetched:
		run.Records += e.Records
	case EventSeasonCompleted:
		message = fmt.Sprintf("Finished %s %s", e.League, e.Season)
	}
	if message != "" {
		run.StatusMessage = sql.NullString{String: message, Valid: true}
	}
	run.UpdatedAt = e.Time
	done, records := run.LeaguesDone, run.Records
	s.mu.Unlock()

	if message != "" && s.runs != nil {
		if err := s.runs.UpdateProgress(s.ctx, run.RunID, done, records, message); err != nil {
			s.logger.Printf("⚠️  failed to update run %s: %v", run.RunID, err)
		}
	}
}

func (s *Service) publish(e Event) {
	s.mu.Lock()
	subs := append([]func(Event){}, s.subscribers...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(e)
	}
}
