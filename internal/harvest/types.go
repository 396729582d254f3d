package harvest

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fortuna/almanac/internal/fixture"
	"github.com/fortuna/almanac/internal/resume"
)

var (
	// ErrInterrupted wraps the cause of a run that stopped before visiting
	// every league: operator cancel or an unexpected panic.
	ErrInterrupted = errors.New("harvest interrupted")
	// ErrRunInProgress is returned when a run is triggered while another
	// one is active.
	ErrRunInProgress = errors.New("harvest already running")
	// ErrTimeout marks a navigator call that exceeded the week timeout.
	ErrTimeout = errors.New("navigator timeout")
)

// League is one competition to harvest.
type League struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

// Navigator drives the fixture source. Implementations are stateful and
// are called from one goroutine at a time.
type Navigator interface {
	// Seasons lists the league's seasons, most recent first.
	Seasons(ctx context.Context, league League) ([]string, error)
	// Weeks lists the week pages of a season in calendar order.
	Weeks(ctx context.Context, league League, season string) ([]fixture.WeekLocator, error)
	// FetchWeek returns the text cells of every fixture row on a week page.
	// A week with no fixtures yields no rows and no error.
	FetchWeek(ctx context.Context, league League, season string, week fixture.WeekLocator) ([][]string, error)
}

// RunStatus represents the lifecycle state of a run.
type RunStatus string

const (
	RunStatusRunning     RunStatus = "running"
	RunStatusCompleted   RunStatus = "completed"
	RunStatusFailed      RunStatus = "failed"
	RunStatusInterrupted RunStatus = "interrupted"
)

// Run models the database representation of a harvest run.
type Run struct {
	RunID         string         `json:"run_id"`
	Trigger       string         `json:"trigger"`
	Status        RunStatus      `json:"status"`
	StatusMessage sql.NullString `json:"-"`
	LeaguesTotal  int            `json:"leagues_total"`
	LeaguesDone   int            `json:"leagues_done"`
	Records       int            `json:"records"`
	Checkpoint    sql.NullString `json:"-"`
	LastError     sql.NullString `json:"-"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	StartedAt     sql.NullTime   `json:"-"`
	CompletedAt   sql.NullTime   `json:"-"`
}

// Copy returns a shallow copy to prevent external mutation.
func (r *Run) Copy() *Run {
	if r == nil {
		return nil
	}
	cpy := *r
	return &cpy
}

// RunView is the API shape of a Run.
type RunView struct {
	RunID         string     `json:"run_id"`
	Trigger       string     `json:"trigger"`
	Status        RunStatus  `json:"status"`
	StatusMessage string     `json:"status_message,omitempty"`
	LeaguesTotal  int        `json:"leagues_total"`
	LeaguesDone   int        `json:"leagues_done"`
	Records       int        `json:"records"`
	Checkpoint    string     `json:"checkpoint,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// View flattens the nullable columns for JSON.
func (r *Run) View() RunView {
	v := RunView{
		RunID:         r.RunID,
		Trigger:       r.Trigger,
		Status:        r.Status,
		StatusMessage: r.StatusMessage.String,
		LeaguesTotal:  r.LeaguesTotal,
		LeaguesDone:   r.LeaguesDone,
		Records:       r.Records,
		Checkpoint:    r.Checkpoint.String,
		LastError:     r.LastError.String,
		CreatedAt:     r.CreatedAt,
	}
	if r.StartedAt.Valid {
		t := r.StartedAt.Time
		v.StartedAt = &t
	}
	if r.CompletedAt.Valid {
		t := r.CompletedAt.Time
		v.CompletedAt = &t
	}
	return v
}

// StatusSummary is returned to API callers.
type StatusSummary struct {
	Active  *RunView  `json:"active_run,omitempty"`
	History []RunView `json:"recent_runs,omitempty"`
}

// LeagueFailure records a league the run gave up on.
type LeagueFailure struct {
	League string `json:"league"`
	Error  string `json:"error"`
}

// Result summarises one run.
type Result struct {
	Dataset       fixture.Dataset `json:"-"`
	Leagues       int             `json:"leagues"`
	LeaguesFailed int             `json:"leagues_failed"`
	Seasons       int             `json:"seasons"`
	Weeks         int             `json:"weeks"`
	Records       int             `json:"records"`
	Rescans       int             `json:"rescans"`
	Failures      []LeagueFailure `json:"failures,omitempty"`
	Checkpoint    string          `json:"checkpoint,omitempty"`
	Interrupted   bool            `json:"interrupted"`
}

// WeekOutcome tells the season loop whether to keep going after a week.
type WeekOutcome int

const (
	// WeekContinue moves on to the next week.
	WeekContinue WeekOutcome = iota
	// StopSeason ends the season: later weeks are assumed unplayed.
	StopSeason
)

// Options tunes a Runner.
type Options struct {
	// Seasons is how many of the most recent seasons to visit per league.
	Seasons int
	// WeekTimeout bounds every navigator call. Zero means no bound.
	WeekTimeout time.Duration
	// BoundaryPolicy is handed to the resume resolver.
	BoundaryPolicy resume.BoundaryPolicy
}

func (o Options) withDefaults() Options {
	if o.Seasons <= 0 {
		o.Seasons = 1
	}
	if o.BoundaryPolicy == "" {
		o.BoundaryPolicy = resume.StepBack
	}
	return o
}
