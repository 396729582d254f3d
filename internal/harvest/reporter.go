package harvest

import (
	"fmt"
	"time"

	"github.com/fortuna/almanac/internal/fixture"
	"github.com/fortuna/almanac/internal/resume"
)

// Reporter receives lifecycle callbacks from the runner. Callbacks run on
// the harvesting goroutine and should return quickly.
type Reporter interface {
	OnRunStart(leagues []League)
	OnLeagueStart(league League, index, total int)
	OnSeasonResume(league League, season string, decision resume.Decision)
	OnWeekFetched(league League, season string, week fixture.WeekLocator, records int)
	OnSeasonComplete(league League, season string, records int)
	OnLeagueError(league League, err error)
	OnCheckpoint(location string, rows int, saved bool)
	OnRunComplete(res Result)
	OnRunAborted(res Result, cause error)
}

// NopReporter ignores every callback. Embed it to implement a subset.
type NopReporter struct{}

func (NopReporter) OnRunStart([]League) {}
func (NopReporter) OnLeagueStart(League, int, int) {}
func (NopReporter) OnSeasonResume(League, string, resume.Decision) {}
func (NopReporter) OnWeekFetched(League, string, fixture.WeekLocator, int) {}
func (NopReporter) OnSeasonComplete(League, string, int) {}
func (NopReporter) OnLeagueError(League, error) {}
func (NopReporter) OnCheckpoint(string, int, bool) {}
func (NopReporter) OnRunComplete(Result) {}
func (NopReporter) OnRunAborted(Result, error) {}

// MultiReporter fans callbacks out in order. Nil entries are skipped.
type MultiReporter []Reporter

func (m MultiReporter) each(fn func(Reporter)) {
	for _, r := range m {
		if r != nil {
			fn(r)
		}
	}
}

func (m MultiReporter) OnRunStart(leagues []League) {
	m.each(func(r Reporter) { r.OnRunStart(leagues) })
}

func (m MultiReporter) OnLeagueStart(league League, index, total int) {
	m.each(func(r Reporter) { r.OnLeagueStart(league, index, total) })
}

func (m MultiReporter) OnSeasonResume(league League, season string, d resume.Decision) {
	m.each(func(r Reporter) { r.OnSeasonResume(league, season, d) })
}

func (m MultiReporter) OnWeekFetched(league League, season string, week fixture.WeekLocator, records int) {
	m.each(func(r Reporter) { r.OnWeekFetched(league, season, week, records) })
}

func (m MultiReporter) OnSeasonComplete(league League, season string, records int) {
	m.each(func(r Reporter) { r.OnSeasonComplete(league, season, records) })
}

func (m MultiReporter) OnLeagueError(league League, err error) {
	m.each(func(r Reporter) { r.OnLeagueError(league, err) })
}

func (m MultiReporter) OnCheckpoint(location string, rows int, saved bool) {
	m.each(func(r Reporter) { r.OnCheckpoint(location, rows, saved) })
}

func (m MultiReporter) OnRunComplete(res Result) {
	m.each(func(r Reporter) { r.OnRunComplete(res) })
}

func (m MultiReporter) OnRunAborted(res Result, cause error) {
	m.each(func(r Reporter) { r.OnRunAborted(res, cause) })
}

// EventType names a harvest event.
type EventType string

const (
	EventRunStarted      EventType = "run_started"
	EventLeagueStarted   EventType = "league_started"
	EventSeasonResumed   EventType = "season_resumed"
	EventWeekFetched     EventType = "week_fetched"
	EventSeasonCompleted EventType = "season_completed"
	EventLeagueFailed    EventType = "league_failed"
	EventCheckpoint      EventType = "checkpoint"
	EventRunCompleted    EventType = "run_completed"
	EventRunAborted      EventType = "run_aborted"
)

// Event is the flat form of a callback, for streams and sockets.
type Event struct {
	Type    EventType `json:"type"`
	RunID   string    `json:"run_id,omitempty"`
	League  string    `json:"league,omitempty"`
	Season  string    `json:"season,omitempty"`
	Week    string    `json:"week,omitempty"`
	Records int       `json:"records,omitempty"`
	Current int       `json:"current,omitempty"`
	Total   int       `json:"total,omitempty"`
	Message string    `json:"message,omitempty"`
	Time    time.Time `json:"time"`
}

// EventReporter turns every callback into an Event.
type EventReporter func(Event)

func (f EventReporter) emit(e Event) {
	e.Time = time.Now().UTC()
	f(e)
}

func (f EventReporter) OnRunStart(leagues []League) {
	f.emit(Event{Type: EventRunStarted, Total: len(leagues)})
}

func (f EventReporter) OnLeagueStart(league League, index, total int) {
	f.emit(Event{Type: EventLeagueStarted, League: league.Name, Current: index + 1, Total: total})
}

func (f EventReporter) OnSeasonResume(league League, season string, d resume.Decision) {
	f.emit(Event{
		Type:    EventSeasonResumed,
		League:  league.Name,
		Season:  fixture.NormalizeSeason(season),
		Week:    d.LastWeek,
		Current: d.Index,
		Message: string(d.Strategy),
	})
}

func (f EventReporter) OnWeekFetched(league League, season string, week fixture.WeekLocator, records int) {
	f.emit(Event{
		Type:    EventWeekFetched,
		League:  league.Name,
		Season:  fixture.NormalizeSeason(season),
		Week:    fixture.ParseWeek(week.Label),
		Records: records,
	})
}

func (f EventReporter) OnSeasonComplete(league League, season string, records int) {
	f.emit(Event{Type: EventSeasonCompleted, League: league.Name, Season: fixture.NormalizeSeason(season), Records: records})
}

func (f EventReporter) OnLeagueError(league League, err error) {
	f.emit(Event{Type: EventLeagueFailed, League: league.Name, Message: err.Error()})
}

func (f EventReporter) OnCheckpoint(location string, rows int, saved bool) {
	msg := location
	if !saved {
		msg = "failed: " + location
	}
	f.emit(Event{Type: EventCheckpoint, Records: rows, Message: msg})
}

func (f EventReporter) OnRunComplete(res Result) {
	f.emit(Event{
		Type:    EventRunCompleted,
		Records: res.Records,
		Current: res.Leagues,
		Total:   res.Leagues + res.LeaguesFailed,
	})
}

func (f EventReporter) OnRunAborted(res Result, cause error) {
	f.emit(Event{
		Type:    EventRunAborted,
		Records: res.Records,
		Message: fmt.Sprintf("%v (checkpoint: %s)", cause, res.Checkpoint),
	})
}
