package harvest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRuns struct {
	mu       sync.Mutex
	runs     []*Run
	progress []string
	resets   int
}

func (m *memRuns) CreateRun(ctx context.Context, run *Run) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := run.Copy()
	m.runs = append([]*Run{stored}, m.runs...)
	return stored.Copy(), nil
}

func (m *memRuns) UpdateProgress(ctx context.Context, runID string, leaguesDone, records int, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress = append(m.progress, message)
	return nil
}

func (m *memRuns) FinishRun(ctx context.Context, runID string, status RunStatus, res Result, message string, runErr error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		if r.RunID == runID {
			r.Status = status
			r.Records = res.Records
		}
	}
	return nil
}

func (m *memRuns) ResetStuckRuns(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
	return nil
}

func (m *memRuns) ListRecentRuns(ctx context.Context, limit int) ([]*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Run
	for _, r := range m.runs {
		out = append(out, r.Copy())
	}
	return out, nil
}

func waitIdle(t *testing.T, s *Service) *StatusSummary {
	t.Helper()
	var summary *StatusSummary
	require.Eventually(t, func() bool {
		st, err := s.Status(context.Background())
		require.NoError(t, err)
		summary = st
		return st.Active == nil
	}, 5*time.Second, 10*time.Millisecond)
	return summary
}

func TestServiceRefusesConcurrentRuns(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	h.nav.addWeek("X", "2024/2025", "1", playedRow("10/08/2024", "A", "B", "1-0"))
	h.nav.onFetch = func(string, string) { <-release }

	runs := &memRuns{}
	svc := NewService(h.runner(Options{}, "X"), runs, nil, h.logger)
	svc.Start()
	assert.Equal(t, 1, runs.resets)

	var (
		mu     sync.Mutex
		events []Event
	)
	svc.Subscribe(func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	run, err := svc.Trigger(context.Background(), "api")
	require.NoError(t, err)
	assert.NotEmpty(t, run.RunID)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.Equal(t, 1, run.LeaguesTotal)

	_, err = svc.Trigger(context.Background(), "cron")
	assert.True(t, errors.Is(err, ErrRunInProgress))

	st, err := svc.Status(context.Background())
	require.NoError(t, err)
	require.NotNil(t, st.Active)
	assert.Equal(t, run.RunID, st.Active.RunID)

	close(release)
	summary := waitIdle(t, svc)
	require.Len(t, summary.History, 1)
	assert.Equal(t, RunStatusCompleted, summary.History[0].Status)
	assert.Equal(t, 1, summary.History[0].Records)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, events)
	assert.Equal(t, EventRunStarted, events[0].Type)
	assert.Equal(t, EventRunCompleted, events[len(events)-1].Type)
	for _, e := range events {
		assert.Equal(t, run.RunID, e.RunID)
	}

	require.NoError(t, svc.Shutdown(context.Background()))
}

func TestServiceShutdownInterruptsRun(t *testing.T) {
	h := newHarness(t)
	h.nav.addWeek("X", "2024/2025", "1", playedRow("10/08/2024", "A", "B", "1-0"))
	h.nav.block["X"] = true
	started := make(chan struct{})
	var once sync.Once
	h.nav.onFetch = func(string, string) { once.Do(func() { close(started) }) }

	svc := NewService(h.runner(Options{}, "X"), nil, nil, h.logger)
	_, err := svc.Trigger(context.Background(), "manual")
	require.NoError(t, err)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))

	st, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.Nil(t, st.Active)
	require.Len(t, st.History, 1)
	assert.Equal(t, RunStatusInterrupted, st.History[0].Status)
	assert.Equal(t, h.sink.Location(), st.History[0].Checkpoint)

	_, err = svc.Trigger(context.Background(), "manual")
	assert.Error(t, err)
}

func TestServiceTriggerRacingShutdown(t *testing.T) {
	h := newHarness(t)
	h.nav.addWeek("X", "2024/2025", "1", playedRow("10/08/2024", "A", "B", "1-0"))

	svc := NewService(h.runner(Options{}, "X"), nil, nil, h.logger)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				_, err := svc.Trigger(context.Background(), "race")
				if err != nil && !errors.Is(err, ErrRunInProgress) {
					return
				}
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))
	wg.Wait()

	st, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.Nil(t, st.Active, "no run may start after Shutdown returns")

	_, err = svc.Trigger(context.Background(), "late")
	assert.ErrorContains(t, err, "service stopped")
}
