package harvest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/almanac/internal/store"
)

// newTestRepository connects to ALMANAC_DSN inside a throwaway schema.
func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	dsn := os.Getenv("ALMANAC_DSN")
	if dsn == "" {
		t.Skip("ALMANAC_DSN not set")
	}

	schema := fmt.Sprintf("almanac_runs_%d", time.Now().UnixNano())
	admin, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	_, err = admin.Exec("CREATE SCHEMA " + schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		admin.Exec("DROP SCHEMA " + schema + " CASCADE")
		admin.Close()
	})

	if strings.Contains(dsn, "://") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "search_path=" + schema
	} else {
		dsn += " search_path=" + schema
	}

	db, err := store.NewDatabase(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(context.Background()))

	return NewRepository(db)
}

func newRun(trigger string) *Run {
	return &Run{
		RunID:         uuid.NewString(),
		Trigger:       trigger,
		Status:        RunStatusRunning,
		StatusMessage: sql.NullString{String: "Starting harvest", Valid: true},
		LeaguesTotal:  3,
	}
}

func TestRepositoryRunLifecycle(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	stored, err := repo.CreateRun(ctx, newRun("api"))
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, stored.Status)
	assert.Equal(t, "api", stored.Trigger)
	assert.Equal(t, 3, stored.LeaguesTotal)
	assert.True(t, stored.StartedAt.Valid)
	assert.False(t, stored.CompletedAt.Valid)
	assert.False(t, stored.CreatedAt.IsZero())

	require.NoError(t, repo.UpdateProgress(ctx, stored.RunID, 1, 42, "Harvesting X (2/3)"))

	runs, err := repo.ListRecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].LeaguesDone)
	assert.Equal(t, 42, runs[0].Records)
	assert.Equal(t, "Harvesting X (2/3)", runs[0].StatusMessage.String)

	res := Result{Leagues: 2, LeaguesFailed: 1, Records: 57, Checkpoint: "fixtures_temp.xlsx"}
	cause := errors.New("boom")
	require.NoError(t, repo.FinishRun(ctx, stored.RunID, RunStatusFailed, res, "Harvest failed", cause))

	runs, err = repo.ListRecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	got := runs[0]
	assert.Equal(t, RunStatusFailed, got.Status)
	assert.Equal(t, 3, got.LeaguesDone)
	assert.Equal(t, 57, got.Records)
	assert.Equal(t, "fixtures_temp.xlsx", got.Checkpoint.String)
	assert.Equal(t, "boom", got.LastError.String)
	assert.True(t, got.CompletedAt.Valid)
}

func TestRepositoryFinishWithoutErrorLeavesNulls(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	stored, err := repo.CreateRun(ctx, newRun("cron"))
	require.NoError(t, err)
	require.NoError(t, repo.FinishRun(ctx, stored.RunID, RunStatusCompleted, Result{Leagues: 3, Records: 9}, "Harvest completed", nil))

	runs, err := repo.ListRecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, RunStatusCompleted, runs[0].Status)
	assert.False(t, runs[0].LastError.Valid)
	assert.False(t, runs[0].Checkpoint.Valid)
}

func TestRepositoryResetStuckRuns(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	stuck, err := repo.CreateRun(ctx, newRun("cron"))
	require.NoError(t, err)
	done, err := repo.CreateRun(ctx, newRun("api"))
	require.NoError(t, err)
	require.NoError(t, repo.FinishRun(ctx, done.RunID, RunStatusCompleted, Result{}, "Harvest completed", nil))

	require.NoError(t, repo.ResetStuckRuns(ctx))

	runs, err := repo.ListRecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	status := map[string]RunStatus{}
	for _, r := range runs {
		status[r.RunID] = r.Status
	}
	assert.Equal(t, RunStatusInterrupted, status[stuck.RunID])
	assert.Equal(t, RunStatusCompleted, status[done.RunID])

	runs, err = repo.ListRecentRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
