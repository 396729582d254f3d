package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/almanac/internal/fixture"
	"github.com/fortuna/almanac/internal/harvest"
)

type memStore struct {
	ds  fixture.Dataset
	err error
}

func (m *memStore) Load(ctx context.Context) (fixture.Dataset, error) { return m.ds.Clone(), m.err }
func (m *memStore) Save(ctx context.Context, ds fixture.Dataset) error {
	m.ds = ds.Clone()
	return nil
}
func (m *memStore) Location() string { return "mem" }

type fakeHarvests struct {
	triggers []string
	err      error
	summary  *harvest.StatusSummary
}

func (f *fakeHarvests) Trigger(ctx context.Context, trigger string) (*harvest.Run, error) {
	f.triggers = append(f.triggers, trigger)
	if f.err != nil {
		return nil, f.err
	}
	return &harvest.Run{RunID: "run-1", Trigger: trigger, Status: harvest.RunStatusRunning, CreatedAt: time.Now()}, nil
}

func (f *fakeHarvests) Status(ctx context.Context) (*harvest.StatusSummary, error) {
	if f.summary == nil {
		return &harvest.StatusSummary{}, nil
	}
	return f.summary, nil
}

type fakeSchedule map[string]interface{}

func (f fakeSchedule) GetStatus() map[string]interface{} { return f }

func record(league, season, week, home, away string) fixture.MatchRecord {
	return fixture.MatchRecord{
		Season:        season,
		League:        league,
		Week:          week,
		Date:          "14/09/2024",
		Code:          "MS",
		HomeTeam:      home,
		AwayTeam:      away,
		FullTimeScore: "1-0",
	}
}

func newTestServer(fixtures *memStore, harvests *fakeHarvests, schedule ScheduleStatus) http.Handler {
	return NewServer("0", fixtures, harvests, schedule, log.New(io.Discard, "", 0)).Router()
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload), rec.Body.String())
	return rec, payload
}

func TestHealthCheck(t *testing.T) {
	h := newTestServer(&memStore{}, &fakeHarvests{}, nil)
	rec, payload := doRequest(t, h, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", payload["status"])
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

type fakePinger struct{ err error }

func (p fakePinger) HealthCheck(context.Context) error { return p.err }

func TestHealthCheckReportsDependencies(t *testing.T) {
	srv := NewServer("0", &memStore{}, &fakeHarvests{}, nil, log.New(io.Discard, "", 0))
	srv.AddHealthCheck("postgres", fakePinger{})
	srv.AddHealthCheck("redis", fakePinger{err: errors.New("connection refused")})

	rec, payload := doRequest(t, srv.Router(), "GET", "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", payload["status"])
	checks := payload["checks"].(map[string]interface{})
	assert.Equal(t, "ok", checks["postgres"])
	assert.Equal(t, "connection refused", checks["redis"])
}

func TestGetFixturesFilters(t *testing.T) {
	fixtures := &memStore{ds: fixture.Dataset{
		record("Premier", "2024/2025", "1", "A", "B"),
		record("Premier", "2024/2025", "2", "C", "D"),
		record("Premier", "2023/2024", "2", "E", "F"),
		record("Serie A", "2024/2025", "2", "G", "H"),
	}}
	h := newTestServer(fixtures, &fakeHarvests{}, nil)

	rec, payload := doRequest(t, h, "GET", "/api/v1/fixtures?league=premier&season=2024-25&week=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, payload["total"])
	list := payload["fixtures"].([]interface{})
	require.Len(t, list, 1)
	assert.Equal(t, "C", list[0].(map[string]interface{})["home_team"])

	_, payload = doRequest(t, h, "GET", "/api/v1/fixtures?limit=2", "")
	assert.EqualValues(t, 4, payload["total"])
	assert.EqualValues(t, 2, payload["count"])

	rec, _ = doRequest(t, h, "GET", "/api/v1/fixtures?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetFixturesLoadError(t *testing.T) {
	h := newTestServer(&memStore{err: errors.New("disk gone")}, &fakeHarvests{}, nil)
	rec, payload := doRequest(t, h, "GET", "/api/v1/fixtures", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "disk gone", payload["details"])
}

func TestGetSummary(t *testing.T) {
	fixtures := &memStore{ds: fixture.Dataset{
		record("Premier", "2024/2025", "1", "A", "B"),
		record("Premier", "2024/2025", "2", "C", "D"),
	}}
	h := newTestServer(fixtures, &fakeHarvests{}, nil)

	rec, payload := doRequest(t, h, "GET", "/api/v1/fixtures/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, payload["total"])
	seasons := payload["seasons"].([]interface{})
	require.Len(t, seasons, 1)
	assert.Equal(t, "2", seasons[0].(map[string]interface{})["last_week"])
}

func TestHarvestRequest(t *testing.T) {
	harvests := &fakeHarvests{}
	h := newTestServer(&memStore{}, harvests, nil)

	rec, payload := doRequest(t, h, "POST", "/api/v1/harvest", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "run-1", payload["run"].(map[string]interface{})["run_id"])

	rec, _ = doRequest(t, h, "POST", "/api/v1/harvest", `{"trigger":"dashboard"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"api", "dashboard"}, harvests.triggers)

	rec, _ = doRequest(t, h, "POST", "/api/v1/harvest", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHarvestRequestConflict(t *testing.T) {
	harvests := &fakeHarvests{err: harvest.ErrRunInProgress}
	h := newTestServer(&memStore{}, harvests, nil)

	rec, _ := doRequest(t, h, "POST", "/api/v1/harvest", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHarvestStatus(t *testing.T) {
	harvests := &fakeHarvests{}
	h := newTestServer(&memStore{}, harvests, nil)

	_, payload := doRequest(t, h, "GET", "/api/v1/harvest/status", "")
	assert.Equal(t, "idle", payload["status"])
	assert.Empty(t, payload["history"])

	harvests.summary = &harvest.StatusSummary{
		Active: &harvest.RunView{RunID: "run-2", Status: harvest.RunStatusRunning, StatusMessage: "Harvesting Premier (1/6)"},
		History: []harvest.RunView{
			{RunID: "run-1", Status: harvest.RunStatusCompleted},
		},
	}
	_, payload = doRequest(t, h, "GET", "/api/v1/harvest/status", "")
	assert.Equal(t, "running", payload["status"])
	assert.Equal(t, "Harvesting Premier (1/6)", payload["message"])
	assert.Len(t, payload["history"], 1)
}

func TestHarvestSchedule(t *testing.T) {
	h := newTestServer(&memStore{}, &fakeHarvests{}, nil)
	_, payload := doRequest(t, h, "GET", "/api/v1/harvest/schedule", "")
	assert.Equal(t, false, payload["enabled"])

	h = newTestServer(&memStore{}, &fakeHarvests{}, fakeSchedule{"schedule": "0 3 * * *"})
	_, payload = doRequest(t, h, "GET", "/api/v1/harvest/schedule", "")
	assert.Equal(t, true, payload["enabled"])
	assert.Equal(t, "0 3 * * *", payload["schedule"])
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(log.New(io.Discard, "", 0))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec, payload := doRequest(t, h, "GET", "/", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "boom", payload["details"])
}
