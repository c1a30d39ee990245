package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/dayboard/internal/config"
	"github.com/jgoulah/dayboard/internal/database"
	"github.com/jgoulah/dayboard/pkg/models"
)

type fakeGeocoder struct{}

func (fakeGeocoder) Lookup(_ context.Context, zip string) (models.Location, error) {
	return models.Location{Lat: 42.33, Lon: -71.21}, nil
}

type recordingSender struct {
	mu   sync.Mutex
	keys []string
}

func (r *recordingSender) Publish(_ context.Context, s models.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, s.Key())
	return nil
}

// 10:00 EDT on 2024-03-28
func morning() time.Time { return time.Date(2024, 3, 28, 14, 0, 0, 0, time.UTC) }

type fixture struct {
	handler http.Handler
	db      *database.DB
}

func newFixture(t *testing.T, cfg *config.Config, pub *recordingSender) *fixture {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	opts := Options{
		Config:   cfg,
		Store:    db,
		Geocoder: fakeGeocoder{},
		Registry: prometheus.NewRegistry(),
		Log:      log,
		Now:      morning,
	}
	if pub != nil {
		opts.Publisher = pub
	}
	return &fixture{handler: New(opts).Handler(), db: db}
}

func (f *fixture) do(t *testing.T, method, path, user, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func marketUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	// 16:00 EDT on 2024-03-27
	barStart := time.Date(2024, 3, 27, 20, 0, 0, 0, time.UTC).UnixMilli()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"status":"OK","results":[{"t":%d,"o":1,"h":2,"l":0.5,"c":1.5,"v":100}]}`, barStart)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAPIRequiresUser(t *testing.T) {
	f := newFixture(t, &config.Config{}, nil)
	rec, body := f.do(t, http.MethodGet, "/api/dashboard", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "missing_user", body["code"])
	assert.NotEmpty(t, body["id"])
	assert.Contains(t, body["error"], UserHeader)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, &config.Config{}, nil)
	rec, body := f.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", body["status"])
}

func TestCheckInThenDashboard(t *testing.T) {
	f := newFixture(t, &config.Config{}, nil)

	rec, body := f.do(t, http.MethodPost, "/api/checkins", "u1", `{"mood_rating":7}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "morning", body["type"])
	assert.Equal(t, "2024-03-28", body["date"])

	rec, body = f.do(t, http.MethodGet, "/api/dashboard", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "2024-03-28", body["today"])
	daily, ok := body["daily"].([]any)
	require.True(t, ok)
	require.Len(t, daily, 1)
	assert.Equal(t, map[string]any{"date": "2024-03-28", "morning": 7.0}, daily[0])

	heatmaps := body["heatmaps"].(map[string]any)
	checkins := heatmaps["checkin"].([]any)
	require.Len(t, checkins, 28)
	assert.Equal(t, map[string]any{"date": "2024-03-28", "active": true}, checkins[27])

	// another user sees nothing
	_, body = f.do(t, http.MethodGet, "/api/dashboard", "u2", "")
	assert.Empty(t, body["daily"])
}

func TestCheckInRejectsBadInput(t *testing.T) {
	f := newFixture(t, &config.Config{}, nil)

	rec, body := f.do(t, http.MethodPost, "/api/checkins", "u1", `{"mood_rating":11}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", body["code"])

	rec, body = f.do(t, http.MethodPost, "/api/checkins", "u1", `{"mood_rating":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", body["code"])
}

func TestPersonal(t *testing.T) {
	f := newFixture(t, &config.Config{}, nil)

	rec, _ := f.do(t, http.MethodGet, "/api/personal/today", "u1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/personal", "u1", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/personal", "u1", `{"value":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := f.do(t, http.MethodGet, "/api/personal/today", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["value"])
	assert.Equal(t, "2024-03-28", body["date"])
}

func TestScripture(t *testing.T) {
	f := newFixture(t, &config.Config{}, nil)

	rec, body := f.do(t, http.MethodPost, "/api/scripture", "u1",
		`{"date":"2024-03-27","time":"21:30","selections":[{"book":"John","chapters":[3,1]}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "2024-03-27T21:30:00-04:00", body["read_at"])
	assert.NotEmpty(t, body["id"])

	rec, _ = f.do(t, http.MethodPost, "/api/scripture", "u1", `{"selections":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSettings(t *testing.T) {
	f := newFixture(t, &config.Config{}, nil)

	rec, _ := f.do(t, http.MethodGet, "/api/settings", "u1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = f.do(t, http.MethodPut, "/api/settings", "u1", `{"zip_code":"2462"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodPut, "/api/settings", "u1", `{"zip_code":"02462"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, body := f.do(t, http.MethodGet, "/api/settings", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "02462", body["zip_code"])
	assert.Equal(t, 42.33, body["lat"])
}

func TestTriggerMarket(t *testing.T) {
	upstream := marketUpstream(t)
	pub := &recordingSender{}
	f := newFixture(t, &config.Config{Market: config.MarketConfig{APIKey: "k", BaseURL: upstream.URL}}, pub)

	rec, body := f.do(t, http.MethodPost, "/jobs/market", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2.0, body["upserted"])
	assert.Len(t, body["rows"], 2)

	rows, err := f.db.ListMarketSnapshots(context.Background(), "2024-03-27")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "VOO", rows[0].Symbol)

	assert.ElementsMatch(t, []string{"2024-03-27/VOO", "2024-03-27/VXX"}, pub.keys)
	pending, err := f.db.ListUnpublished(context.Background(), models.SourceMarket)
	require.NoError(t, err)
	assert.Empty(t, pending)

	rec, _ = f.do(t, http.MethodGet, "/metrics", "", "")
	assert.Contains(t, rec.Body.String(), `dayboard_ingest_runs_total{source="market",status="succeeded"} 1`)
}

func TestTriggerMissingCredential(t *testing.T) {
	f := newFixture(t, &config.Config{}, nil)

	rec, body := f.do(t, http.MethodPost, "/jobs/biometric", "", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, body["error"], "missing credential")
}

func TestTriggerUnknownSource(t *testing.T) {
	f := newFixture(t, &config.Config{}, nil)

	rec, body := f.do(t, http.MethodPost, "/jobs/crypto", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "unknown_source", body["code"])
}
