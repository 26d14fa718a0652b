package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safenet/safenet/internal/alert"
	"github.com/safenet/safenet/internal/api"
	"github.com/safenet/safenet/internal/api/models"
	"github.com/safenet/safenet/internal/auth"
	"github.com/safenet/safenet/internal/incident"
	"github.com/safenet/safenet/internal/monitor"
	"github.com/safenet/safenet/internal/risk"
	"github.com/safenet/safenet/internal/route"
	"github.com/safenet/safenet/internal/spatial"
	"github.com/safenet/safenet/internal/zone"
)

// capturingDispatcher records alerts instead of delivering them.
type capturingDispatcher struct {
	mu     sync.Mutex
	alerts []alert.Alert
}

func (d *capturingDispatcher) Dispatch(_ context.Context, a alert.Alert) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alerts = append(d.alerts, a)
	return nil
}

func (d *capturingDispatcher) Name() string { return "capture" }

func (d *capturingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.alerts)
}

func (d *capturingDispatcher) snapshot() []alert.Alert {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]alert.Alert{}, d.alerts...)
}

func testJWTService() *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-secret-key-for-testing-only",
		Issuer:     "https://api.safenet.app",
		Audience:   "safenet-api",
	})
}

func generateTestToken(t *testing.T) string {
	t.Helper()
	token, _, err := testJWTService().GenerateAccessToken("usr_testsubject")
	require.NoError(t, err)
	return token
}

type testEnv struct {
	router     http.Handler
	dispatcher *capturingDispatcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.Nop()

	zoneSvc := zone.NewService(zone.ServiceConfig{
		Repository: zone.NewInMemoryRepository(),
		Index:      spatial.NewIndex(spatial.DefaultCellSizeMeters),
		Logger:     logger,
	})

	incidentSvc := incident.NewService(incident.ServiceConfig{
		Repository: incident.NewInMemoryRepository(),
		Logger:     logger,
	})

	riskModel, err := risk.NewModel(risk.DefaultConfig(), logger)
	require.NoError(t, err)
	incidentSvc.OnReported(riskModel.Observe)

	routeSvc := route.NewService(route.ServiceConfig{
		Risks:  riskModel,
		Logger: logger,
	})

	dispatcher := &capturingDispatcher{}
	alertSvc := alert.NewService(alert.ServiceConfig{
		Dispatchers: []alert.Dispatcher{dispatcher},
		Logger:      logger,
	})

	mon := monitor.New(monitor.DefaultConfig(), zoneSvc, alertSvc, logger)
	t.Cleanup(mon.Close)
	zoneSvc.OnDelete(mon.OnZoneDeleted)

	router := api.NewRouter(api.RouterConfig{
		Version:         "test",
		BuildTime:       "now",
		Logger:          logger,
		JWTService:      testJWTService(),
		ZoneService:     zoneSvc,
		IncidentService: incidentSvc,
		AlertService:    alertSvc,
		RouteService:    routeSvc,
		RiskModel:       riskModel,
		Monitor:         mon,
	})

	return &testEnv{router: router, dispatcher: dispatcher}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(out))
}

func TestHealthEndpointIsPublic(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/ops/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var health models.Health
	decodeBody(t, rec, &health)
	assert.Equal(t, models.HealthStatusOK, health.Status)
}

func TestProtectedEndpointsRequireAuth(t *testing.T) {
	env := newTestEnv(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/v1/zones"},
		{http.MethodGet, "/v1/map/markers?lat=52.37&lng=4.89"},
		{http.MethodPost, "/v1/routes:score"},
		{http.MethodGet, "/v1/risk/score?lat=52.37&lng=4.89"},
		{http.MethodPost, "/v1/emergency/alert"},
	}
	for _, p := range paths {
		rec := env.do(t, p.method, p.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", p.method, p.path)
	}
}

func TestZoneCRUD(t *testing.T) {
	env := newTestEnv(t)
	token := generateTestToken(t)

	center := models.Point{Lat: 52.37, Lng: 4.89}
	rec := env.do(t, http.MethodPost, "/v1/zones", token, models.ZoneInput{
		Name:           "Station North",
		Classification: "danger",
		Geometry:       models.Geometry{Type: "circle", Center: &center, RadiusMeters: 150},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created models.Zone
	decodeBody(t, rec, &created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "usr_testsubject", created.Owner)
	assert.Equal(t, "/v1/zones/"+created.ID, rec.Header().Get("Location"))

	rec = env.do(t, http.MethodGet, "/v1/zones/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/zones?lat=52.37&lng=4.89&radius=1000", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listed models.ZoneList
	decodeBody(t, rec, &listed)
	require.Len(t, listed.Zones, 1)
	assert.Equal(t, created.ID, listed.Zones[0].ID)

	newName := "Station North Side"
	rec = env.do(t, http.MethodPatch, "/v1/zones/"+created.ID, token, models.ZonePatch{Name: &newName})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.Zone
	decodeBody(t, rec, &updated)
	assert.Equal(t, newName, updated.Name)

	rec = env.do(t, http.MethodDelete, "/v1/zones/"+created.ID, token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/zones/"+created.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateZoneValidation(t *testing.T) {
	env := newTestEnv(t)
	token := generateTestToken(t)

	rec := env.do(t, http.MethodPost, "/v1/zones", token, models.ZoneInput{
		Name:           "",
		Classification: "dangerous",
		Geometry:       models.Geometry{Type: "circle"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIncidentReportShowsUpOnMap(t *testing.T) {
	env := newTestEnv(t)
	token := generateTestToken(t)

	rec := env.do(t, http.MethodPost, "/v1/map/incidents", token, models.IncidentInput{
		Type:     "theft",
		Severity: "high",
		Location: models.Point{Lat: 52.37, Lng: 4.89},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var reported models.Incident
	decodeBody(t, rec, &reported)
	assert.Equal(t, "active", reported.Status)

	rec = env.do(t, http.MethodGet, "/v1/map/markers?lat=52.37&lng=4.89&radius=1000", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var markers models.MarkerList
	decodeBody(t, rec, &markers)
	require.Len(t, markers.Markers, 1)
	assert.Equal(t, "incident", markers.Markers[0].Kind)
	assert.Equal(t, reported.ID, markers.Markers[0].ID)
}

func TestResolvedIncidentsLeaveTheMap(t *testing.T) {
	env := newTestEnv(t)
	token := generateTestToken(t)

	rec := env.do(t, http.MethodPost, "/v1/map/incidents", token, models.IncidentInput{
		Type:     "harassment",
		Severity: "medium",
		Location: models.Point{Lat: 52.37, Lng: 4.89},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var reported models.Incident
	decodeBody(t, rec, &reported)

	rec = env.do(t, http.MethodPatch, "/v1/incidents/"+reported.ID+"/status", token, models.IncidentStatusInput{Status: "resolved"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/map/markers?lat=52.37&lng=4.89&radius=1000", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var markers models.MarkerList
	decodeBody(t, rec, &markers)
	assert.Empty(t, markers.Markers)
}

func TestIncidentStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	token := generateTestToken(t)

	rec := env.do(t, http.MethodPost, "/v1/map/incidents", token, models.IncidentInput{
		Type:     "assault",
		Severity: "high",
		Location: models.Point{Lat: 52.37, Lng: 4.89},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var reported models.Incident
	decodeBody(t, rec, &reported)

	rec = env.do(t, http.MethodPatch, "/v1/incidents/"+reported.ID+"/status", token, models.IncidentStatusInput{Status: "resolved"})
	require.Equal(t, http.StatusOK, rec.Code)

	// Resolved is terminal.
	rec = env.do(t, http.MethodPatch, "/v1/incidents/"+reported.ID+"/status", token, models.IncidentStatusInput{Status: "verified"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRiskScoreReflectsReports(t *testing.T) {
	env := newTestEnv(t)
	token := generateTestToken(t)

	rec := env.do(t, http.MethodGet, "/v1/risk/score?lat=52.37&lng=4.89", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var before models.RiskScore
	decodeBody(t, rec, &before)
	assert.Equal(t, risk.MaxScore, before.Score)
	assert.Zero(t, before.Samples)

	rec = env.do(t, http.MethodPost, "/v1/map/incidents", token, models.IncidentInput{
		Type:     "assault",
		Severity: "high",
		Location: models.Point{Lat: 52.37, Lng: 4.89},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/risk/score?lat=52.37&lng=4.89", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var after models.RiskScore
	decodeBody(t, rec, &after)
	assert.Less(t, after.Score, before.Score)
	assert.Equal(t, 1, after.Samples)
}

func TestRouteScore(t *testing.T) {
	env := newTestEnv(t)
	token := generateTestToken(t)

	rec := env.do(t, http.MethodPost, "/v1/routes:score", token, models.RouteScoreRequest{
		Path: []models.Point{
			{Lat: 52.370, Lng: 4.890},
			{Lat: 52.380, Lng: 4.890},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var score models.RouteScore
	decodeBody(t, rec, &score)
	assert.Greater(t, score.LengthMeters, 1000.0)
	assert.Greater(t, score.Samples, 0)
	assert.True(t, score.LowConfidence)

	rec = env.do(t, http.MethodPost, "/v1/routes:score", token, models.RouteScoreRequest{
		Path: []models.Point{{Lat: 52.37, Lng: 4.89}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// yesterdayAt pins a time well inside the morning day part so route samples
// and incident reports land in the same risk bucket regardless of when the
// test runs.
func yesterdayAt(hour, min int) time.Time {
	y := time.Now().UTC().AddDate(0, 0, -1)
	return time.Date(y.Year(), y.Month(), y.Day(), hour, min, 0, 0, time.UTC)
}

func TestRouteScoreRaisesRouteRiskAlert(t *testing.T) {
	env := newTestEnv(t)
	token := generateTestToken(t)

	// Fresh high-severity reports at the start of the route drag its
	// aggregate below the danger threshold.
	start := models.Point{Lat: 52.3700, Lng: 4.8900}
	occurred := models.Timestamp(yesterdayAt(9, 0))
	for i := 0; i < 3; i++ {
		rec := env.do(t, http.MethodPost, "/v1/map/incidents", token, models.IncidentInput{
			Type:       "assault",
			Severity:   "high",
			Location:   start,
			OccurredAt: &occurred,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	departure := models.Timestamp(yesterdayAt(9, 5))
	rec := env.do(t, http.MethodPost, "/v1/routes:score", token, models.RouteScoreRequest{
		Path: []models.Point{
			start,
			{Lat: 52.3718, Lng: 4.8900},
		},
		DepartureTime: &departure,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var score models.RouteScore
	decodeBody(t, rec, &score)
	require.Less(t, score.Score, risk.DangerThreshold)

	alerts := env.dispatcher.snapshot()
	require.Len(t, alerts, 1)
	assert.Equal(t, alert.KindRouteRisk, alerts[0].Kind)
	assert.Equal(t, "usr_testsubject", alerts[0].SubjectID)
	assert.InDelta(t, score.Score, alerts[0].RouteScore, 1e-9)

	// A route through quiet streets raises nothing.
	rec = env.do(t, http.MethodPost, "/v1/routes:score", token, models.RouteScoreRequest{
		Path: []models.Point{
			{Lat: 53.200, Lng: 6.560},
			{Lat: 53.210, Lng: 6.560},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, env.dispatcher.snapshot(), 1)
}

func TestTrackingLifecycle(t *testing.T) {
	env := newTestEnv(t)
	token := generateTestToken(t)

	rec := env.do(t, http.MethodPost, "/v1/track/subj-1", token, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/track/subj-1", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/track/subj-1/fixes", token, models.FixInput{
		Location:       models.Point{Lat: 52.37, Lng: 4.89},
		AccuracyMeters: 10,
		Sequence:       1,
	})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = env.do(t, http.MethodDelete, "/v1/track/subj-1", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodDelete, "/v1/track/subj-1", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/track/subj-2/fixes", token, models.FixInput{
		Location: models.Point{Lat: 52.37, Lng: 4.89},
		Sequence: 1,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEmergencyAlert(t *testing.T) {
	env := newTestEnv(t)
	token := generateTestToken(t)

	rec := env.do(t, http.MethodPost, "/v1/emergency/alert", token, models.EmergencyAlertInput{
		Location: models.Point{Lat: 52.37, Lng: 4.89},
		Message:  "need help",
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var raised models.EmergencyAlert
	decodeBody(t, rec, &raised)
	assert.True(t, raised.Success)
	assert.NotEmpty(t, raised.AlertID)
	require.Eventually(t, func() bool {
		return env.dispatcher.count() == 1
	}, time.Second, 10*time.Millisecond)
}
