package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rflihmmm/pln-monitor-sub001/pkg/aggregate"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/cache"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/engine"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/logging"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/persistence"
)

const testSecret = "test-secret"

type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func newServer(t *testing.T, secret string) (http.Handler, *persistence.MemoryStore) {
	t.Helper()
	logger := logging.Discard()
	store := persistence.NewMemoryStore(persistence.SampleFixture())
	c := cache.New(cache.NewMemoryBackend(time.Now), cache.Options{}, logger)
	e := engine.New(store, store, c, engine.Options{
		Corrections: aggregate.Corrections{{Token: "MAKASSAR", LineKV: 20, PowerFactor: 0.85}},
	}, logger)
	auth := Authenticate([]byte(secret), "X-Organization-Id", logger)
	return NewRouter(NewAPI(e, logger), auth, 10*time.Second, logger), store
}

func do(t *testing.T, h http.Handler, path string, header http.Header) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var env envelope
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	}
	return rr.Code, env
}

func keypointIDs(t *testing.T, raw json.RawMessage) []int64 {
	t.Helper()
	var items []engine.Keypoint
	require.NoError(t, json.Unmarshal(raw, &items))
	out := make([]int64, 0, len(items))
	for _, kp := range items {
		out = append(out, kp.ID)
	}
	return out
}

func orgHeader(id string) http.Header {
	return http.Header{"X-Organization-Id": []string{id}}
}

func TestHealthEndpoint(t *testing.T) {
	h, _ := newServer(t, "")
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestListKeypoints(t *testing.T) {
	h, _ := newServer(t, "")

	code, env := do(t, h, "/api/v1/keypoints", nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
	assert.Equal(t, []int64{7, 100, 200}, keypointIDs(t, env.Data))

	code, env = do(t, h, "/api/v1/keypoints?type=gi&status=active", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []int64{100}, keypointIDs(t, env.Data))

	code, env = do(t, h, "/api/v1/keypoints?ids=200,%207", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []int64{7, 200}, keypointIDs(t, env.Data))
}

func TestOrganizationHeaderScopes(t *testing.T) {
	h, _ := newServer(t, "")

	code, env := do(t, h, "/api/v1/keypoints", orgHeader("6"))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []int64{7, 200}, keypointIDs(t, env.Data))

	// Unknown organizations see nothing, successfully.
	code, env = do(t, h, "/api/v1/keypoints", orgHeader("404"))
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
	assert.Empty(t, keypointIDs(t, env.Data))
}

func TestBadRequests(t *testing.T) {
	h, _ := newServer(t, "")
	for _, tc := range []struct {
		path   string
		header http.Header
	}{
		{path: "/api/v1/keypoints?type=TRAFO"},
		{path: "/api/v1/keypoints?status=on"},
		{path: "/api/v1/keypoints?ids=1,x"},
		{path: "/api/v1/keypoints/abc"},
		{path: "/api/v1/regions/abc"},
		{path: "/api/v1/keypoints", header: orgHeader("three")},
	} {
		code, env := do(t, h, tc.path, tc.header)
		assert.Equal(t, http.StatusBadRequest, code, tc.path)
		assert.False(t, env.Success, tc.path)
	}
}

func TestGetKeypoint(t *testing.T) {
	h, _ := newServer(t, "")

	code, env := do(t, h, "/api/v1/keypoints/5", nil)
	require.Equal(t, http.StatusOK, code)
	var d engine.KeypointDetail
	require.NoError(t, json.Unmarshal(env.Data, &d))
	assert.Equal(t, "15.00 A", d.Data.LoadIS)
	assert.Equal(t, "300.00 MW", d.Data.LoadMW)
	assert.Nil(t, d.Coordinate)

	code, env = do(t, h, "/api/v1/keypoints/999", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, env.Success)

	code, _ = do(t, h, "/api/v1/keypoints/5", orgHeader("6"))
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSummaryAndFeeders(t *testing.T) {
	h, _ := newServer(t, "")

	code, env := do(t, h, "/api/v1/keypoints/summary", nil)
	require.Equal(t, http.StatusOK, code)
	var s engine.Summary
	require.NoError(t, json.Unmarshal(env.Data, &s))
	assert.Equal(t, 4, s.Total)

	code, env = do(t, h, "/api/v1/feeders", orgHeader("3"))
	require.Equal(t, http.StatusOK, code)
	var feeders []engine.Feeder
	require.NoError(t, json.Unmarshal(env.Data, &feeders))
	require.Len(t, feeders, 2)
	assert.Equal(t, "closed", string(feeders[0].Breaker))
}

func TestRegionsShape(t *testing.T) {
	h, _ := newServer(t, "")

	code, env := do(t, h, "/api/v1/regions", nil)
	require.Equal(t, http.StatusOK, code)
	var raw struct {
		DCC []struct {
			Name string            `json:"name"`
			UP3  []json.RawMessage `json:"up3"`
		} `json:"dcc"`
		GrandTotal []map[string]string `json:"grandTotal"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &raw))
	require.Len(t, raw.DCC, 2)
	assert.Len(t, raw.DCC[0].UP3, 1)
	assert.Equal(t, []map[string]string{{"power": "8.88 MW", "current": "70.00 A"}}, raw.GrandTotal)

	code, env = do(t, h, "/api/v1/regions/4", nil)
	require.Equal(t, http.StatusOK, code)
	var top engine.TopRegion
	require.NoError(t, json.Unmarshal(env.Data, &top))
	assert.Equal(t, "DCC PALU", top.Name)

	code, _ = do(t, h, "/api/v1/regions/77", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = do(t, h, "/api/v1/system/total", orgHeader("4"))
	require.Equal(t, http.StatusOK, code)
	var total engine.Total
	require.NoError(t, json.Unmarshal(env.Data, &total))
	assert.Equal(t, engine.Total{Power: "8.00 MW", Current: "40.00 A"}, total)
}

func TestStoreFailureIsBadGateway(t *testing.T) {
	h, store := newServer(t, "")
	store.Fail(errors.New("pq: password authentication failed"))

	code, env := do(t, h, "/api/v1/regions", nil)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.False(t, env.Success)
	assert.Equal(t, "telemetry data is temporarily unavailable", env.Error)
}

func sign(t *testing.T, secret string, claims Claims) http.Header {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return http.Header{"Authorization": []string{"Bearer " + tok}}
}

func TestJWTAuthentication(t *testing.T) {
	h, _ := newServer(t, testSecret)

	code, env := do(t, h, "/api/v1/keypoints", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, env.Success)

	// The gateway header is ignored once tokens are required.
	code, _ = do(t, h, "/api/v1/keypoints", orgHeader("3"))
	assert.Equal(t, http.StatusUnauthorized, code)

	org := int64(3)
	code, env = do(t, h, "/api/v1/keypoints", sign(t, testSecret, Claims{OrganizationID: &org}))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []int64{100}, keypointIDs(t, env.Data))

	code, env = do(t, h, "/api/v1/keypoints", sign(t, testSecret, Claims{}))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []int64{7, 100, 200}, keypointIDs(t, env.Data))

	code, _ = do(t, h, "/api/v1/keypoints", sign(t, "other-secret", Claims{OrganizationID: &org}))
	assert.Equal(t, http.StatusUnauthorized, code)

	expired := Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))}}
	code, _ = do(t, h, "/api/v1/keypoints", sign(t, testSecret, expired))
	assert.Equal(t, http.StatusUnauthorized, code)

	// Health stays open.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newServer(t, "")
	code, _ := do(t, h, "/api/v1/system/total", nil)
	require.Equal(t, http.StatusOK, code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "pln_monitor_cache_lookups_total")
}
