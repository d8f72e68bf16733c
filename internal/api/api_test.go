package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MJE43/montecarlo-pi/internal/estimator"
	"github.com/MJE43/montecarlo-pi/internal/store"
	"github.com/MJE43/montecarlo-pi/internal/sweep"
)

// mockDB is an in-memory store.DB for testing
type mockDB struct {
	mu      sync.Mutex
	runs    map[string]*store.Run
	sweeps  map[string]*store.Sweep
	pingErr error
}

func newMockDB() *mockDB {
	return &mockDB{
		runs:   make(map[string]*store.Run),
		sweeps: make(map[string]*store.Sweep),
	}
}

func (m *mockDB) Close() error                      { return nil }
func (m *mockDB) Ping(ctx context.Context) error    { return m.pingErr }
func (m *mockDB) Migrate(ctx context.Context) error { return nil }

func (m *mockDB) SaveRun(ctx context.Context, run *store.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	run.CreatedAt = time.Now()
	saved := *run
	m.runs[run.ID] = &saved
	return nil
}

func (m *mockDB) GetRun(ctx context.Context, id string) (*store.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return run, nil
}

func (m *mockDB) ListRuns(ctx context.Context, query store.RunsQuery) (*store.RunsList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := &store.RunsList{Runs: []store.Run{}, Page: query.Page, PerPage: query.PerPage}
	for _, run := range m.runs {
		if query.Method != "" && run.Method != query.Method {
			continue
		}
		list.Runs = append(list.Runs, *run)
	}
	list.TotalCount = len(list.Runs)
	list.TotalPages = 1
	return list, nil
}

func (m *mockDB) SaveSweep(ctx context.Context, sw *store.Sweep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sw.ID == "" {
		sw.ID = uuid.New().String()
	}
	saved := *sw
	m.sweeps[sw.ID] = &saved
	return nil
}

func (m *mockDB) GetSweep(ctx context.Context, id string) (*store.Sweep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sw, ok := m.sweeps[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return sw, nil
}

func newTestServer(db store.DB) *Server {
	return NewServer(db, sweep.NewScanner(2, 0), zap.NewNop(), Options{MaxTries: 1 << 20})
}

func do(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.Routes().ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) EngineError {
	t.Helper()
	var engineErr EngineError
	if err := json.NewDecoder(w.Body).Decode(&engineErr); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	if got := w.Header().Get("X-Error-Type"); got != engineErr.Type {
		t.Errorf("Expected X-Error-Type %q, got %q", engineErr.Type, got)
	}
	return engineErr
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(newMockDB())

	w := do(t, server, "GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response HealthCheckResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Status != HealthStatusHealthy {
		t.Errorf("Expected healthy, got %s (%+v)", response.Status, response.Checks)
	}
	for _, name := range []string{"estimators", "database", "scanner"} {
		if _, ok := response.Checks[name]; !ok {
			t.Errorf("Expected %s check", name)
		}
	}
	if response.EngineVersion != EngineVersion {
		t.Errorf("Expected engine version %s, got %s", EngineVersion, response.EngineVersion)
	}
}

func TestHealthDatabaseStates(t *testing.T) {
	w := do(t, newTestServer(nil), "GET", "/health", nil)
	var response HealthCheckResponse
	json.NewDecoder(w.Body).Decode(&response)
	if w.Code != http.StatusOK || response.Status != HealthStatusDegraded {
		t.Errorf("Expected degraded 200 without a database, got %d %s", w.Code, response.Status)
	}

	db := newMockDB()
	db.pingErr = errors.New("disk gone")
	w = do(t, newTestServer(db), "GET", "/health", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 when ping fails, got %d", w.Code)
	}

	w = do(t, newTestServer(db), "GET", "/health/ready", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected not ready when ping fails, got %d", w.Code)
	}

	w = do(t, newTestServer(db), "GET", "/health/live", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected live, got %d", w.Code)
	}
}

// versionedDB reports a migration version like the sqlite store does.
type versionedDB struct {
	*mockDB
	version    int64
	versionErr error
}

func (v *versionedDB) SchemaVersion(ctx context.Context) (int64, error) {
	return v.version, v.versionErr
}

func TestHealthReportsSchemaVersion(t *testing.T) {
	tests := []struct {
		name    string
		db      store.DB
		status  HealthStatus
		message string
	}{
		{"unversioned store", newMockDB(), HealthStatusHealthy, "run history reachable"},
		{"versioned store", &versionedDB{mockDB: newMockDB(), version: 3}, HealthStatusHealthy, "run history reachable (schema v3)"},
		{"version query fails", &versionedDB{mockDB: newMockDB(), versionErr: errors.New("no goose table")},
			HealthStatusDegraded, "run history reachable, schema version unknown: no goose table"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, newTestServer(tt.db), "GET", "/health", nil)
			var response HealthCheckResponse
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			check := response.Checks["database"]
			if check.Status != tt.status || check.Message != tt.message {
				t.Errorf("Expected %s %q, got %s %q", tt.status, tt.message, check.Status, check.Message)
			}
		})
	}
}

func TestHealthSQLiteSchemaVersion(t *testing.T) {
	ctx := context.Background()
	db, err := store.NewSQLiteDB(ctx, ":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	w := do(t, newTestServer(db), "GET", "/health", nil)
	var response HealthCheckResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if msg := response.Checks["database"].Message; msg != "run history reachable (schema v2)" {
		t.Errorf("Unexpected database check message %q", msg)
	}
}

func TestEstimatorsEndpoint(t *testing.T) {
	w := do(t, newTestServer(nil), "GET", "/api/v1/estimators", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if w.Header().Get("X-Engine-Version") == "" {
		t.Error("Expected X-Engine-Version header")
	}

	var response EstimatorsResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(response.Estimators) != 2 {
		t.Fatalf("Expected 2 estimators, got %d", len(response.Estimators))
	}
	if response.Estimators[0].ID != "buffon" || response.Estimators[1].ID != "dart" {
		t.Errorf("Unexpected estimator order: %+v", response.Estimators)
	}
	if len(response.Generators) == 0 {
		t.Error("Expected generators in response")
	}
}

func TestEstimateEndpoint(t *testing.T) {
	db := newMockDB()
	server := newTestServer(db)

	w := do(t, server, "POST", "/api/v1/estimate", EstimateRequest{
		Method: "dart",
		Config: estimator.Config{Tries: 10000, Seed: 1000},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var response EstimateResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if math.Abs(response.Result.Estimate-math.Pi) > 0.1 {
		t.Errorf("Expected estimate near pi, got %f", response.Result.Estimate)
	}
	if response.Config.Width != 1 || response.Config.Generator == "" {
		t.Errorf("Expected defaults to be filled in, got %+v", response.Config)
	}
	if response.Mode != estimator.ModeBatch {
		t.Errorf("Expected batch mode, got %s", response.Mode)
	}

	run, err := db.GetRun(context.Background(), response.RunID)
	if err != nil {
		t.Fatalf("Expected run %q to be saved: %v", response.RunID, err)
	}
	if run.Hits != response.Result.Hits || run.Tries != 10000 {
		t.Errorf("Saved run does not match response: %+v", run)
	}
}

func TestEstimateParallel(t *testing.T) {
	server := newTestServer(newMockDB())
	cfg := estimator.Config{NeedleLength: 1, StripeWidth: 2, Tries: 200000, Seed: 7}

	w := do(t, server, "POST", "/api/v1/estimate", EstimateRequest{Method: "buffon", Config: cfg, Workers: 4})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var response EstimateResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	want, err := sweep.NewScanner(1, 0).Estimate(context.Background(), sweep.Request{Method: "buffon", Config: response.Config})
	if err != nil {
		t.Fatalf("Scanner estimate failed: %v", err)
	}
	if response.Result.Hits != want.Hits {
		t.Errorf("Expected %d hits regardless of workers, got %d", want.Hits, response.Result.Hits)
	}
	if response.Workers != 4 {
		t.Errorf("Expected 4 workers, got %d", response.Workers)
	}
}

func TestEstimateDegenerate(t *testing.T) {
	db := newMockDB()
	w := do(t, newTestServer(db), "POST", "/api/v1/estimate", EstimateRequest{
		Method: "buffon",
		Config: estimator.Config{Tries: 0, Seed: 1},
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected status 422, got %d", w.Code)
	}

	engineErr := decodeError(t, w)
	if engineErr.Type != ErrTypeDegenerate {
		t.Errorf("Expected %s, got %s", ErrTypeDegenerate, engineErr.Type)
	}
	runID, _ := engineErr.Context["run_id"].(string)
	run, err := db.GetRun(context.Background(), runID)
	if err != nil {
		t.Fatalf("Expected degenerate run to be saved: %v", err)
	}
	if !run.Degenerate || run.Estimate != nil {
		t.Errorf("Expected degenerate run without estimate, got %+v", run)
	}
}

func TestEstimateErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    any
		status  int
		errType string
	}{
		{"bad json", `{"method":`, http.StatusBadRequest, ErrTypeValidation},
		{"missing method", EstimateRequest{}, http.StatusBadRequest, ErrTypeValidation},
		{"unknown method", EstimateRequest{Method: "monte"}, http.StatusNotFound, ErrTypeEstimatorNotFound},
		{"too many tries", EstimateRequest{Method: "dart", Config: estimator.Config{Tries: 1<<20 + 1}}, http.StatusBadRequest, ErrTypeValidation},
		{"negative tries", EstimateRequest{Method: "dart", Config: estimator.Config{Tries: -1}}, http.StatusBadRequest, ErrTypeValidation},
		{"long needle", EstimateRequest{Method: "buffon", Config: estimator.Config{NeedleLength: 3, StripeWidth: 2, Tries: 10}}, http.StatusBadRequest, ErrTypeInvalidGeometry},
		{"bad generator", EstimateRequest{Method: "dart", Config: estimator.Config{Tries: 10, Generator: "xorshift"}}, http.StatusBadRequest, ErrTypeValidation},
		{"bad mode", EstimateRequest{Method: "dart", Config: estimator.Config{Tries: 10}, Mode: "turbo"}, http.StatusBadRequest, ErrTypeValidation},
		{"bad workers", EstimateRequest{Method: "dart", Config: estimator.Config{Tries: 10}, Workers: -2}, http.StatusBadRequest, ErrTypeValidation},
	}

	server := newTestServer(newMockDB())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, server, "POST", "/api/v1/estimate", tt.body)
			if w.Code != tt.status {
				t.Fatalf("Expected status %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			if engineErr := decodeError(t, w); engineErr.Type != tt.errType {
				t.Errorf("Expected %s, got %s (%s)", tt.errType, engineErr.Type, engineErr.Message)
			}
		})
	}
}

func TestSweepEndpoint(t *testing.T) {
	db := newMockDB()
	w := do(t, newTestServer(db), "POST", "/api/v1/sweep", sweep.SweepRequest{
		Method: "buffon",
		MinExp: 1,
		MaxExp: 8,
		Series: sweep.StaggeredSeries(2, true),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var response SweepResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Result.Summary.Points != 16 {
		t.Errorf("Expected 16 points, got %d", response.Result.Summary.Points)
	}
	if len(response.Result.Series) != 2 || response.Result.Series[1].NeedleLength != 1.0/3 {
		t.Errorf("Unexpected series: %+v", response.Result.Series)
	}

	sw, err := db.GetSweep(context.Background(), response.SweepID)
	if err != nil {
		t.Fatalf("Expected sweep to be saved: %v", err)
	}
	if len(sw.Points) != 16 {
		t.Errorf("Expected 16 saved points, got %d", len(sw.Points))
	}

	w = do(t, newTestServer(db), "GET", "/api/v1/sweeps/"+response.SweepID, nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected saved sweep to be served, got %d", w.Code)
	}
}

func TestSweepValidation(t *testing.T) {
	tests := []struct {
		name string
		req  sweep.SweepRequest
	}{
		{"exponent too large", sweep.SweepRequest{Method: "dart", MaxExp: 31}},
		{"inverted range", sweep.SweepRequest{Method: "dart", MinExp: 5, MaxExp: 2}},
		{"over tries limit", sweep.SweepRequest{Method: "dart", MaxExp: 21}},
		{"too many series", sweep.SweepRequest{Method: "dart", MaxExp: 2, Series: sweep.StaggeredSeries(65, false)}},
	}

	server := newTestServer(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, server, "POST", "/api/v1/sweep", tt.req)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("Expected status 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestValidationReportsJSONField(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		body  any
		field string
	}{
		{"series needle length", "/api/v1/sweep", sweep.SweepRequest{
			Method: "buffon",
			MaxExp: 2,
			Series: []sweep.Series{{Seed: 0}, {Seed: 1, NeedleLength: -0.5}},
		}, "series[1].needle_length"},
		{"workers", "/api/v1/estimate", EstimateRequest{Method: "dart", Workers: 2000}, "workers"},
		{"seeds", "/api/v1/table", TableRequest{Method: "dart"}, "seeds"},
		{"estimate stripes", "/api/v1/estimate", EstimateRequest{
			Method: "buffon",
			Config: estimator.Config{Tries: 10, Stripes: estimator.MaxStripes + 1},
		}, "config.stripes"},
		{"sweep stripes", "/api/v1/sweep", sweep.SweepRequest{
			Method: "buffon",
			MaxExp: 2,
			Config: estimator.Config{Stripes: 5000},
		}, "config.stripes"},
	}

	server := newTestServer(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, server, "POST", tt.path, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("Expected status 400, got %d: %s", w.Code, w.Body.String())
			}
			engineErr := decodeError(t, w)
			if engineErr.Context["field"] != tt.field {
				t.Errorf("Expected field %q, got %v", tt.field, engineErr.Context["field"])
			}
		})
	}
}

func TestTableEndpoint(t *testing.T) {
	w := do(t, newTestServer(nil), "POST", "/api/v1/table", TableRequest{
		Method: "dart",
		Config: estimator.Config{Tries: 100},
		Seeds:  5,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var response TableResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(response.Rows) != 5 {
		t.Fatalf("Expected 5 rows, got %d", len(response.Rows))
	}
	for i, row := range response.Rows {
		if row.Seed != int64(i) || row.Result.Tries != 100 {
			t.Errorf("row %d: unexpected %+v", i, row)
		}
	}

	w = do(t, newTestServer(nil), "POST", "/api/v1/table", TableRequest{Method: "dart", Seeds: 10001})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for too many seeds, got %d", w.Code)
	}
}

func TestRunsEndpoints(t *testing.T) {
	db := newMockDB()
	server := newTestServer(db)

	for _, method := range []string{"dart", "buffon", "dart"} {
		w := do(t, server, "POST", "/api/v1/estimate", EstimateRequest{
			Method: method,
			Config: estimator.Config{Tries: 1000, Seed: 3},
		})
		if w.Code != http.StatusOK {
			t.Fatalf("Estimate failed: %d %s", w.Code, w.Body.String())
		}
	}

	w := do(t, server, "GET", "/api/v1/runs?method=dart&page=1&per_page=10", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var list RunsResponse
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if list.RunsList == nil || list.TotalCount != 2 {
		t.Fatalf("Expected 2 dart runs, got %+v", list.RunsList)
	}

	id := list.Runs[0].ID
	w = do(t, server, "GET", "/api/v1/runs/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200 for run %s, got %d", id, w.Code)
	}
	var run store.Run
	if err := json.NewDecoder(w.Body).Decode(&run); err != nil {
		t.Fatalf("Failed to decode run: %v", err)
	}
	if run.ID != id || run.Method != "dart" {
		t.Errorf("Unexpected run %+v", run)
	}

	w = do(t, server, "GET", "/api/v1/runs/"+uuid.New().String(), nil)
	if w.Code != http.StatusNotFound || decodeError(t, w).Type != ErrTypeNotFound {
		t.Errorf("Expected not_found for unknown run, got %d", w.Code)
	}

	w = do(t, server, "GET", "/api/v1/runs/not-a-uuid", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed id, got %d", w.Code)
	}

	w = do(t, server, "GET", "/api/v1/runs?per_page=0", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for per_page=0, got %d", w.Code)
	}
}

func TestRunsWithoutDatabase(t *testing.T) {
	w := do(t, newTestServer(nil), "GET", "/api/v1/runs", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 without run history, got %d", w.Code)
	}
}

func TestBoardEndpoint(t *testing.T) {
	server := newTestServer(nil)

	for _, id := range []string{"buffon", "dart"} {
		w := do(t, server, "GET", "/api/v1/estimators/"+id+"/board.png?tries=50&seed=9", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected status 200, got %d: %s", id, w.Code, w.Body.String())
		}
		if ct := w.Header().Get("Content-Type"); ct != "image/png" {
			t.Errorf("%s: expected image/png, got %s", id, ct)
		}
		if !bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")) {
			t.Errorf("%s: body is not a PNG", id)
		}
	}

	tests := []struct {
		path   string
		status int
	}{
		{"/api/v1/estimators/monte/board.png", http.StatusNotFound},
		{"/api/v1/estimators/dart/board.png?tries=20001", http.StatusBadRequest},
		{"/api/v1/estimators/dart/board.png?seed=abc", http.StatusBadRequest},
		{"/api/v1/estimators/buffon/board.png?needle_length=5", http.StatusBadRequest},
		{"/api/v1/estimators/dart/board.png?generator=lcg", http.StatusBadRequest},
		{"/api/v1/estimators/buffon/board.png?tries=1&stripes=2000000", http.StatusBadRequest},
		{"/api/v1/estimators/buffon/board.png?tries=1&stripes=0", http.StatusBadRequest},
		{"/api/v1/estimators/buffon/board.png?tries=1&stripes=1000", http.StatusOK},
	}
	for _, tt := range tests {
		if w := do(t, server, "GET", tt.path, nil); w.Code != tt.status {
			t.Errorf("%s: expected status %d, got %d", tt.path, tt.status, w.Code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(nil)
	do(t, server, "GET", "/api/v1/estimators", nil)

	w := do(t, server, "GET", "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "pi_http_requests_total") {
		t.Error("Expected request counter in metrics output")
	}
	if !strings.Contains(body, `route="/api/v1/estimators"`) {
		t.Error("Expected route pattern label in metrics output")
	}
}

func TestCORSPreflight(t *testing.T) {
	w := do(t, newTestServer(nil), "OPTIONS", "/api/v1/estimate", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected CORS header")
	}
}

func TestRecoveryHandler(t *testing.T) {
	eh := NewErrorHandler(zap.NewNop())
	h := eh.RecoveryHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", w.Code)
	}
	if engineErr := decodeError(t, w); engineErr.Type != ErrTypeInternal {
		t.Errorf("Expected %s, got %s", ErrTypeInternal, engineErr.Type)
	}
}

func TestGetErrorCategory(t *testing.T) {
	tests := []struct {
		errType  string
		category ErrorCategory
	}{
		{ErrTypeValidation, CategoryValidation},
		{ErrTypeInvalidGeometry, CategoryValidation},
		{ErrTypeDegenerate, CategoryEstimation},
		{ErrTypeEstimatorNotFound, CategoryEstimation},
		{ErrTypeNotFound, CategoryLookup},
		{ErrTypeTimeout, CategoryTimeout},
		{ErrTypeInternal, CategorySystem},
	}
	for _, tt := range tests {
		if got := GetErrorCategory(tt.errType); got != tt.category {
			t.Errorf("GetErrorCategory(%s) = %s, want %s", tt.errType, got, tt.category)
		}
	}
}
