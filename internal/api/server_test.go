package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nerrad567/gray-logic-roku/internal/bridges/roku"
	"github.com/nerrad567/gray-logic-roku/internal/device"
	"github.com/nerrad567/gray-logic-roku/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-roku/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-roku/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-roku/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-roku/migrations"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

// fakeRoku is a RokuController with canned entities and recorded commands.
type fakeRoku struct {
	mu       sync.Mutex
	entities map[string]roku.EntityState
	execErr  error
	executed chan roku.CommandMessage
	metrics  roku.BridgeMetrics
}

func newFakeRoku(ids ...string) *fakeRoku {
	f := &fakeRoku{
		entities: make(map[string]roku.EntityState),
		executed: make(chan roku.CommandMessage, 8),
	}
	for _, id := range ids {
		f.entities[id] = roku.EntityState{
			DeviceID: id,
			Name:     "Roku " + id,
			Host:     "192.168.1.160",
			State:    map[string]any{"available": true, "state": "home"},
		}
	}
	return f
}

func (f *fakeRoku) Entities() []roku.EntityState {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]roku.EntityState, 0, len(f.entities))
	for _, e := range f.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

func (f *fakeRoku) Entity(id string) (roku.EntityState, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entities[id]
	return e, ok
}

func (f *fakeRoku) Execute(_ context.Context, cmd roku.CommandMessage) error {
	f.mu.Lock()
	err := f.execErr
	f.mu.Unlock()
	f.executed <- cmd
	return err
}

func (f *fakeRoku) GetMetrics() roku.BridgeMetrics {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metrics
}

// fakeSubscriber records subscriptions.
type fakeSubscriber struct {
	mu        sync.Mutex
	topics    []string
	handlers  map[string]mqtt.MessageHandler
	connected bool
}

func (f *fakeSubscriber) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers == nil {
		f.handlers = make(map[string]mqtt.MessageHandler)
	}
	f.topics = append(f.topics, topic)
	f.handlers[topic] = handler
	return nil
}

func (f *fakeSubscriber) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// fakeTelemetry records WriteMediaState calls.
type fakeTelemetry struct {
	mu     sync.Mutex
	writes []string
}

func (f *fakeTelemetry) WriteMediaState(deviceID string, _ map[string]any, _ time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, deviceID)
}

func (f *fakeTelemetry) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

type testEnv struct {
	srv       *Server
	registry  *device.Registry
	history   *device.SQLiteStateHistoryRepository
	roku      *fakeRoku
	telemetry *fakeTelemetry
}

// testServer creates a Server over an in-memory database with the service
// schema, a fake bridge with one player, and fake telemetry.
func testServer(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Open(database.Config{Path: ":memory:", BusyTimeout: 1})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	registry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	history := device.NewSQLiteStateHistoryRepository(db.DB)
	fr := newFakeRoku("1GU48T017973")
	tel := &fakeTelemetry{}

	log := logging.NewWithWriter(config.LoggingConfig{Level: "error", Format: "text"}, "test", io.Discard)

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security:  config.SecurityConfig{JWT: config.JWTConfig{Secret: testSecret}},
		Logger:    log,
		Registry:  registry,
		History:   history,
		Roku:      fr,
		Telemetry: tel,
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.hub.Run(ctx)

	return &testEnv{srv: srv, registry: registry, history: history, roku: fr, telemetry: tel}
}

// seedDevice persists a Roku device so history rows satisfy the foreign key.
func (e *testEnv) seedDevice(t *testing.T, id string) {
	t.Helper()
	err := e.registry.CreateDevice(context.Background(), &device.Device{
		ID:       id,
		Name:     "Roku " + id,
		Type:     device.DeviceTypeMediaPlayer,
		Protocol: device.ProtocolRoku,
		Address:  device.Address{"host": "192.168.1.160"},
	})
	if err != nil {
		t.Fatalf("CreateDevice(%s) error = %v", id, err)
	}
}

func signToken(t *testing.T, method jwt.SigningMethod, claims jwt.Claims, secret string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return signed
}

func validToken(t *testing.T) string {
	t.Helper()
	return signToken(t, jwt.SigningMethodHS256, Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, testSecret)
}

// doRequest sends a request through the router with an optional bearer token.
func doRequest(t *testing.T, h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v (body %q)", err, w.Body.String())
	}
	return resp
}

// ─── Lifecycle ─────────────────────────────────────────────────────

func TestNew_RequiredDeps(t *testing.T) {
	env := testServer(t)
	log := env.srv.logger

	tests := []struct {
		name string
		deps Deps
	}{
		{"no logger", Deps{Registry: env.registry, Security: config.SecurityConfig{JWT: config.JWTConfig{Secret: testSecret}}}},
		{"no registry", Deps{Logger: log, Security: config.SecurityConfig{JWT: config.JWTConfig{Secret: testSecret}}}},
		{"no secret", Deps{Logger: log, Registry: env.registry}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() should fail")
			}
		})
	}
}

func TestServer_StartClose(t *testing.T) {
	env := testServer(t)
	sub := &fakeSubscriber{connected: true}
	env.srv.mqtt = sub

	if err := env.srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}

	if err := env.srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := env.srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	sub.mu.Lock()
	topics := sub.topics
	sub.mu.Unlock()
	if len(topics) != 1 || topics[0] != roku.StateSubscribeTopic() {
		t.Errorf("subscribed topics = %v, want [%s]", topics, roku.StateSubscribeTopic())
	}

	if err := env.srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestServer_CloseWithoutStart(t *testing.T) {
	env := testServer(t)
	if err := env.srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

// ─── Health and middleware ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	env := testServer(t)
	env.srv.mqtt = &fakeSubscriber{connected: true}

	w := doRequest(t, env.srv.buildRouter(), http.MethodGet, "/api/v1/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	resp := decodeBody(t, w)
	if resp["status"] != "ok" || resp["version"] != "test" || resp["mqtt_connected"] != true {
		t.Errorf("health = %v", resp)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	env := testServer(t)
	router := env.srv.buildRouter()

	w := doRequest(t, router, http.MethodGet, "/api/v1/health", "", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID should be generated")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want abc-123", got)
	}
}

func TestRequestIDMiddleware_ReplacesInvalid(t *testing.T) {
	env := testServer(t)
	router := env.srv.buildRouter()

	for _, id := range []string{strings.Repeat("x", maxRequestIDLength+1), "has space", "tab\tid"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		req.Header.Set("X-Request-ID", id)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		got := rec.Header().Get("X-Request-ID")
		if got == id || got == "" {
			t.Errorf("X-Request-ID %q was not replaced (got %q)", id, got)
		}
	}
}

func TestStatusWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &statusWriter{ResponseWriter: rec, status: http.StatusOK}

	w.WriteHeader(http.StatusAccepted)
	n, err := w.Write([]byte("hello"))
	if err != nil || n != 5 {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	if w.status != http.StatusAccepted || w.bytes != 5 {
		t.Errorf("status = %d bytes = %d, want 202 and 5", w.status, w.bytes)
	}

	// httptest.ResponseRecorder cannot be hijacked.
	if _, _, err := w.Hijack(); err == nil {
		t.Error("Hijack() on a recorder should fail")
	}
}

func TestCORSMiddleware(t *testing.T) {
	env := testServer(t)
	env.srv.cfg.CORS.AllowedOrigins = []string{"http://panel.local"}
	router := env.srv.buildRouter()

	tests := []struct {
		origin    string
		wantAllow string
	}{
		{"http://panel.local", "http://panel.local"},
		{"http://evil.example", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/devices", nil)
		req.Header.Set("Origin", tt.origin)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("%s: preflight status = %d, want 204", tt.origin, w.Code)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
			t.Errorf("%s: Allow-Origin = %q, want %q", tt.origin, got, tt.wantAllow)
		}
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	env := testServer(t)
	h := env.srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := doRequest(t, h, http.MethodGet, "/", "", "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}
