package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/LucadeVeintemilla/emotionTracking/core"
	"github.com/LucadeVeintemilla/emotionTracking/core/emotion"
	"github.com/LucadeVeintemilla/emotionTracking/core/live"
	"github.com/LucadeVeintemilla/emotionTracking/core/student"
	"github.com/LucadeVeintemilla/emotionTracking/storage/database"
)

// NewConfig returns a test configuration that needs no environment.
func NewConfig() *core.Config {
	return &core.Config{
		Env:       "TEST",
		TestMode:  true,
		AppName:   "EmotionTracking",
		SecretKey: "test-secret",
		Server:    core.ServerConfig{Address: ":0"},
		Database:  core.DatabaseConfig{Engine: "sqlite3", Name: ":memory:"},
		Backend:   core.BackendConfig{BaseURL: "http://backend.test"},
		Capture:   core.CaptureConfig{Interval: time.Hour, MaxWidth: 640, Quality: 70},
		Email:     core.EmailConfig{From: "noreply@test.test"},
	}
}

// PrepareDB opens a migrated in-memory sqlite database, closed when the test ends.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Open(core.DatabaseConfig{Engine: "sqlite3", Name: ":memory:"})
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

// Roster is a small directory used across tests.
var Roster = []student.Student{
	{ID: "a1", Name: "Ana", LastName: "Ruiz", Email: "ana@test.test"},
	{ID: "b2", Name: "Bruno", LastName: "Paz", Email: "bruno@test.test"},
	{ID: "c3", Name: "Carla", LastName: "Vega", Email: "carla@test.test"},
}

// FakeCamera returns the same frame on every capture, or Err when set.
type FakeCamera struct {
	mu    sync.Mutex
	Frame []byte
	Err   error
	Calls int
}

func (c *FakeCamera) Capture(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls++
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Frame, nil
}

// FakeTallies serves canned tallies per session.
type FakeTallies map[string][]emotion.Tally

func (f FakeTallies) SessionTallies(_ context.Context, sessionID string) ([]emotion.Tally, error) {
	return f[sessionID], nil
}

// Passthrough is a live.Preprocessor that leaves frames untouched.
type Passthrough struct{}

func (Passthrough) Preprocess(_ context.Context, raw []byte) ([]byte, error) {
	return raw, nil
}

// StaticTransport answers every exchange with Resp, or Err when set.
type StaticTransport struct {
	mu       sync.Mutex
	Resp     live.Response
	Err      error
	Requests []live.Request
}

func (t *StaticTransport) Exchange(_ context.Context, req live.Request) (live.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Requests = append(t.Requests, req)
	if t.Err != nil {
		return live.Response{}, t.Err
	}
	return t.Resp, nil
}
