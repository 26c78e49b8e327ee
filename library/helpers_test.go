package library

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tempDB(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func signToken(t *testing.T, sub string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub}).
		SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

// backend is a fake REST server that counts every request it receives.
type backend struct {
	*httptest.Server
	mux      *http.ServeMux
	requests atomic.Int32
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{mux: http.NewServeMux()}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.requests.Add(1)
		b.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(b.Close)
	return b
}

func (b *backend) handle(pattern string, h http.HandlerFunc) { b.mux.HandleFunc(pattern, h) }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type testClient struct {
	*Client
	store  *MemoryStore
	events *Notifier
}

func newTestClient(t *testing.T, baseURL string) *testClient {
	t.Helper()
	store := NewMemoryStore()
	events := NewNotifier()
	c := NewClient(baseURL, store, WithNotifier(events), WithLogger(quietLogger()))
	return &testClient{Client: c, store: store, events: events}
}

// loggedIn stores a session without going through the backend.
func (tc *testClient) loggedIn(t *testing.T, token string) {
	t.Helper()
	if err := tc.store.Write(Session{Token: token, User: &User{ID: "u1", Email: "a@b.com"}}); err != nil {
		t.Fatalf("write session: %v", err)
	}
}

func countEvents(n *Notifier, kind EventKind) *atomic.Int32 {
	var c atomic.Int32
	n.Subscribe(func(e Event) {
		if e.Kind == kind {
			c.Add(1)
		}
	})
	return &c
}
