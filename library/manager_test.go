package library

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"
)

func newManager(t *testing.T, cfg Config) *LibraryManager {
	t.Helper()
	mgr, err := NewLibraryManager(cfg, quietLogger())
	if err != nil {
		t.Fatalf("mgr: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

func TestManagerLoginUpdatesAuth(t *testing.T) {
	be := newBackend(t)
	token := signToken(t, "u1")
	be.handle("POST /users/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"accessToken": token})
	})

	path := filepath.Join(t.TempDir(), "session.db")
	mgr := newManager(t, Config{BackendURL: be.URL, SessionDB: path})
	if mgr.Auth().State().IsAuthenticated {
		t.Fatalf("fresh manager is authenticated")
	}
	if res := mgr.Login(context.Background(), "a@b.com", "x"); !res.Success {
		t.Fatalf("login: %s", res.Message)
	}
	if s := mgr.Auth().State(); !s.IsAuthenticated || s.User.ID != "u1" {
		t.Fatalf("auth state not updated: %+v", s)
	}
	mgr.Close()

	// The session outlives the process.
	again := newManager(t, Config{BackendURL: be.URL, SessionDB: path})
	if !again.Auth().State().IsAuthenticated {
		t.Fatalf("session not restored from %s", path)
	}
}

func TestManagerEphemeral(t *testing.T) {
	mgr := newManager(t, Config{Ephemeral: true})
	if mgr.db != nil {
		t.Fatalf("ephemeral manager opened a database")
	}
	mgr.WatchSession(context.Background())
	if res := mgr.CreateBook(context.Background(), CreateBookPayload{Title: "T"}); res.Message != msgNoToken {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestPrettyBook(t *testing.T) {
	b := &Book{ID: "b1", Title: strings.Repeat("x", 40), Author: Author{Name: "Ann"}, Genre: "Fiction"}
	line := PrettyBook(b)
	if !strings.HasPrefix(line, "b1") || !strings.Contains(line, strings.Repeat("x", 27)+"...") {
		t.Fatalf("unexpected line: %q", line)
	}
	details := BookDetails(&Book{Title: "Dune", Author: Author{Name: "Frank"}, Description: "Spice"})
	if !strings.Contains(details, "by Frank") || !strings.Contains(details, "Spice") {
		t.Fatalf("unexpected details: %q", details)
	}
}

func TestPrettyBookMultibyteTitle(t *testing.T) {
	title := strings.Repeat("ü", 20) + strings.Repeat("日本", 10)
	line := PrettyBook(&Book{ID: "b1", Title: title, Author: Author{Name: strings.Repeat("é", 25)}})
	if !utf8.ValidString(line) {
		t.Fatalf("line is not valid UTF-8: %q", line)
	}
	want := strings.Repeat("ü", 20) + strings.Repeat("日本", 3) + "日..."
	if !strings.Contains(line, want) {
		t.Fatalf("title not cut at 30 characters: %q", line)
	}
	if got := truncate("añb", 2); got != "añ" {
		t.Fatalf("truncate short = %q", got)
	}
}
