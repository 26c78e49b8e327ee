package library

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
)

func TestAuthReadsSessionOnCreation(t *testing.T) {
	store := NewMemoryStore()
	store.Write(Session{Token: "tok", User: &User{ID: "u1", Email: "a@b.com"}})

	a := NewAuth(store, NewNotifier(), quietLogger())
	defer a.Close()

	s := a.State()
	if !s.IsAuthenticated || s.IsLoading || s.Token != "tok" || s.User.ID != "u1" {
		t.Fatalf("unexpected state: %+v", s)
	}
}

func TestAuthRequiresTokenAndUser(t *testing.T) {
	store := NewMemoryStore()
	store.Write(Session{Token: "tok"})

	a := NewAuth(store, nil, quietLogger())
	if s := a.State(); s.IsAuthenticated || s.Token != "tok" {
		t.Fatalf("token alone must not authenticate: %+v", s)
	}
}

func TestAuthFollowsLoginAndLogout(t *testing.T) {
	be := newBackend(t)
	token := signToken(t, "u9")
	be.handle("POST /users/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"accessToken": token})
	})

	tc := newTestClient(t, be.URL)
	a := NewAuth(tc.store, tc.events, quietLogger())
	defer a.Close()

	var seen []AuthState
	a.OnChange(func(s AuthState) { seen = append(seen, s) })

	if a.State().IsAuthenticated {
		t.Fatalf("authenticated before login")
	}
	if res := tc.Login(context.Background(), "a@b.com", "x"); !res.Success {
		t.Fatalf("login: %s", res.Message)
	}
	if s := a.State(); !s.IsAuthenticated || s.User.ID != "u9" || s.Token != token {
		t.Fatalf("after login: %+v", s)
	}

	tc.Logout()
	if s := a.State(); s.IsAuthenticated || s.User != nil || s.Token != "" {
		t.Fatalf("after logout: %+v", s)
	}
	if len(seen) != 2 {
		t.Fatalf("want 2 change callbacks, got %d", len(seen))
	}
}

func TestAuthFiltersStorageKeys(t *testing.T) {
	store := NewMemoryStore()
	n := NewNotifier()
	a := NewAuth(store, n, quietLogger())
	defer a.Close()

	// A write that nobody announces is not picked up.
	store.Write(Session{Token: "tok", User: &User{ID: "u1"}})
	if a.State().IsAuthenticated {
		t.Fatalf("state changed without a signal")
	}

	n.Publish(Event{Kind: StorageChanged, Key: "theme"})
	if a.State().IsAuthenticated {
		t.Fatalf("unrelated key triggered a reload")
	}

	n.Publish(Event{Kind: StorageChanged, Key: UserKey})
	if !a.State().IsAuthenticated {
		t.Fatalf("session key change was ignored")
	}
}

func TestAuthRefetch(t *testing.T) {
	store := NewMemoryStore()
	a := NewAuth(store, nil, quietLogger())

	store.Write(Session{Token: "tok", User: &User{ID: "u1"}})
	a.Refetch()
	if !a.State().IsAuthenticated {
		t.Fatalf("refetch did not pick up the session")
	}
}

func TestAuthCloseStopsUpdates(t *testing.T) {
	store := NewMemoryStore()
	n := NewNotifier()
	a := NewAuth(store, n, quietLogger())
	a.Close()

	store.Write(Session{Token: "tok", User: &User{ID: "u1"}})
	n.Publish(Event{Kind: SessionChanged})
	if a.State().IsAuthenticated {
		t.Fatalf("closed auth still reacting to events")
	}
}

func TestAuthSeesLoginFromAnotherProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	mine, err := NewDatabase(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer mine.Close()
	other, err := NewDatabase(path)
	if err != nil {
		t.Fatalf("open other: %v", err)
	}
	defer other.Close()

	n := NewNotifier()
	a := NewAuth(mine, n, quietLogger())
	defer a.Close()

	if err := other.Write(Session{Token: "tok", User: &User{ID: "u1"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	mine.poll(n)
	if !a.State().IsAuthenticated {
		t.Fatalf("login from another process not observed")
	}

	if err := other.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	mine.poll(n)
	if a.State().IsAuthenticated {
		t.Fatalf("logout from another process not observed")
	}
}

func TestNotifierUnsubscribe(t *testing.T) {
	var n Notifier
	calls := 0
	cancel := n.Subscribe(func(Event) { calls++ })
	n.Publish(Event{Kind: SessionChanged})
	cancel()
	cancel()
	n.Publish(Event{Kind: SessionChanged})
	if calls != 1 {
		t.Fatalf("want 1 call, got %d", calls)
	}
}
