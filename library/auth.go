package library

import (
	"log/slog"
	"sync"
)

// AuthState is a snapshot of who is logged in.
type AuthState struct {
	User            *User
	Token           string
	IsAuthenticated bool
	IsLoading       bool
}

// Auth keeps an AuthState in sync with a SessionStore. It re-reads the store
// whenever the notifier reports a session change, or a storage change to one
// of the session keys. It never polls.
type Auth struct {
	store SessionStore
	log   *slog.Logger

	mu        sync.Mutex
	state     AuthState
	nextID    int
	listeners map[int]func(AuthState)

	unsubscribe func()
}

// NewAuth reads the session once and subscribes to n. Call Close to stop
// listening.
func NewAuth(store SessionStore, n *Notifier, log *slog.Logger) *Auth {
	if log == nil {
		log = slog.Default()
	}
	a := &Auth{
		store:     store,
		log:       log,
		state:     AuthState{IsLoading: true},
		listeners: make(map[int]func(AuthState)),
	}
	a.Refetch()
	if n != nil {
		a.unsubscribe = n.Subscribe(a.handle)
	}
	return a
}

func (a *Auth) handle(e Event) {
	switch e.Kind {
	case SessionChanged:
		a.Refetch()
	case StorageChanged:
		if e.Key == TokenKey || e.Key == UserKey {
			a.Refetch()
		}
	}
}

// State returns the current snapshot.
func (a *Auth) State() AuthState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Refetch re-reads the store and notifies listeners.
func (a *Auth) Refetch() {
	s, err := a.store.Read()
	if err != nil {
		a.log.Warn("load auth state", "err", err)
		s = nil
	}

	next := AuthState{IsAuthenticated: s.Valid()}
	if s != nil {
		next.Token = s.Token
		next.User = s.User
	}

	a.mu.Lock()
	a.state = next
	fns := make([]func(AuthState), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.mu.Unlock()

	for _, fn := range fns {
		fn(next)
	}
}

// OnChange registers fn to be called with every refreshed state.
func (a *Auth) OnChange(fn func(AuthState)) (cancel func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

// Close stops listening for change events.
func (a *Auth) Close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
}
