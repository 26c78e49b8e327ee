package library

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// LibraryManager is a thin façade wiring the session store, the API client and
// the auth state together, keeping CLI code simple.
type LibraryManager struct {
	*Client

	db   *Database // nil for ephemeral sessions
	auth *Auth
	cfg  Config

	stopWatch context.CancelFunc
}

// NewLibraryManager opens the session store named by cfg and builds a client
// on top of it.
func NewLibraryManager(cfg Config, log *slog.Logger) (*LibraryManager, error) {
	if log == nil {
		log = slog.Default()
	}

	var (
		store SessionStore
		db    *Database
	)
	if cfg.Ephemeral {
		store = NewMemoryStore()
	} else {
		var err error
		if db, err = NewDatabase(cfg.SessionDB); err != nil {
			return nil, fmt.Errorf("open session store: %w", err)
		}
		store = db
	}

	events := NewNotifier()
	client := NewClient(cfg.BackendURL, store,
		WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		WithNotifier(events),
		WithLogger(log),
	)

	return &LibraryManager{
		Client: client,
		db:     db,
		auth:   NewAuth(store, events, log),
		cfg:    cfg,
	}, nil
}

// Close stops watching and closes the session store.
func (lm *LibraryManager) Close() error {
	if lm.stopWatch != nil {
		lm.stopWatch()
	}
	lm.auth.Close()
	if lm.db != nil {
		return lm.db.Close()
	}
	return nil
}

// Auth returns the live authentication state.
func (lm *LibraryManager) Auth() *Auth { return lm.auth }

// Dashboard returns a fresh, empty book list for the logged-in user.
func (lm *LibraryManager) Dashboard() *Dashboard { return NewDashboard(lm.Client) }

// WatchSession starts reporting session changes made by other processes.
// It is a no-op for ephemeral sessions or when called twice.
func (lm *LibraryManager) WatchSession(ctx context.Context) {
	if lm.db == nil || lm.stopWatch != nil {
		return
	}
	ctx, lm.stopWatch = context.WithCancel(ctx)
	go lm.db.Watch(ctx, lm.cfg.WatchInterval, lm.Notifier())
}

// ------------------ Utilities ------------------

// PrettyBook formats a book for lists.
func PrettyBook(b *Book) string {
	return fmt.Sprintf("%-24s %-30s %-20s %-12s", b.ID, truncate(b.Title, 30), truncate(b.Author.Name, 20), truncate(b.Genre, 12))
}

// BookDetails renders a single book the way the detail page shows it.
func BookDetails(b *Book) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", b.Title)
	if b.Author.Name != "" {
		fmt.Fprintf(&sb, "by %s\n", b.Author.Name)
	}
	if b.Genre != "" {
		fmt.Fprintf(&sb, "Genre: %s\n", b.Genre)
	}
	if b.Description != "" {
		fmt.Fprintf(&sb, "\n%s\n", b.Description)
	}
	if b.CoverImage != "" {
		fmt.Fprintf(&sb, "\nCover: %s\n", b.CoverImage)
	}
	if b.File != "" {
		fmt.Fprintf(&sb, "File:  %s\n", b.File)
	}
	return sb.String()
}

// truncate shortens s to maxLen characters, never splitting a rune.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
