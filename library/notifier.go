package library

import "sync"

// EventKind distinguishes where a change signal came from.
type EventKind int

const (
	// StorageChanged means another process mutated a persisted session key.
	StorageChanged EventKind = iota + 1
	// SessionChanged means this process logged in or out.
	SessionChanged
)

func (k EventKind) String() string {
	switch k {
	case StorageChanged:
		return "storage"
	case SessionChanged:
		return "session"
	default:
		return "unknown"
	}
}

// Event is a single change notification. Key is set for StorageChanged only.
type Event struct {
	Kind EventKind
	Key  string
}

// Notifier fans change events out to subscribers. The zero value is ready to use.
type Notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(Event)
}

// NewNotifier returns an empty Notifier.
func NewNotifier() *Notifier { return &Notifier{} }

// Subscribe registers fn and returns a function that removes it again.
func (n *Notifier) Subscribe(fn func(Event)) (cancel func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs == nil {
		n.subs = make(map[int]func(Event))
	}
	id := n.nextID
	n.nextID++
	n.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
}

// Publish delivers e to every subscriber synchronously, outside the lock.
func (n *Notifier) Publish(e Event) {
	if n == nil {
		return
	}
	n.mu.Lock()
	fns := make([]func(Event), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}
