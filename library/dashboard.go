package library

import (
	"context"
	"slices"
	"sync"
)

// Dashboard holds the logged-in user's book list between calls. The local
// list changes only when the backend confirms an operation, or when the caller
// asks for a reload.
type Dashboard struct {
	client *Client

	mu    sync.Mutex
	books []Book
}

func NewDashboard(c *Client) *Dashboard {
	return &Dashboard{client: c}
}

// Books returns a copy of the local list.
func (d *Dashboard) Books() []Book {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.books)
}

// Load replaces the local list with the user's books from the backend. On
// failure the previous list is kept.
func (d *Dashboard) Load(ctx context.Context) Result[[]Book] {
	res := d.client.ListOwnBooks(ctx)
	if res.Success {
		d.mu.Lock()
		d.books = slices.Clone(res.Data)
		d.mu.Unlock()
	}
	return res
}

func (d *Dashboard) Create(ctx context.Context, p CreateBookPayload) Result[*Book] {
	res := d.client.CreateBook(ctx, p)
	if res.Success && res.Data != nil {
		d.mu.Lock()
		d.books = append(d.books, *res.Data)
		d.mu.Unlock()
	}
	return res
}

func (d *Dashboard) Update(ctx context.Context, id string, p UpdateBookPayload) Result[*Book] {
	res := d.client.UpdateBook(ctx, id, p)
	if res.Success && res.Data != nil {
		d.mu.Lock()
		if i := d.index(id); i >= 0 {
			d.books[i] = *res.Data
		}
		d.mu.Unlock()
	}
	return res
}

func (d *Dashboard) Delete(ctx context.Context, id string) Result[struct{}] {
	res := d.client.DeleteBook(ctx, id)
	if res.Success {
		d.mu.Lock()
		if i := d.index(id); i >= 0 {
			d.books = slices.Delete(d.books, i, i+1)
		}
		d.mu.Unlock()
	}
	return res
}

// index must be called with d.mu held.
func (d *Dashboard) index(id string) int {
	return slices.IndexFunc(d.books, func(b Book) bool { return b.ID == id })
}
