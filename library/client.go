package library

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const (
	msgNoToken          = "No authentication token found"
	msgInvalidResponse  = "Invalid response from server"
	msgNoTokenReceived  = "No token received from server"
	contentTypeJSON     = "application/json"
	defaultBackendURL   = "http://localhost:5000/api/v1"
	networkErrorMessage = "Network error: Unable to reach %s. Make sure backend is running."
)

// ErrNoToken is reported when an authenticated call is attempted without a
// stored session token.
var ErrNoToken = errors.New("no authentication token found")

type failureKind string

const (
	failPrecondition failureKind = "precondition"
	failTransport    failureKind = "transport"
	failProtocol     failureKind = "protocol"
	failDecoding     failureKind = "decoding"
)

// requestError carries the human-readable message that ends up in the envelope.
// The kind is only used for logging; callers see the message alone.
type requestError struct {
	kind failureKind
	msg  string
	err  error
}

func (e *requestError) Error() string { return e.msg }
func (e *requestError) Unwrap() error { return e.err }

// Client talks to the book-sharing backend. Every operation is total: failures
// come back as a Result with Success=false and a message, never as an error.
// A Client is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	store   SessionStore
	events  *Notifier
	log     *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithNotifier sets where session-changed events are published.
func WithNotifier(n *Notifier) Option { return func(c *Client) { c.events = n } }

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.log = l } }

// NewClient builds a Client for baseURL (for example
// "http://localhost:5000/api/v1") persisting sessions in store.
func NewClient(baseURL string, store SessionStore, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBackendURL
	}
	c := &Client{
		baseURL: baseURL,
		http:    http.DefaultClient,
		store:   store,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.events == nil {
		c.events = NewNotifier()
	}
	return c
}

// Notifier returns the notifier session-changed events are published on.
func (c *Client) Notifier() *Notifier { return c.events }

// Store returns the session store the client reads tokens from.
func (c *Client) Store() SessionStore { return c.store }

// ---------------------------------------------------------------------------
// Authentication
// ---------------------------------------------------------------------------

type credentials struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account and stores the resulting session. The session
// user is built from the submitted name and email, not from a profile
// confirmed by the backend.
func (c *Client) Register(ctx context.Context, name, email, password string) Result[Session] {
	r, err := c.sendJSON(ctx, http.MethodPost, "/users/register", credentials{Name: name, Email: email, Password: password})
	if err != nil {
		return fail[Session](c.failed("register", err))
	}
	if !r.ok() {
		return fail[Session](c.rejected("register", r, "Registration failed"))
	}
	return c.startSession(r, User{Name: name, Email: email}, "Registration successful")
}

// Login authenticates with email and password and stores the resulting session.
func (c *Client) Login(ctx context.Context, email, password string) Result[Session] {
	r, err := c.sendJSON(ctx, http.MethodPost, "/users/login", credentials{Email: email, Password: password})
	if err != nil {
		return fail[Session](c.failed("login", err))
	}
	if !r.ok() {
		return fail[Session](c.rejected("login", r, "Login failed"))
	}
	return c.startSession(r, User{Email: email}, "Login successful")
}

func (c *Client) startSession(r *reply, user User, message string) Result[Session] {
	token := r.body.AccessToken
	if token == "" {
		token = r.body.Token
	}
	if token == "" {
		c.log.Warn("auth response without token", "status", r.status)
		return fail[Session](msgNoTokenReceived)
	}

	user.ID = tokenSubject(token)
	s := Session{Token: token, User: &user}
	if err := c.store.Write(s); err != nil {
		c.log.Error("persist session", "err", err)
		return fail[Session](fmt.Sprintf("Failed to save session: %v", err))
	}
	c.events.Publish(Event{Kind: SessionChanged})
	c.log.Info("session started", "user_id", user.ID, "email", user.Email)
	return ok(message, s)
}

// Logout drops the stored session. No request is made.
func (c *Client) Logout() {
	if err := c.store.Clear(); err != nil {
		c.log.Error("clear session", "err", err)
	}
	c.events.Publish(Event{Kind: SessionChanged})
}

// ---------------------------------------------------------------------------
// Books
// ---------------------------------------------------------------------------

// ListBooks fetches the public catalog.
func (c *Client) ListBooks(ctx context.Context) Result[[]Book] {
	return c.listBooks(ctx, "/books", false, "list books")
}

// ListOwnBooks fetches the books uploaded by the logged-in user.
func (c *Client) ListOwnBooks(ctx context.Context) Result[[]Book] {
	return c.listBooks(ctx, "/books/", true, "list own books")
}

func (c *Client) listBooks(ctx context.Context, path string, auth bool, op string) Result[[]Book] {
	r, err := c.send(ctx, http.MethodGet, path, "", nil, auth)
	if err != nil {
		return fail[[]Book](c.failed(op, err))
	}
	if !r.ok() {
		return fail[[]Book](c.rejected(op, r, "Failed to fetch books"))
	}
	books, err := r.books()
	if err != nil {
		return fail[[]Book](c.failed(op, err))
	}
	return ok(r.message("Books fetched successfully"), books)
}

// GetBook fetches a single book. No session is required.
func (c *Client) GetBook(ctx context.Context, id string) Result[*Book] {
	r, err := c.send(ctx, http.MethodGet, "/books/"+url.PathEscape(id), "", nil, false)
	if err != nil {
		return fail[*Book](c.failed("get book", err))
	}
	if !r.ok() {
		return fail[*Book](c.rejected("get book", r, "Failed to fetch book"))
	}
	book, err := r.book()
	if err != nil {
		return fail[*Book](c.failed("get book", err))
	}
	return ok(r.message("Book fetched successfully"), book)
}

// CreateBook uploads a new book as multipart form data.
func (c *Client) CreateBook(ctx context.Context, p CreateBookPayload) Result[*Book] {
	if c.token() == "" {
		return fail[*Book](c.failed("create book", noToken()))
	}
	form, err := newBookForm(formFields{
		{name: "title", value: p.Title, always: true},
		{name: "description", value: p.Description, always: true},
		{name: "genre", value: p.Genre},
	}, p.CoverImage, p.File)
	if err != nil {
		return fail[*Book](c.failed("create book", err))
	}
	return c.sendBook(ctx, http.MethodPost, "/books/", form, "create book",
		"Book created successfully", "Failed to create book")
}

// UpdateBook sends only the fields set in p.
func (c *Client) UpdateBook(ctx context.Context, id string, p UpdateBookPayload) Result[*Book] {
	if c.token() == "" {
		return fail[*Book](c.failed("update book", noToken()))
	}
	form, err := newBookForm(formFields{
		{name: "title", value: p.Title},
		{name: "description", value: p.Description},
		{name: "genre", value: p.Genre},
	}, p.CoverImage, p.File)
	if err != nil {
		return fail[*Book](c.failed("update book", err))
	}
	return c.sendBook(ctx, http.MethodPatch, "/books/"+url.PathEscape(id), form, "update book",
		"Book updated successfully", "Failed to update book")
}

func (c *Client) sendBook(ctx context.Context, method, path string, form *bookForm, op, okMsg, failMsg string) Result[*Book] {
	r, err := c.send(ctx, method, path, form.contentType, form.body, true)
	if err != nil {
		return fail[*Book](c.failed(op, err))
	}
	if !r.ok() {
		return fail[*Book](c.rejected(op, r, failMsg))
	}
	return ok(r.message(okMsg), r.body.Book)
}

// DeleteBook removes one of the user's books.
func (c *Client) DeleteBook(ctx context.Context, id string) Result[struct{}] {
	r, err := c.send(ctx, http.MethodDelete, "/books/"+url.PathEscape(id), "", nil, true)
	if err != nil {
		return fail[struct{}](c.failed("delete book", err))
	}
	if !r.ok() {
		return fail[struct{}](c.rejected("delete book", r, "Failed to delete book"))
	}
	return ok(r.message("Book deleted successfully"), struct{}{})
}

// DownloadBook streams the book's file to w and reports the number of bytes
// written. Relative file references resolve against the backend URL.
func (c *Client) DownloadBook(ctx context.Context, b Book, w io.Writer) Result[int64] {
	if strings.TrimSpace(b.File) == "" {
		return fail[int64]("Book has no file to download")
	}
	target, err := c.resolve(b.File)
	if err != nil {
		return fail[int64](fmt.Sprintf("Invalid file reference: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fail[int64](c.failed("download book", &requestError{kind: failTransport, msg: err.Error(), err: err}))
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fail[int64](c.failed("download book", unreachable(target, err)))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail[int64](fmt.Sprintf("Failed to download book (HTTP %d)", resp.StatusCode))
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return fail[int64](fmt.Sprintf("Download interrupted: %v", err))
	}
	return ok("Book downloaded successfully", n)
}

func (c *Client) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return "", err
	}
	return base.ResolveReference(u).String(), nil
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

func (c *Client) token() string {
	s, err := c.store.Read()
	if err != nil {
		c.log.Warn("read session", "err", err)
		return ""
	}
	if s == nil {
		return ""
	}
	return s.Token
}

func noToken() error {
	return &requestError{kind: failPrecondition, msg: msgNoToken, err: ErrNoToken}
}

func unreachable(target string, err error) error {
	return &requestError{kind: failTransport, msg: fmt.Sprintf(networkErrorMessage, target), err: err}
}

func (c *Client) sendJSON(ctx context.Context, method, path string, v any) (*reply, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, &requestError{kind: failPrecondition, msg: err.Error(), err: err}
	}
	return c.send(ctx, method, path, contentTypeJSON, bytes.NewReader(b), false)
}

// send issues one request. With auth set, a missing token fails before any
// network activity.
func (c *Client) send(ctx context.Context, method, path, contentType string, body io.Reader, auth bool) (*reply, error) {
	var token string
	if auth {
		if token = c.token(); token == "" {
			return nil, noToken()
		}
	}

	target := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &requestError{kind: failTransport, msg: err.Error(), err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", contentTypeJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.log.Debug("request", "method", method, "url", target)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, unreachable(target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &requestError{kind: failTransport, msg: fmt.Sprintf("Failed to read response: %v", err), err: err}
	}
	c.log.Debug("response", "method", method, "url", target, "status", resp.StatusCode, "bytes", len(raw))

	return decodeReply(resp.StatusCode, raw)
}

func (c *Client) failed(op string, err error) string {
	var re *requestError
	if errors.As(err, &re) {
		c.log.Warn("request failed", "op", op, "kind", string(re.kind), "err", re.err)
		return re.msg
	}
	c.log.Warn("request failed", "op", op, "err", err)
	return err.Error()
}

func (c *Client) rejected(op string, r *reply, fallback string) string {
	msg := r.failure(fallback)
	c.log.Warn("request rejected", "op", op, "kind", string(failProtocol), "status", r.status, "message", msg)
	return msg
}
