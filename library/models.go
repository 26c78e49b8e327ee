package library

import "io"

// Book is the backend's view of an uploaded book. The client only ever holds
// transient copies fetched for a single view.
type Book struct {
	ID          string `json:"_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CoverImage  string `json:"coverImage"`
	File        string `json:"file"`
	Genre       string `json:"genre"`
	Author      Author `json:"author"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

// Author is the owner of a book as embedded by the backend.
type Author struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// User is the minimal identity kept with a session.
type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Session is the client-held proof of authentication.
type Session struct {
	Token string `json:"token"`
	User  *User  `json:"user,omitempty"`
}

// Valid reports whether both halves of the session are present.
func (s *Session) Valid() bool {
	return s != nil && s.Token != "" && s.User != nil
}

// Result is the uniform envelope returned by every Client operation.
type Result[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
}

func ok[T any](message string, data T) Result[T] {
	return Result[T]{Success: true, Message: message, Data: data}
}

func fail[T any](message string) Result[T] {
	return Result[T]{Message: message}
}

// Upload is a binary form field (cover image or book file).
type Upload struct {
	Filename string
	Content  io.Reader
}

// CreateBookPayload carries the fields of a new book. Title and Description
// are always sent; the rest only when set.
type CreateBookPayload struct {
	Title       string
	Description string
	Genre       string
	CoverImage  *Upload
	File        *Upload
}

// UpdateBookPayload carries a partial update; empty fields are left untouched.
type UpdateBookPayload struct {
	Title       string
	Description string
	Genre       string
	CoverImage  *Upload
	File        *Upload
}
