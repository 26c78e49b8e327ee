package library

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// reply is a decoded backend response. The backend is loose about shapes: a
// list may be a bare array or {books}, a single book may be bare or {book}.
type reply struct {
	status int
	raw    []byte
	body   replyBody
}

type replyBody struct {
	Message     string `json:"message"`
	Error       string `json:"error"`
	AccessToken string `json:"accessToken"`
	Token       string `json:"token"`
	Book        *Book  `json:"book"`
	Books       []Book `json:"books"`
}

func decodingError(status int, err error) error {
	return &requestError{
		kind: failDecoding,
		msg:  msgInvalidResponse,
		err:  fmt.Errorf("decode response (HTTP %d): %w", status, err),
	}
}

func decodeReply(status int, raw []byte) (*reply, error) {
	r := &reply{status: status, raw: bytes.TrimSpace(raw)}
	if len(r.raw) == 0 {
		return r, nil
	}
	if !json.Valid(r.raw) {
		return nil, decodingError(status, errors.New("body is not JSON"))
	}
	if r.raw[0] == '{' {
		if err := json.Unmarshal(r.raw, &r.body); err != nil {
			// A field of an unexpected type leaves the rest decoded.
			var te *json.UnmarshalTypeError
			if !errors.As(err, &te) {
				return nil, decodingError(status, err)
			}
		}
	}
	return r, nil
}

func (r *reply) ok() bool { return r.status >= 200 && r.status <= 299 }

func (r *reply) message(fallback string) string {
	if r.body.Message != "" {
		return r.body.Message
	}
	return fallback
}

// failure picks the backend's explanation for a rejected request.
func (r *reply) failure(fallback string) string {
	switch {
	case r.body.Message != "":
		return r.body.Message
	case r.body.Error != "":
		return r.body.Error
	default:
		return fallback
	}
}

func (r *reply) books() ([]Book, error) {
	if len(r.raw) > 0 && r.raw[0] == '[' {
		var books []Book
		if err := json.Unmarshal(r.raw, &books); err != nil {
			return nil, decodingError(r.status, err)
		}
		return books, nil
	}
	if r.body.Books == nil {
		return []Book{}, nil
	}
	return r.body.Books, nil
}

func (r *reply) book() (*Book, error) {
	if r.body.Book != nil {
		return r.body.Book, nil
	}
	if len(r.raw) == 0 || r.raw[0] != '{' {
		return nil, decodingError(r.status, errors.New("expected a book object"))
	}
	var b Book
	if err := json.Unmarshal(r.raw, &b); err != nil {
		return nil, decodingError(r.status, err)
	}
	return &b, nil
}
