package library

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"path/filepath"
	"strings"
)

type formField struct {
	name   string
	value  string
	always bool
}

type formFields []formField

// bookForm is a fully buffered multipart body for create/update.
type bookForm struct {
	body        *bytes.Buffer
	contentType string
}

func newBookForm(fields formFields, cover, file *Upload) (*bookForm, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for _, f := range fields {
		if f.value == "" && !f.always {
			continue
		}
		if err := mw.WriteField(f.name, f.value); err != nil {
			return nil, fmt.Errorf("write field %s: %w", f.name, err)
		}
	}
	if err := writeUpload(mw, "coverImage", cover); err != nil {
		return nil, err
	}
	if err := writeUpload(mw, "file", file); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}
	return &bookForm{body: &buf, contentType: mw.FormDataContentType()}, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeUpload(mw *multipart.Writer, field string, up *Upload) error {
	if up == nil {
		return nil
	}
	if up.Content == nil {
		return &requestError{kind: failPrecondition, msg: fmt.Sprintf("No content provided for %s", field)}
	}

	name := filepath.Base(up.Filename)
	ct := mime.TypeByExtension(filepath.Ext(name))
	if ct == "" {
		ct = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, quoteEscaper.Replace(name)))
	h.Set("Content-Type", ct)

	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create part %s: %w", field, err)
	}
	if _, err := io.Copy(part, up.Content); err != nil {
		return &requestError{kind: failPrecondition, msg: fmt.Sprintf("Failed to read %s: %v", field, err), err: err}
	}
	return nil
}
