// internal/api/multipart.go
// multipart/form-data bodies for uploads

package api

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"net/textproto"
)

// FormFile is a file part
type FormFile struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// MultipartForm collects fields in insertion order
type MultipartForm struct {
	fields [][2]string
	files  []FormFile
}

// NewMultipartForm creates an empty form
func NewMultipartForm() *MultipartForm {
	return &MultipartForm{}
}

// AddField appends a text field
func (f *MultipartForm) AddField(name, value string) *MultipartForm {
	f.fields = append(f.fields, [2]string{name, value})
	return f
}

// AddFile appends a file part
func (f *MultipartForm) AddFile(file FormFile) *MultipartForm {
	f.files = append(f.files, file)
	return f
}

// Field returns the first value of a text field
func (f *MultipartForm) Field(name string) (string, bool) {
	for _, kv := range f.fields {
		if kv[0] == name {
			return kv[1], true
		}
	}
	return "", false
}

// Encode renders the body and returns it with its content type
func (f *MultipartForm) Encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, kv := range f.fields {
		if err := w.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", kv[0], err)
		}
	}

	for _, file := range f.files {
		if file.Field == "" || file.Filename == "" {
			return nil, "", errors.New("file part needs a field and a filename")
		}
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name=%q; filename=%q`, file.Field, file.Filename))
		contentType := file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)

		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create part %s: %w", file.Field, err)
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, "", fmt.Errorf("failed to write part %s: %w", file.Field, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
