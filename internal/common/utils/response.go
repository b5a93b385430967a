// internal/common/utils/response.go
// Decoding of backend response bodies.
// The backend is not consistent about where it puts the payload ("data", "Data", "post",
// "user", ...), so callers name the keys they accept in order of preference.

package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Envelope is a decoded backend response
type Envelope struct {
	Success *bool
	Message string
	Error   string

	fields map[string]json.RawMessage
}

// DecodeEnvelope parses a JSON object body. An empty body yields an empty envelope.
func DecodeEnvelope(body []byte) (*Envelope, error) {
	env := &Envelope{fields: map[string]json.RawMessage{}}

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return env, nil
	}
	if body[0] != '{' {
		// Bare arrays and scalars live under the empty key
		env.fields[""] = json.RawMessage(body)
		return env, nil
	}

	if err := json.Unmarshal(body, &env.fields); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if raw, ok := env.fields["success"]; ok {
		var success bool
		if err := json.Unmarshal(raw, &success); err == nil {
			env.Success = &success
		}
	}
	env.Message = env.stringField("message")
	env.Error = env.stringField("error")

	return env, nil
}

// Succeeded reports the success flag; a response without one counts as a success
func (e *Envelope) Succeeded() bool {
	return e.Success == nil || *e.Success
}

// Has reports whether key is present and not null
func (e *Envelope) Has(key string) bool {
	raw, ok := e.fields[key]
	return ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Decode unmarshals the first present key into v. It reports whether a key was found.
func (e *Envelope) Decode(v interface{}, keys ...string) (bool, error) {
	for _, key := range keys {
		if !e.Has(key) {
			continue
		}
		if err := json.Unmarshal(e.fields[key], v); err != nil {
			return true, fmt.Errorf("failed to decode %q: %w", key, err)
		}
		return true, nil
	}
	return false, nil
}

// Raw returns the raw JSON for key
func (e *Envelope) Raw(key string) (json.RawMessage, bool) {
	raw, ok := e.fields[key]
	return raw, ok
}

// ErrorMessage returns the most specific error text the backend sent
func (e *Envelope) ErrorMessage() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

func (e *Envelope) stringField(key string) string {
	raw, ok := e.fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
