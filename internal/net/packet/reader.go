package packet

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Reader wraps one inbound observer message. The envelope is decoded eagerly
// so the registry can route on Type; handlers decode the body on demand.
type Reader struct {
	data []byte
	typ  string
}

func NewReader(data []byte) (*Reader, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("message has no type")
	}
	return &Reader{data: data, typ: env.Type}, nil
}

// Type returns the message type from the envelope.
func (r *Reader) Type() string { return r.typ }

// Len returns the raw message size in bytes.
func (r *Reader) Len() int { return len(r.data) }

// Decode unmarshals the full message into v, rejecting unknown fields.
func (r *Reader) Decode(v any) error {
	dec := json.NewDecoder(bytes.NewReader(r.data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", r.typ, err)
	}
	return nil
}
