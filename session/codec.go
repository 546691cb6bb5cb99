package session

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"time"
)

// Codec serializes session values and creation time into the opaque
// payload handed to the store.
type Codec interface {
	// Encode encodes the creation time and session values into a byte slice.
	Encode(createdAt time.Time, values map[string]any) ([]byte, error)

	// Decode decodes a payload into the session creation time and values.
	Decode(data []byte) (createdAt time.Time, values map[string]any, err error)
}

// GobCodec is a Codec using encoding/gob. Custom value types must be
// registered with gob.Register before they are stored.
type GobCodec struct{}

var _ Codec = GobCodec{}

type gobPayload struct {
	CreatedAt time.Time
	Values    map[string]any
}

func (GobCodec) Encode(createdAt time.Time, values map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&gobPayload{CreatedAt: createdAt, Values: values}); err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	return buf.Bytes(), nil
}

func (GobCodec) Decode(data []byte) (time.Time, map[string]any, error) {
	var p gobPayload
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
		return time.Time{}, nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if p.Values == nil {
		p.Values = make(map[string]any)
	}
	return p.CreatedAt, p.Values, nil
}
