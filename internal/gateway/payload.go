package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// OperationType is the top-level kind of a gateway payload.
type OperationType int

const (
	OperationHello    OperationType = 0
	OperationDispatch OperationType = 1
)

var (
	// ErrInvalidUTF8 is returned for a message that is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("gateway: payload is not valid UTF-8")
	// ErrMalformedPayload is returned for a message that is not a payload
	// document.
	ErrMalformedPayload = errors.New("gateway: malformed payload")
)

// Payload is one gateway message. Event is set only for Dispatch.
type Payload struct {
	Operation OperationType   `json:"operation"`
	Event     string          `json:"event,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// DecodePayload strictly decodes a received message.
func DecodePayload(message []byte) (Payload, error) {
	if !utf8.Valid(message) {
		return Payload{}, ErrInvalidUTF8
	}

	var wire struct {
		Operation *OperationType  `json:"operation"`
		Event     *string         `json:"event"`
		Data      json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(message, &wire); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if wire.Operation == nil {
		return Payload{}, fmt.Errorf("%w: missing operation", ErrMalformedPayload)
	}

	p := Payload{Operation: *wire.Operation, Data: wire.Data}
	if wire.Event != nil {
		p.Event = *wire.Event
	}
	return p, nil
}

// EncodePayload serializes p for sending.
func EncodePayload(p Payload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return data, nil
}
