// Package streaming defines the JSON messages pushed to route stream
// subscribers over WebSocket.
package streaming

import (
	"encoding/json"
	"fmt"

	"github.com/spraywall/spraywall/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeHello        = "hello"
	TypeRouteCreated = "route_created"
	TypeRouteUpdated = "route_updated"
	TypeRouteDeleted = "route_deleted"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// HelloPayload is sent once to every new subscriber after it is registered.
type HelloPayload struct {
	Subscribers int `json:"subscribers"`
}

// RoutePayload carries a created or updated route.
type RoutePayload struct {
	Route core.Route `json:"route"`
}

// DeletedPayload carries the id of a deleted route.
type DeletedPayload struct {
	ID string `json:"id"`
}

// Marshal builds a JSON-encoded Envelope from a message type and payload.
func Marshal(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// Decode unmarshals the envelope payload into v.
func (e Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}
