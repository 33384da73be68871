// Package realtime delivers backend push events for one instance over a
// polymorphic transport: a duplex WebSocket or a server-sent event stream.
// The session controller consumes only the typed events defined here and
// never sees transport details.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
)

// EventKind discriminates the typed events a channel emits.
type EventKind string

const (
	// KindReady fires once the backend has acknowledged registration.
	KindReady EventKind = "ready"
	// KindArtifact carries an opaque pairing payload to render.
	KindArtifact EventKind = "artifact"
	// KindStatus carries free-text progress from the backend.
	KindStatus EventKind = "status"
	// KindConfirmed carries the linked account identity. Terminal.
	KindConfirmed EventKind = "confirmed"
	// KindTransportError reports an unexpected transport failure. The
	// channel is unusable afterwards.
	KindTransportError EventKind = "transport_error"
	// KindClosed reports an orderly close of the transport.
	KindClosed EventKind = "closed"
)

// Event is one typed notification from the backend. Exactly the fields
// relevant to Kind are populated.
type Event struct {
	Kind     EventKind
	Artifact string
	Status   string
	Identity string
	Err      error
}

// Channel is one live push transport scoped to a single instance.
// Implementations close the Events stream after emitting KindClosed or
// KindTransportError; Close is idempotent.
type Channel interface {
	Events() <-chan Event
	Close() error
}

// Dialer opens a Channel for an instance. Opening includes registration:
// the returned channel emits KindReady once the backend acknowledges it.
type Dialer interface {
	Dial(ctx context.Context, instanceID string) (Channel, error)
}

// wireMessage is the JSON envelope shared by both transports.
type wireMessage struct {
	Type       string `json:"type"`
	Data       string `json:"data,omitempty"`
	Message    string `json:"message,omitempty"`
	Number     string `json:"number,omitempty"`
	InstanceID string `json:"instanceId,omitempty"`
}

const (
	msgTypeRegister   = "register"
	msgTypeRegistered = "registered"
	msgTypeQR         = "qr"
	msgTypeStatus     = "status"
	msgTypePhone      = "phone"
)

// parseEvent decodes one inbound wire message into a typed event. A
// malformed or unknown message returns an error; callers drop it with a
// diagnostic and keep the channel alive.
func parseEvent(raw []byte) (Event, error) {
	var msg wireMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}

	switch msg.Type {
	case msgTypeRegistered:
		return Event{Kind: KindReady}, nil
	case msgTypeQR:
		if msg.Data == "" {
			return Event{}, fmt.Errorf("qr event with empty data")
		}
		return Event{Kind: KindArtifact, Artifact: msg.Data}, nil
	case msgTypeStatus:
		return Event{Kind: KindStatus, Status: msg.Message}, nil
	case msgTypePhone:
		if msg.Number == "" {
			return Event{}, fmt.Errorf("phone event with empty number")
		}
		return Event{Kind: KindConfirmed, Identity: msg.Number}, nil
	case "":
		return Event{}, fmt.Errorf("event without type")
	default:
		return Event{}, fmt.Errorf("unknown event type %q", msg.Type)
	}
}
