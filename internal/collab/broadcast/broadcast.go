package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
)

// Kind tags a broadcast envelope so subscribers can route it.
type Kind string

const (
	KindPresence Kind = "presence"
	KindChange   Kind = "change"
)

// Message is the envelope carried on a resource's broadcast room. Payload is
// left opaque here; presence and change feeds define their own shapes.
type Message struct {
	Kind    Kind            `json:"kind"`
	Room    string          `json:"room"`
	Payload json.RawMessage `json:"payload"`
}

// Handler receives messages for a subscribed room. Handlers run on the
// subscription's dispatch goroutine and must not block for long.
type Handler func(Message)

// Subscription is an open room subscription. Close releases it; Done is
// closed when the underlying transport drops, whichever side initiated it.
type Subscription interface {
	Close() error
	Done() <-chan struct{}
}

// Broadcaster is the publish/subscribe substrate the collaboration layer
// rides on. All cross-client coordination goes through here, never through
// shared memory.
type Broadcaster interface {
	Publish(ctx context.Context, room string, msg Message) error
	Subscribe(ctx context.Context, room string, h Handler) (Subscription, error)
}

// RoomName builds the canonical room key for a resource.
func RoomName(resourceType, resourceID string) string {
	return fmt.Sprintf("%s:%s", resourceType, resourceID)
}

// NewMessage marshals payload into an envelope for room.
func NewMessage(kind Kind, room string, payload interface{}) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return Message{Kind: kind, Room: room, Payload: raw}, nil
}
