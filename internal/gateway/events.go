package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/aula-chat/aula-go/internal/rest"
)

// Event names. Dispatch payloads use the same names in their event field.
const (
	EventHello                  = "Hello"
	EventClientDisconnected     = "ClientDisconnected"
	EventSessionResumed         = "SessionResumed"
	EventBanCreated             = "BanCreated"
	EventBanRemoved             = "BanRemoved"
	EventMessageCreated         = "MessageCreated"
	EventMessageRemoved         = "MessageRemoved"
	EventUserStartedTyping      = "UserStartedTyping"
	EventUserStoppedTyping      = "UserStoppedTyping"
	EventRoomConnectionCreated  = "RoomConnectionCreated"
	EventRoomConnectionRemoved  = "RoomConnectionRemoved"
	EventRoomCreated            = "RoomCreated"
	EventRoomUpdated            = "RoomUpdated"
	EventRoomRemoved            = "RoomRemoved"
	EventUserUpdated            = "UserUpdated"
	EventUserCurrentRoomUpdated = "UserCurrentRoomUpdated"

	// eventUpdatePresence is the only dispatch event sent by the client.
	eventUpdatePresence = "UpdatePresence"
)

// EventNames returns the name of every event a Client emits.
func EventNames() []string {
	return []string{
		EventHello,
		EventClientDisconnected,
		EventSessionResumed,
		EventBanCreated,
		EventBanRemoved,
		EventMessageCreated,
		EventMessageRemoved,
		EventUserStartedTyping,
		EventUserStoppedTyping,
		EventRoomConnectionCreated,
		EventRoomConnectionRemoved,
		EventRoomCreated,
		EventRoomUpdated,
		EventRoomRemoved,
		EventUserUpdated,
		EventUserCurrentRoomUpdated,
	}
}

// Event is implemented by every event a Client emits.
type Event interface {
	// Name is the event name listeners register for. It does not depend on
	// the receiver's fields.
	Name() string
}

// source is embedded in every event and refers back to the emitting client.
type source struct {
	client *Client
}

// GatewayClient returns the client that emitted the event.
func (s source) GatewayClient() *Client {
	return s.client
}

// HelloEvent is the first payload of every connection.
type HelloEvent struct {
	source
	SessionID string `json:"sessionId"`
}

// ClientDisconnectedEvent is emitted when both connection loops have ended.
// Err is set when the connection ended with a fatal error.
type ClientDisconnectedEvent struct {
	source
	Err error
}

// SessionResumedEvent is emitted after a successful handshake that resumed
// SessionID, before any dispatch event of that connection.
type SessionResumedEvent struct {
	source
	SessionID string
}

// BanCreatedEvent reports a new ban.
type BanCreatedEvent struct {
	source
	Ban rest.Ban
}

// BanRemovedEvent reports a lifted ban.
type BanRemovedEvent struct {
	source
	Ban rest.Ban
}

// MessageCreatedEvent reports a new message.
type MessageCreatedEvent struct {
	source
	Message rest.Message
}

// MessageRemovedEvent reports a deleted message.
type MessageRemovedEvent struct {
	source
	Message rest.Message
}

// TypingData identifies who is typing where.
type TypingData struct {
	UserID string `json:"userId"`
	RoomID string `json:"roomId"`
}

// UserStartedTypingEvent reports that a user started typing.
type UserStartedTypingEvent struct {
	source
	TypingData
}

// UserStoppedTypingEvent reports that a user stopped typing.
type UserStoppedTypingEvent struct {
	source
	TypingData
}

// RoomConnectionData identifies a connection between two rooms.
type RoomConnectionData struct {
	RoomID   string `json:"roomId"`
	TargetID string `json:"targetId"`
}

// RoomConnectionCreatedEvent reports a new room connection.
type RoomConnectionCreatedEvent struct {
	source
	RoomConnectionData
}

// RoomConnectionRemovedEvent reports a removed room connection.
type RoomConnectionRemovedEvent struct {
	source
	RoomConnectionData
}

// RoomCreatedEvent reports a new room.
type RoomCreatedEvent struct {
	source
	Room rest.Room
}

// RoomUpdatedEvent reports a modified room.
type RoomUpdatedEvent struct {
	source
	Room rest.Room
}

// RoomRemovedEvent reports a deleted room.
type RoomRemovedEvent struct {
	source
	Room rest.Room
}

// UserUpdatedEvent reports a modified user.
type UserUpdatedEvent struct {
	source
	User rest.User
}

// UserCurrentRoomUpdatedEvent reports that a user moved between rooms.
type UserCurrentRoomUpdatedEvent struct {
	source
	UserID         string  `json:"userId"`
	PreviousRoomID *string `json:"previousRoomId,omitempty"`
	CurrentRoomID  *string `json:"currentRoomId,omitempty"`
}

func (HelloEvent) Name() string                  { return EventHello }
func (ClientDisconnectedEvent) Name() string     { return EventClientDisconnected }
func (SessionResumedEvent) Name() string         { return EventSessionResumed }
func (BanCreatedEvent) Name() string             { return EventBanCreated }
func (BanRemovedEvent) Name() string             { return EventBanRemoved }
func (MessageCreatedEvent) Name() string         { return EventMessageCreated }
func (MessageRemovedEvent) Name() string         { return EventMessageRemoved }
func (UserStartedTypingEvent) Name() string      { return EventUserStartedTyping }
func (UserStoppedTypingEvent) Name() string      { return EventUserStoppedTyping }
func (RoomConnectionCreatedEvent) Name() string  { return EventRoomConnectionCreated }
func (RoomConnectionRemovedEvent) Name() string  { return EventRoomConnectionRemoved }
func (RoomCreatedEvent) Name() string            { return EventRoomCreated }
func (RoomUpdatedEvent) Name() string            { return EventRoomUpdated }
func (RoomRemovedEvent) Name() string            { return EventRoomRemoved }
func (UserUpdatedEvent) Name() string            { return EventUserUpdated }
func (UserCurrentRoomUpdatedEvent) Name() string { return EventUserCurrentRoomUpdated }

// eventFromPayload builds the typed event for p. It returns nil for unknown
// operation and event combinations.
func (c *Client) eventFromPayload(p Payload) (Event, error) {
	src := source{client: c}

	switch p.Operation {
	case OperationHello:
		e := HelloEvent{source: src}
		if err := unmarshalData(p.Data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case OperationDispatch:
	default:
		return nil, nil
	}

	switch p.Event {
	case EventBanCreated, EventBanRemoved:
		ban, err := rest.DecodeBan(p.Data)
		if err != nil {
			return nil, err
		}
		if p.Event == EventBanCreated {
			return BanCreatedEvent{source: src, Ban: ban}, nil
		}
		return BanRemovedEvent{source: src, Ban: ban}, nil

	case EventMessageCreated, EventMessageRemoved:
		var m rest.Message
		if err := unmarshalData(p.Data, &m); err != nil {
			return nil, err
		}
		if p.Event == EventMessageCreated {
			return MessageCreatedEvent{source: src, Message: m}, nil
		}
		return MessageRemovedEvent{source: src, Message: m}, nil

	case EventUserStartedTyping, EventUserStoppedTyping:
		var d TypingData
		if err := unmarshalData(p.Data, &d); err != nil {
			return nil, err
		}
		if p.Event == EventUserStartedTyping {
			return UserStartedTypingEvent{source: src, TypingData: d}, nil
		}
		return UserStoppedTypingEvent{source: src, TypingData: d}, nil

	case EventRoomConnectionCreated, EventRoomConnectionRemoved:
		var d RoomConnectionData
		if err := unmarshalData(p.Data, &d); err != nil {
			return nil, err
		}
		if p.Event == EventRoomConnectionCreated {
			return RoomConnectionCreatedEvent{source: src, RoomConnectionData: d}, nil
		}
		return RoomConnectionRemovedEvent{source: src, RoomConnectionData: d}, nil

	case EventRoomCreated, EventRoomUpdated, EventRoomRemoved:
		var r rest.Room
		if err := unmarshalData(p.Data, &r); err != nil {
			return nil, err
		}
		switch p.Event {
		case EventRoomCreated:
			return RoomCreatedEvent{source: src, Room: r}, nil
		case EventRoomUpdated:
			return RoomUpdatedEvent{source: src, Room: r}, nil
		default:
			return RoomRemovedEvent{source: src, Room: r}, nil
		}

	case EventUserUpdated:
		var u rest.User
		if err := unmarshalData(p.Data, &u); err != nil {
			return nil, err
		}
		return UserUpdatedEvent{source: src, User: u}, nil

	case EventUserCurrentRoomUpdated:
		e := UserCurrentRoomUpdatedEvent{source: src}
		if err := unmarshalData(p.Data, &e); err != nil {
			return nil, err
		}
		return e, nil

	default:
		return nil, nil
	}
}

func unmarshalData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", ErrMalformedPayload)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}
