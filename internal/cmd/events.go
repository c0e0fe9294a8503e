package cmd

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aula-chat/aula-go/internal/gateway"
	"github.com/aula-chat/aula-go/internal/rest"
)

// eventPrinter serializes output from concurrently dispatched events.
type eventPrinter struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *eventPrinter) Println(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, line)
}

// formatEvent renders a gateway event as a single line.
func formatEvent(e gateway.Event) string {
	switch e := e.(type) {
	case gateway.HelloEvent:
		return fmt.Sprintf("👋 Hello: session %s", e.SessionID)
	case gateway.SessionResumedEvent:
		return fmt.Sprintf("🔁 Session resumed: %s", e.SessionID)
	case gateway.ClientDisconnectedEvent:
		if e.Err != nil {
			return fmt.Sprintf("🔌 Disconnected: %v", e.Err)
		}
		return "🔌 Disconnected"
	case gateway.MessageCreatedEvent:
		return fmt.Sprintf("💬 [%s] %s: %s", e.Message.RoomID, author(e.Message), content(e.Message))
	case gateway.MessageRemovedEvent:
		return fmt.Sprintf("🗑  [%s] message %s removed", e.Message.RoomID, e.Message.ID)
	case gateway.UserStartedTypingEvent:
		return fmt.Sprintf("✏️  [%s] %s started typing", e.RoomID, e.UserID)
	case gateway.UserStoppedTypingEvent:
		return fmt.Sprintf("✏️  [%s] %s stopped typing", e.RoomID, e.UserID)
	case gateway.RoomCreatedEvent:
		return fmt.Sprintf("🏠 Room created: %s (%s)", e.Room.Name, e.Room.ID)
	case gateway.RoomUpdatedEvent:
		return fmt.Sprintf("🏠 Room updated: %s (%s)", e.Room.Name, e.Room.ID)
	case gateway.RoomRemovedEvent:
		return fmt.Sprintf("🏠 Room removed: %s (%s)", e.Room.Name, e.Room.ID)
	case gateway.RoomConnectionCreatedEvent:
		return fmt.Sprintf("🔗 Rooms connected: %s -> %s", e.RoomID, e.TargetID)
	case gateway.RoomConnectionRemovedEvent:
		return fmt.Sprintf("🔗 Rooms disconnected: %s -> %s", e.RoomID, e.TargetID)
	case gateway.UserUpdatedEvent:
		return fmt.Sprintf("👤 User updated: %s (%s, %s)", e.User.DisplayName, e.User.ID, e.User.Presence)
	case gateway.UserCurrentRoomUpdatedEvent:
		return fmt.Sprintf("🚪 %s moved: %s -> %s", e.UserID, orNone(e.PreviousRoomID), orNone(e.CurrentRoomID))
	case gateway.BanCreatedEvent:
		return "🚫 Ban created: " + describeBan(e.Ban)
	case gateway.BanRemovedEvent:
		return "✅ Ban removed: " + describeBan(e.Ban)
	default:
		return e.Name()
	}
}

func author(m rest.Message) string {
	if m.AuthorID == nil {
		return "system"
	}
	return *m.AuthorID
}

func content(m rest.Message) string {
	switch {
	case m.Type == rest.MessageTypeUserJoin:
		return "joined"
	case m.Type == rest.MessageTypeUserLeave:
		return "left"
	case m.Content == nil:
		return ""
	default:
		return strings.TrimSpace(*m.Content)
	}
}

func orNone(s *string) string {
	if s == nil {
		return "none"
	}
	return *s
}

func describeBan(b rest.Ban) string {
	var desc string
	switch b := b.(type) {
	case *rest.UserBan:
		desc = "user " + b.TargetID
	case *rest.BotBan:
		desc = "bot " + b.TargetID
	default:
		desc = fmt.Sprintf("unknown ban type %d", b.Info().Type)
	}
	if reason := b.Info().Reason; reason != nil && *reason != "" {
		desc += " (" + *reason + ")"
	}
	return desc
}
