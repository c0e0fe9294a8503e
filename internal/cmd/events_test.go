package cmd

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/aula-chat/aula-go/internal/gateway"
	"github.com/aula-chat/aula-go/internal/rest"
)

func strPtr(s string) *string { return &s }

func TestFormatEvent(t *testing.T) {
	tests := []struct {
		name  string
		event gateway.Event
		want  string
	}{
		{
			name:  "hello",
			event: gateway.HelloEvent{SessionID: "s-1"},
			want:  "👋 Hello: session s-1",
		},
		{
			name:  "resumed",
			event: gateway.SessionResumedEvent{SessionID: "s-1"},
			want:  "🔁 Session resumed: s-1",
		},
		{
			name:  "clean disconnect",
			event: gateway.ClientDisconnectedEvent{},
			want:  "🔌 Disconnected",
		},
		{
			name:  "failed disconnect",
			event: gateway.ClientDisconnectedEvent{Err: errors.New("boom")},
			want:  "🔌 Disconnected: boom",
		},
		{
			name: "message",
			event: gateway.MessageCreatedEvent{Message: rest.Message{
				RoomID:   "r1",
				AuthorID: strPtr("u1"),
				Content:  strPtr("  hi there \n"),
			}},
			want: "💬 [r1] u1: hi there",
		},
		{
			name: "join message",
			event: gateway.MessageCreatedEvent{Message: rest.Message{
				RoomID: "r1",
				Type:   rest.MessageTypeUserJoin,
			}},
			want: "💬 [r1] system: joined",
		},
		{
			name:  "message removed",
			event: gateway.MessageRemovedEvent{Message: rest.Message{ID: "m1", RoomID: "r1"}},
			want:  "🗑  [r1] message m1 removed",
		},
		{
			name:  "typing",
			event: gateway.UserStartedTypingEvent{TypingData: gateway.TypingData{UserID: "u1", RoomID: "r1"}},
			want:  "✏️  [r1] u1 started typing",
		},
		{
			name:  "room connection",
			event: gateway.RoomConnectionCreatedEvent{RoomConnectionData: gateway.RoomConnectionData{RoomID: "r1", TargetID: "r2"}},
			want:  "🔗 Rooms connected: r1 -> r2",
		},
		{
			name:  "user updated",
			event: gateway.UserUpdatedEvent{User: rest.User{ID: "u1", DisplayName: "Ada", Presence: rest.PresenceAway}},
			want:  "👤 User updated: Ada (u1, away)",
		},
		{
			name:  "room move",
			event: gateway.UserCurrentRoomUpdatedEvent{UserID: "u1", CurrentRoomID: strPtr("r2")},
			want:  "🚪 u1 moved: none -> r2",
		},
		{
			name:  "user ban",
			event: gateway.BanCreatedEvent{Ban: &rest.UserBan{TargetID: "u9", BanInfo: rest.BanInfo{Reason: strPtr("spam")}}},
			want:  "🚫 Ban created: user u9 (spam)",
		},
		{
			name:  "bot ban removed",
			event: gateway.BanRemovedEvent{Ban: &rest.BotBan{TargetID: "b1"}},
			want:  "✅ Ban removed: bot b1",
		},
		{
			name:  "unknown ban",
			event: gateway.BanCreatedEvent{Ban: &rest.UnknownBan{BanInfo: rest.BanInfo{Type: 7}}},
			want:  "🚫 Ban created: unknown ban type 7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatEvent(tt.event); got != tt.want {
				t.Errorf("formatEvent() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEventPrinter_ConcurrentLines(t *testing.T) {
	var buf bytes.Buffer
	p := &eventPrinter{w: &buf}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Println("line")
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 20 {
		t.Fatalf("got %d lines, want 20", len(lines))
	}
	for _, l := range lines {
		if l != "line" {
			t.Errorf("interleaved output: %q", l)
		}
	}
}
