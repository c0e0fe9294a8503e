package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/reeflective/readline"
	"github.com/spf13/cobra"

	"github.com/aula-chat/aula-go/internal/gateway"
	"github.com/aula-chat/aula-go/internal/rest"
	"github.com/aula-chat/aula-go/internal/shutdown"
)

var (
	// chat-specific flags
	chatRoom string
	chatJoin bool
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat in a room",
	Long: `Start an interactive chat session in a room.

Every line you type is sent as a message. Messages and typing
notifications from other users in the room are printed as they
arrive through the gateway.

Commands:
  /quit, /exit        - Exit the chat
  /presence <state>   - Set your presence (online, away, offline)
  /typing             - Toggle your typing indicator
  /rooms              - List rooms
  /help               - Show available commands`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringVar(&chatRoom, "room", "", "Id of the room to chat in")
	chatCmd.Flags().BoolVar(&chatJoin, "join", true, "Move into the room before chatting")
	_ = chatCmd.MarkFlagRequired("room")
}

// chatSession holds the state shared by the REPL and its commands.
type chatSession struct {
	gateway *gateway.Client
	rest    *rest.Client
	room    *rest.Room
	me      *rest.User
	out     io.Writer
	names   *nameCache
	typing  bool

	printer      *eventPrinter
	disconnected chan struct{}
	closeOnce    sync.Once
	leaving      atomic.Bool
}

func runChat(cmd *cobra.Command, args []string) error {
	intents, err := cfg.Intents()
	if err != nil {
		return err
	}
	client, err := newGatewayClient(intents | gateway.IntentMessages | gateway.IntentTyping)
	if err != nil {
		return err
	}
	defer closeGateway(client)

	sm := shutdown.New()
	sm.AddCleanup(func(reason string) {
		if sm.Signaled() {
			fmt.Println("\n\n👋 Shutting down...")
		}
	})
	sm.Start()
	defer sm.Shutdown("chat ended")
	ctx := sm.Context()

	restClient := client.Rest()
	room, err := restClient.GetRoom(ctx, chatRoom)
	if err != nil {
		return err
	}
	if room == nil {
		return fmt.Errorf("room %s not found", chatRoom)
	}
	me, err := restClient.GetCurrentUser(ctx)
	if err != nil {
		return err
	}
	if chatJoin && (me.CurrentRoomID == nil || *me.CurrentRoomID != room.ID) {
		if err := restClient.SetCurrentUserRoom(ctx, room.ID); err != nil {
			return fmt.Errorf("failed to join room: %w", err)
		}
	}

	s := &chatSession{
		gateway: client,
		rest:    restClient,
		room:    room,
		me:      me,
		out:     os.Stdout,
		names:   newNameCache(restClient),

		printer:      &eventPrinter{w: os.Stdout},
		disconnected: make(chan struct{}),
	}
	s.names.put(me.ID, me.DisplayName)

	disconnected, err := s.listen()
	if err != nil {
		return err
	}

	if err := client.Connect(ctx, ""); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err == nil {
			_ = client.WaitForDisconnect(context.Background())
		}
	}()

	return s.runLoop(ctx, disconnected)
}

// listen registers the gateway listeners. The returned channel is closed when
// the connection ends.
func (s *chatSession) listen() (<-chan struct{}, error) {
	if _, err := gateway.Listen(s.gateway, func(ctx context.Context, e gateway.MessageCreatedEvent) error {
		if e.Message.RoomID != s.room.ID {
			return nil
		}
		name := "system"
		if e.Message.AuthorID != nil {
			name = s.names.lookup(ctx, *e.Message.AuthorID)
		}
		s.printer.Println(fmt.Sprintf("%s: %s", name, content(e.Message)))
		return nil
	}); err != nil {
		return nil, err
	}

	if _, err := gateway.Listen(s.gateway, func(ctx context.Context, e gateway.UserStartedTypingEvent) error {
		if e.RoomID != s.room.ID || e.UserID == s.me.ID {
			return nil
		}
		s.printer.Println(fmt.Sprintf("✏️  %s is typing...", s.names.lookup(ctx, e.UserID)))
		return nil
	}); err != nil {
		return nil, err
	}

	if _, err := gateway.Listen(s.gateway, func(_ context.Context, e gateway.ClientDisconnectedEvent) error {
		s.onDisconnected(e)
		return nil
	}); err != nil {
		return nil, err
	}
	return s.disconnected, nil
}

// onDisconnected wakes the loop and tells the user right away, unless the
// chat is already ending.
func (s *chatSession) onDisconnected(e gateway.ClientDisconnectedEvent) {
	s.closeOnce.Do(func() { close(s.disconnected) })
	if !s.leaving.Load() {
		s.printer.Println(disconnectNotice(e))
	}
}

func (s *chatSession) runLoop(ctx context.Context, disconnected <-chan struct{}) error {
	defer s.leaving.Store(true)

	rl := readline.NewShell()
	rl.Prompt.Primary(func() string { return s.room.Name + "> " })

	history := readline.NewInMemoryHistory()
	rl.History.Add("default", history)

	rl.Completer = func(line []rune, cursor int) readline.Completions {
		return completeInput(string(line), cursor)
	}

	fmt.Fprintf(s.out, "\n💬 Chatting in %s. Type a message and press Enter. Use /help for commands. Tab completes commands.\n", s.room.Name)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-disconnected:
			return fmt.Errorf("connection closed")
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
				fmt.Fprintln(s.out, "\n👋 Goodbye!")
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := s.handleCommand(ctx, line); quit {
				fmt.Fprintln(s.out, "👋 Goodbye!")
				return nil
			}
			continue
		}

		if err := s.send(ctx, line); err != nil {
			fmt.Fprintf(s.out, "❌ Error: %v\n", err)
		}
	}
}

// send posts line to the room and clears the typing indicator.
func (s *chatSession) send(ctx context.Context, line string) error {
	if _, err := s.rest.SendMessage(ctx, s.room.ID, rest.SendMessageRequest{
		Type:    rest.MessageTypeStandard,
		Content: line,
	}); err != nil {
		return err
	}
	if s.typing {
		s.typing = false
		return s.rest.StopTyping(ctx, s.room.ID)
	}
	return nil
}

// slashCommands defines the available slash commands with their descriptions.
var slashCommands = []struct {
	name        string
	description string
}{
	{"/help", "Show available commands"},
	{"/h", "Show available commands (alias)"},
	{"/?", "Show available commands (alias)"},
	{"/quit", "Exit the chat"},
	{"/exit", "Exit the chat (alias)"},
	{"/q", "Exit the chat (alias)"},
	{"/presence", "Set your presence"},
	{"/typing", "Toggle your typing indicator"},
	{"/rooms", "List rooms"},
}

var presenceStates = []struct {
	name        string
	description string
}{
	{"online", "Visible and available"},
	{"away", "Visible but away"},
	{"offline", "Appear offline"},
}

// handleCommand runs a slash command. It reports whether the chat should end.
func (s *chatSession) handleCommand(ctx context.Context, line string) bool {
	parts := strings.Fields(strings.TrimPrefix(line, "/"))
	if len(parts) == 0 {
		return false
	}

	switch strings.ToLower(parts[0]) {
	case "quit", "exit", "q":
		return true
	case "help", "h", "?":
		printHelp(s.out)
	case "presence":
		if len(parts) != 2 {
			fmt.Fprintln(s.out, "❓ Usage: /presence <online|away|offline>")
			break
		}
		presence, ok := rest.ParsePresence(strings.ToLower(parts[1]))
		if !ok {
			fmt.Fprintf(s.out, "❓ Unknown presence: %s\n", parts[1])
			break
		}
		if err := s.gateway.UpdatePresence(ctx, presence); err != nil {
			fmt.Fprintf(s.out, "❌ Presence error: %v\n", err)
			break
		}
		fmt.Fprintf(s.out, "✅ Presence set to %s\n", presence)
	case "typing":
		var err error
		if s.typing {
			err = s.rest.StopTyping(ctx, s.room.ID)
		} else {
			err = s.rest.StartTyping(ctx, s.room.ID)
		}
		if err != nil {
			fmt.Fprintf(s.out, "❌ Typing error: %v\n", err)
			break
		}
		s.typing = !s.typing
		if s.typing {
			fmt.Fprintln(s.out, "✏️  Typing indicator on")
		} else {
			fmt.Fprintln(s.out, "✏️  Typing indicator off")
		}
	case "rooms":
		rooms, err := s.rest.GetRooms(ctx, rest.PageQuery{})
		if err != nil {
			fmt.Fprintf(s.out, "❌ Rooms error: %v\n", err)
			break
		}
		for _, room := range rooms {
			marker := " "
			if room.ID == s.room.ID {
				marker = "*"
			}
			fmt.Fprintf(s.out, "%s %s (%s)\n", marker, room.Name, room.ID)
		}
	default:
		fmt.Fprintf(s.out, "❓ Unknown command: %s (use /help for available commands)\n", parts[0])
	}
	return false
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, `
Available commands:
  /quit, /exit, /q    - Exit the chat
  /presence <state>   - Set your presence (online, away, offline)
  /typing             - Toggle your typing indicator
  /rooms              - List rooms
  /help, /h, /?       - Show this help message

Tips:
  - Type your message and press Enter to send it to the room
  - Use Ctrl+C to exit gracefully
  - Use up/down arrows for command history
  - Use Tab to autocomplete slash commands`)
}

// completeInput provides tab completion for the chat input.
// It completes slash commands, and presence states after /presence.
func completeInput(line string, cursor int) readline.Completions {
	if cursor > len(line) {
		cursor = len(line)
	}
	text := line[:cursor]

	if !strings.HasPrefix(text, "/") {
		return readline.Completions{}
	}

	if arg, ok := strings.CutPrefix(text, "/presence "); ok {
		pairs := presenceCompletions(arg)
		if len(pairs) == 0 {
			return readline.Completions{}
		}
		return readline.CompleteValuesDescribed(pairs...).Tag("presence")
	}

	pairs := commandCompletions(text)
	if len(pairs) == 0 {
		return readline.Completions{}
	}
	return readline.CompleteValuesDescribed(pairs...).
		Tag("commands").
		NoSpace('/') // Don't add space after completing partial command
}

// commandCompletions returns value, description pairs for the slash commands
// starting with text.
func commandCompletions(text string) []string {
	var pairs []string
	for _, cmd := range slashCommands {
		if strings.HasPrefix(cmd.name, text) {
			pairs = append(pairs, cmd.name, cmd.description)
		}
	}
	return pairs
}

// presenceCompletions returns value, description pairs for the presence
// states starting with arg.
func presenceCompletions(arg string) []string {
	arg = strings.ToLower(strings.TrimSpace(arg))
	var pairs []string
	for _, state := range presenceStates {
		if strings.HasPrefix(state.name, arg) {
			pairs = append(pairs, state.name, state.description)
		}
	}
	return pairs
}

// disconnectNotice is shown while the prompt may still be waiting for input.
func disconnectNotice(e gateway.ClientDisconnectedEvent) string {
	if e.Err != nil {
		return fmt.Sprintf("🔌 Connection lost: %v. Press Enter to exit.", e.Err)
	}
	return "🔌 Connection closed. Press Enter to exit."
}

// nameCache resolves user ids to display names.
type nameCache struct {
	rest *rest.Client

	mu    sync.Mutex
	names map[string]string
}

func newNameCache(r *rest.Client) *nameCache {
	return &nameCache{rest: r, names: make(map[string]string)}
}

func (c *nameCache) put(id, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names[id] = name
}

// lookup returns the display name for id, falling back to id itself.
func (c *nameCache) lookup(ctx context.Context, id string) string {
	c.mu.Lock()
	name, ok := c.names[id]
	c.mu.Unlock()
	if ok {
		return name
	}

	user, err := c.rest.GetUser(ctx, id)
	if err != nil || user == nil {
		return id
	}
	c.put(id, user.DisplayName)
	return user.DisplayName
}
