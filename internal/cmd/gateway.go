package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aula-chat/aula-go/internal/appdir"
	"github.com/aula-chat/aula-go/internal/gateway"
	"github.com/aula-chat/aula-go/internal/logging"
	"github.com/aula-chat/aula-go/internal/rest"
	"github.com/aula-chat/aula-go/internal/shutdown"
)

var (
	gatewayResume    bool
	gatewaySessionID string
	gatewayIntents   string
	gatewayPresence  string
)

// gatewayCmd represents the gateway command
var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Connect to the gateway and print every event",
	Long: `Connect to the Aula gateway and print every event as it arrives.

The session id announced by the server is saved so that a later run
can resume it with --resume. Press Ctrl+C to disconnect.

Examples:
  aula gateway
  aula gateway --resume
  aula gateway --intents messages,typing --presence away`,
	Args: cobra.NoArgs,
	RunE: runGateway,
}

func init() {
	rootCmd.AddCommand(gatewayCmd)

	gatewayCmd.Flags().BoolVar(&gatewayResume, "resume", false, "Resume the last saved session")
	gatewayCmd.Flags().StringVar(&gatewaySessionID, "session-id", "", "Resume the given session id")
	gatewayCmd.Flags().StringVar(&gatewayIntents, "intents", "", "Events to subscribe to: all, a number, or users,rooms,messages,typing,moderation (default: from config)")
	gatewayCmd.Flags().StringVar(&gatewayPresence, "presence", "", "Presence to set once connected: online, away, offline")
}

func runGateway(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	logger := logging.CLI()

	intents, err := resolveIntents(gatewayIntents)
	if err != nil {
		return err
	}

	var presence *rest.Presence
	if gatewayPresence != "" {
		p, ok := rest.ParsePresence(gatewayPresence)
		if !ok {
			return fmt.Errorf("invalid presence %q (want online, away or offline)", gatewayPresence)
		}
		presence = &p
	}

	sessionID, err := resumeSessionID(gatewaySessionID, gatewayResume, cfg.Server.BaseURI)
	if err != nil {
		return err
	}

	client, err := newGatewayClient(intents)
	if err != nil {
		return err
	}
	defer closeGateway(client)

	printer := &eventPrinter{w: out}
	for _, name := range gateway.EventNames() {
		if _, err := client.On(name, func(_ context.Context, payload any) error {
			if e, ok := payload.(gateway.Event); ok {
				printer.Println(formatEvent(e))
			}
			return nil
		}); err != nil {
			return err
		}
	}
	if _, err := gateway.Listen(client, func(_ context.Context, e gateway.HelloEvent) error {
		if err := appdir.SaveSession(appdir.Session{
			ID:        e.SessionID,
			BaseURI:   cfg.Server.BaseURI,
			UpdatedAt: time.Now(),
		}); err != nil {
			logger.Warn("Failed to save gateway session", "error", err)
		}
		return nil
	}); err != nil {
		return err
	}

	sm := shutdown.New()
	sm.AddCleanup(func(reason string) {
		if sm.Signaled() {
			fmt.Fprintln(out, "\n👋 Disconnecting...")
		}
		disconnectQuietly(client)
	})
	sm.Start()
	defer sm.Shutdown("gateway command finished")
	ctx := sm.Context()

	if sessionID != "" {
		fmt.Fprintf(out, "🚀 Resuming session %s on %s\n", sessionID, cfg.Server.BaseURI)
	} else {
		fmt.Fprintf(out, "🚀 Connecting to %s\n", cfg.Server.BaseURI)
	}
	if err := client.Connect(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	if presence != nil {
		if err := client.UpdatePresence(ctx, *presence); err != nil {
			logger.Warn("Failed to update presence", "error", err)
		}
	}

	return waitForDisconnect(client)
}

// disconnectQuietly closes an open connection, logging unexpected failures.
func disconnectQuietly(client *gateway.Client) {
	if err := client.Disconnect(context.Background()); err != nil && !errors.Is(err, gateway.ErrNotConnected) && !errors.Is(err, gateway.ErrDisposed) {
		logging.CLI().Debug("Disconnect failed", "error", err)
	}
}

// waitForDisconnect blocks until the connection ends. A connection that was
// never established or already torn down is not an error.
func waitForDisconnect(client *gateway.Client) error {
	err := client.WaitForDisconnect(context.Background())
	if errors.Is(err, gateway.ErrNotConnected) || errors.Is(err, gateway.ErrDisposed) {
		return nil
	}
	return err
}

// resumeSessionID picks the session to resume: an explicit id wins, then the
// saved session when resume is set and it belongs to baseURI.
func resumeSessionID(explicit string, resume bool, baseURI string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if !resume {
		return "", nil
	}

	saved, err := appdir.LoadSession()
	switch {
	case errors.Is(err, appdir.ErrNoSession):
		logging.CLI().Info("No saved session, starting a new one")
		return "", nil
	case err != nil:
		return "", err
	case saved.BaseURI != baseURI:
		logging.CLI().Info("Saved session belongs to another server, starting a new one", "saved_base_uri", saved.BaseURI)
		return "", nil
	default:
		return saved.ID, nil
	}
}
