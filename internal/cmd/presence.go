package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aula-chat/aula-go/internal/gateway"
	"github.com/aula-chat/aula-go/internal/rest"
)

// presenceCmd represents the presence command
var presenceCmd = &cobra.Command{
	Use:       "presence <online|away|offline>",
	Short:     "Set your presence",
	Long:      `Connect to the gateway, set your presence and disconnect.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"online", "away", "offline"},
	RunE:      runPresence,
}

func init() {
	rootCmd.AddCommand(presenceCmd)
}

func runPresence(cmd *cobra.Command, args []string) error {
	presence, ok := rest.ParsePresence(args[0])
	if !ok {
		return fmt.Errorf("invalid presence %q (want online, away or offline)", args[0])
	}

	intents, err := cfg.Intents()
	if err != nil {
		return err
	}
	client, err := newGatewayClient(intents)
	if err != nil {
		return err
	}
	defer closeGateway(client)

	ctx := context.Background()
	if err := client.Connect(ctx, ""); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	if err := client.UpdatePresence(ctx, presence); err != nil {
		return fmt.Errorf("failed to update presence: %w", err)
	}
	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	if err := client.WaitForDisconnect(ctx); err != nil && !errors.Is(err, gateway.ErrNotConnected) {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✅ Presence set to %s\n", presence)
	return nil
}
