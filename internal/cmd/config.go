package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	embeddedconfig "github.com/aula-chat/aula-go/config"
)

var (
	configOutputPath string
	configForce      bool
)

// configCmd represents the config parent command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage aula configuration",
	Long: `Manage aula configuration files.

Use the subcommands to create or manage configuration files.`,
}

// configCreateCmd represents the config create subcommand
var configCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a default configuration file",
	Long: `Create a default configuration file at ~/.aularc.

This command writes the embedded default configuration (config.default.yaml)
to the specified directory. Fill in server.base_uri and server.token before
connecting.

Examples:
  aula config create                    # Create ~/.aularc
  aula config create --output /path/to  # Create /path/to/.aularc
  aula config create --force            # Overwrite existing file`,
	Args: cobra.NoArgs,
	RunE: runConfigCreate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configCreateCmd)

	configCreateCmd.Flags().StringVarP(&configOutputPath, "output", "o", "",
		"Directory to write the config file (default: $HOME)")
	configCreateCmd.Flags().BoolVarP(&configForce, "force", "f", false,
		"Overwrite existing configuration file without prompting")
}

func runConfigCreate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	outputDir := configOutputPath
	if outputDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		outputDir = homeDir
	}

	configPath := filepath.Join(outputDir, ".aularc")

	if _, err := os.Stat(configPath); err == nil && !configForce {
		fmt.Fprintf(out, "⚠️  Configuration file already exists: %s\n", configPath)
		fmt.Fprintln(out, "Use --force to overwrite the existing file.")
		return nil
	}

	// The file will hold a bearer token.
	if err := os.WriteFile(configPath, embeddedconfig.DefaultConfigYAML, 0o600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	fmt.Fprintf(out, "✅ Configuration file created: %s\n", configPath)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  1. Set server.base_uri to your Aula server")
	fmt.Fprintln(out, "  2. Set server.token (or export AULA_TOKEN)")
	fmt.Fprintln(out, "  3. Run 'aula gateway' to stream events")

	return nil
}
