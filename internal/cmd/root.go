// Package cmd provides the CLI commands for aula.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aula-chat/aula-go/internal/config"
	"github.com/aula-chat/aula-go/internal/gateway"
	"github.com/aula-chat/aula-go/internal/logging"
	"github.com/aula-chat/aula-go/internal/pipeline"
	"github.com/aula-chat/aula-go/internal/rest"
	"github.com/aula-chat/aula-go/internal/secrets"
)

var (
	// Global flags
	configPath    string
	debug         bool
	logLevel      string // --log-level flag (debug, info, warn, error)
	logFile       string
	logComponents string

	// Loaded configuration
	cfg *config.Config
	// configResult contains metadata about where config was loaded from
	configResult *config.LoadResult
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "aula",
	Short: "aula - a command-line client for Aula chat servers",
	Long: `aula talks to an Aula chat server through its REST API and its
real-time gateway.

It can log in, stream gateway events, set your presence, list rooms,
and run an interactive chat session in a room.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for help and completion commands, and for
		// config create so a broken file can be replaced.
		if cmd.Name() == "help" || cmd.Name() == "completion" || cmd == configCreateCmd {
			return nil
		}

		var err error
		configResult, err = config.LoadWithFallback(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = configResult.Config

		if err := logging.Initialize(buildLoggingConfig(cfg, logLevel, debug, logFile, logComponents)); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		logging.CLI().Debug("Configuration loaded",
			"source", configResult.Source.String(),
			"path", configResult.SourcePath)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Close()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file path (default: $AULARC or ~/.aularc)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging (shorthand for --log-level=debug)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default: from config)")
	rootCmd.PersistentFlags().StringVarP(&logFile, "logfile", "l", "", "Log file path (logs are also written to console)")
	rootCmd.PersistentFlags().StringVar(&logComponents, "log-components", "", "Comma-separated list of components to log (rest, ratelimit, gateway, cli, shutdown). Empty means all components.")
}

// buildLoggingConfig merges the logging flags over the configuration.
// Priority: --log-level flag > --debug flag > config file.
func buildLoggingConfig(c *config.Config, level string, debug bool, file, components string) logging.Config {
	lc := c.LoggingOptions()

	switch {
	case level != "":
		lc.Level = strings.ToLower(level)
	case debug:
		lc.Level = "debug"
	}

	if file != "" {
		fileLog := logging.DefaultFileLogConfig()
		if lc.FileLog != nil {
			fileLog = *lc.FileLog
		}
		fileLog.Path = file
		lc.FileLog = &fileLog
	}

	for _, comp := range strings.Split(components, ",") {
		comp = strings.TrimSpace(comp)
		if comp != "" {
			lc.Components = append(lc.Components, comp)
		}
	}
	return lc
}

// newRestClient builds a REST client from the loaded configuration.
func newRestClient() (*rest.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	base, err := cfg.BaseURL()
	if err != nil {
		return nil, err
	}

	client := rest.New(append(cfg.RestOptions(), rest.WithLogger(logging.Rest()))...)
	if err := client.SetBaseURI(base); err != nil {
		client.Dispose()
		return nil, err
	}
	if err := client.SetToken(resolveToken(secrets.Default(), cfg)); err != nil {
		client.Dispose()
		return nil, err
	}

	logger := logging.CLI()
	if _, err := client.OnRequestDeferred(func(_ context.Context, e pipeline.RequestDeferredEvent) error {
		logger.Info("Request deferred by rate limit", "url", e.URL.Redacted(), "resets_at", e.ResetAt)
		return nil
	}); err != nil {
		client.Dispose()
		return nil, err
	}
	if _, err := client.OnRateLimited(func(_ context.Context, e pipeline.RateLimitedEvent) error {
		logger.Warn("Rate limited by server", "resets_at", e.ResetAt)
		return nil
	}); err != nil {
		client.Dispose()
		return nil, err
	}
	return client, nil
}

// newGatewayClient builds a disconnected gateway client sharing a REST client
// built from the configuration. Release it with closeGateway.
func newGatewayClient(intents gateway.Intents) (*gateway.Client, error) {
	restClient, err := newRestClient()
	if err != nil {
		return nil, err
	}
	base, err := cfg.BaseURL()
	if err != nil {
		restClient.Dispose()
		return nil, err
	}

	client := gateway.New(gateway.WithRestClient(restClient), gateway.WithLogger(logging.Gateway()))
	if err := client.SetBaseURI(base); err != nil {
		closeGateway(client)
		return nil, err
	}
	if err := client.SetToken(resolveToken(secrets.Default(), cfg)); err != nil {
		closeGateway(client)
		return nil, err
	}
	if err := client.SetIntents(intents); err != nil {
		closeGateway(client)
		return nil, err
	}
	return client, nil
}

// resolveToken returns the configured token, falling back to the token saved
// by "aula login" for the configured server.
func resolveToken(store secrets.Store, c *config.Config) string {
	if c.Server.Token != "" {
		return c.Server.Token
	}
	token, err := secrets.LoadToken(store, c.Server.BaseURI)
	if err != nil {
		if !errors.Is(err, secrets.ErrNotFound) && !errors.Is(err, secrets.ErrNotSupported) {
			logging.CLI().Warn("Failed to read saved token", "error", err)
		}
		return ""
	}
	return token
}

// closeGateway disposes a client from newGatewayClient and its REST client.
func closeGateway(client *gateway.Client) {
	client.Dispose()
	client.Rest().Dispose()
}

// resolveIntents returns the --intents flag value, or the configured intents.
func resolveIntents(flag string) (gateway.Intents, error) {
	if flag == "" {
		return cfg.Intents()
	}
	intents, ok := gateway.ParseIntents(flag)
	if !ok {
		return 0, fmt.Errorf("invalid intents %q", flag)
	}
	return intents, nil
}
