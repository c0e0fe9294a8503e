package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aula-chat/aula-go/internal/rest"
	"github.com/aula-chat/aula-go/internal/secrets"
)

var (
	loginUserName string
	loginPassword string
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and save the token",
	Long: `Exchange a user name and password for a bearer token.

On macOS the token is saved in the Keychain for the configured server
and used whenever server.token is not set. On other platforms the
token is printed so it can be put in the configuration file or in
AULA_TOKEN.

The password is read from standard input when --password is not given.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

// logoutCmd represents the logout command
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved token",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)

	loginCmd.Flags().StringVarP(&loginUserName, "username", "u", "", "User name")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Password (default: read from stdin)")
	_ = loginCmd.MarkFlagRequired("username")
}

func runLogin(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	password := loginPassword
	if password == "" {
		fmt.Fprint(out, "Password: ")
		var err error
		if password, err = readLine(cmd.InOrStdin()); err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
	}

	client, err := newRestClient()
	if err != nil {
		return err
	}
	defer client.Dispose()

	resp, err := client.LogIn(context.Background(), rest.LogInRequest{
		UserName: loginUserName,
		Password: password,
	})
	if err != nil {
		return err
	}

	return storeToken(out, secrets.Default(), cfg.Server.BaseURI, resp.Token)
}

// storeToken saves token for baseURI, or prints it when the platform has no
// secret store.
func storeToken(out io.Writer, store secrets.Store, baseURI, token string) error {
	err := secrets.SaveToken(store, baseURI, token)
	switch {
	case errors.Is(err, secrets.ErrNotSupported):
		fmt.Fprintln(out, "✅ Logged in. No secret store on this platform, set the token yourself:")
		fmt.Fprintf(out, "  export AULA_TOKEN=%s\n", token)
		return nil
	case err != nil:
		return fmt.Errorf("failed to save token: %w", err)
	default:
		fmt.Fprintf(out, "✅ Logged in, token saved for %s\n", baseURI)
		return nil
	}
}

func runLogout(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if cfg.Server.BaseURI == "" {
		return fmt.Errorf("server.base_uri is not configured")
	}

	err := secrets.DeleteToken(secrets.Default(), cfg.Server.BaseURI)
	switch {
	case errors.Is(err, secrets.ErrNotFound), errors.Is(err, secrets.ErrNotSupported):
		fmt.Fprintf(out, "No saved token for %s\n", cfg.Server.BaseURI)
		return nil
	case err != nil:
		return err
	default:
		fmt.Fprintf(out, "✅ Token for %s removed\n", cfg.Server.BaseURI)
		return nil
	}
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
