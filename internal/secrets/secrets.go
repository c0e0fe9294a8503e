// Package secrets stores bearer tokens in the platform credential store.
// On macOS tokens live in the system Keychain. Other platforms have no store
// and callers fall back to the configuration file or AULA_TOKEN.
package secrets

import (
	"errors"
	"strings"
)

// ServiceName is the keychain service that holds Aula credentials.
const ServiceName = "Aula"

// ErrNotFound is returned when no secret is stored for an account.
var ErrNotFound = errors.New("credential not found")

// ErrNotSupported is returned when the platform has no secret store.
var ErrNotSupported = errors.New("secret store not supported on this platform")

// Store holds secrets keyed by account. Implementations are safe for
// concurrent use.
type Store interface {
	// Get returns the secret for account, or ErrNotFound.
	Get(account string) (string, error)
	// Set stores secret for account, replacing any previous value.
	Set(account, secret string) error
	// Delete removes the secret for account, or returns ErrNotFound.
	Delete(account string) error
	// IsSupported reports whether the store is functional.
	IsSupported() bool
}

// platformStore is set by the platform specific init.
var platformStore Store

// Default returns the store for the current platform. It never returns nil.
func Default() Store {
	if platformStore == nil {
		return NoopStore{}
	}
	return platformStore
}

// TokenAccount returns the account name a server's token is stored under.
func TokenAccount(baseURI string) string {
	return "token:" + strings.TrimRight(baseURI, "/")
}

// LoadToken returns the token saved for baseURI.
func LoadToken(s Store, baseURI string) (string, error) {
	return s.Get(TokenAccount(baseURI))
}

// SaveToken saves token for baseURI.
func SaveToken(s Store, baseURI, token string) error {
	if token == "" {
		return errors.New("secrets: empty token")
	}
	return s.Set(TokenAccount(baseURI), token)
}

// DeleteToken forgets the token saved for baseURI.
func DeleteToken(s Store, baseURI string) error {
	return s.Delete(TokenAccount(baseURI))
}
