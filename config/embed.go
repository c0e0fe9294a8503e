// Package config provides the embedded default configuration for aula.
package config

import (
	_ "embed"
)

// DefaultConfigYAML contains the embedded default configuration in YAML format.
// It is used when no configuration file exists and by `aula config create`.
//
//go:embed config.default.yaml
var DefaultConfigYAML []byte
