// Package main is the entry point for the aula CLI application.
package main

import (
	"fmt"
	"os"

	"github.com/aula-chat/aula-go/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
