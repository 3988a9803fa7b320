// Package main provides the entry point for the chatwire CLI.
package main

import (
	"fmt"
	"os"

	"github.com/chatwire-ai/chatwire/cmd/chatwire/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
