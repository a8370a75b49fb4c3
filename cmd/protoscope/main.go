// Package main provides the entry point for the protoscope CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/protoscope/cmd/protoscope/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
