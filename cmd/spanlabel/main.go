// Package main provides the entry point for the spanlabel CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/spanlabel/cmd/spanlabel/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
