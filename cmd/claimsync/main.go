// Package main provides the entry point for the claimsync CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/claimsync/cmd/claimsync/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
