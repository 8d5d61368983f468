// Package main provides the leapsort command.
package main

import (
	"os"

	"github.com/leapstack-labs/leapsort/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
