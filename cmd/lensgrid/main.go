// Package main provides the lensgrid command.
package main

import (
	"os"

	"github.com/leapstack-labs/lensgrid/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
