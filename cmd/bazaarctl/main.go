// Package main is the bazaarctl command line client.
package main

import (
	"os"

	"github.com/aristath/bazaar-tracker/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
