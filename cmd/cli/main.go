// Package main is the entry point for the driftscope CLI binary.
package main

import (
	"os"

	cli "driftscope/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
