// Package main is the entry point for the refinery CLI.
//
// Usage:
//
//	refinery [flags] <command> [args]
//
// Commands:
//
//	run      - Run a pipeline (source -> filters -> sinks) and/or serve its filters
//	apply    - Apply a pipeline's filters to JSON lines read from a file or stdin
//	version  - Show version information
package main

import (
	"fmt"
	"os"

	"refinery/cmd/refinery/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
