// enhance is the command line entry point for the AAOIFI standard
// enhancement pipeline.
//
// Usage:
//
//	enhance --input standard.md --output-dir out
//	enhance --input standard.md --corpus-dir refs --max-retries 3
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
