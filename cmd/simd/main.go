// Command simd runs the Monte-Carlo reliability simulator from the command
// line: parse flags into a config.Options, run the adaptive loop with a
// progress bar, and print the result in the same layout the original tool
// used.
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
