// Command inferctl grounds a registered scenario, trains its factor model,
// runs loopy belief propagation, and reports the target proposition's
// marginal probability.
package main

import (
	"fmt"
	"os"
)

func main() {
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "inferctl:", err)
		os.Exit(exitCodeFor(err))
	}
}
