package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "export",
	Short: "Export BioC papers as section trees and triplets",
	Long: `export fetches BioC JSON exports for a list of PMC ids, rebuilds the section
hierarchy of each paper and writes the grouped trees (and optionally the flattened
triplets) to disk or S3. Configuration is read from the environment (.env supported).`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
