// Package main provides the wikiharvest command line entry point.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "wikiharvest",
	Short: "Scrape a wiki into a single text collection",
	Long:  "wikiharvest enumerates every article of a MediaWiki-style wiki, extracts the readable text, and serializes the result into one JSON collection suitable for knowledge-base import.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
