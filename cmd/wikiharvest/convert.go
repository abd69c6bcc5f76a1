package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kmori/wikiharvest/internal/output"
)

var convertCommand = &cobra.Command{
	Use:   "convert",
	Short: "Split a scraped collection into one text document per page",
	Long: `Reads a collection produced by the scrape command and writes one plain-text
document per page, named after the sanitized page title. Pages with no text
are skipped.`,
	RunE: runConvertCmd,
}

var (
	convertInput  string
	convertOutDir string
)

func init() {
	convertCommand.Flags().StringVarP(&convertInput, "input", "i", "wiki_content.json", "Path to the scraped collection JSON")
	convertCommand.Flags().StringVarP(&convertOutDir, "out-dir", "d", "wiki_documents", "Directory to write the documents into")

	rootCmd.AddCommand(convertCommand)
}

func runConvertCmd(_ *cobra.Command, _ []string) error {
	col, err := output.Load(convertInput)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	result, err := output.ConvertToDocuments(col, convertOutDir)
	if err != nil {
		return err
	}

	fmt.Printf("Converted %d pages to %s (%d skipped).\n", result.Converted, convertOutDir, result.Skipped)
	return nil
}
