package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kmori/wikiharvest/internal/harvest"
)

var titlesCommand = &cobra.Command{
	Use:   "titles",
	Short: "List every article title of a wiki without scraping content",
	Long: `Enumerates the articles of the target wiki and prints one title per line.
Useful for previewing what a scrape run would cover.`,
	RunE: runTitlesCmd,
}

var (
	titlesWiki      string
	titlesMode      string
	titlesMaxPages  int
	titlesUserAgent string
	titlesJSON      bool
)

func init() {
	titlesCommand.Flags().StringVarP(&titlesWiki, "wiki", "w", "", "Wiki root URL, e.g. https://wiki.example.com")
	titlesCommand.Flags().StringVarP(&titlesMode, "mode", "m", "", "Enumeration mode: auto, api or html (default auto)")
	titlesCommand.Flags().IntVar(&titlesMaxPages, "max-pages", 0, "Stop after this many pages (0 = no limit)")
	titlesCommand.Flags().StringVar(&titlesUserAgent, "user-agent", "", "Custom User-Agent header")
	titlesCommand.Flags().BoolVar(&titlesJSON, "json", false, "Print titles and URLs as JSON")

	_ = titlesCommand.MarkFlagRequired("wiki")

	rootCmd.AddCommand(titlesCommand)
}

func runTitlesCmd(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	mode, refs, err := harvest.EnumeratePages(ctx, harvest.Options{
		Wiki:      titlesWiki,
		Mode:      titlesMode,
		MaxPages:  titlesMaxPages,
		UserAgent: titlesUserAgent,
	})
	if err != nil {
		return err
	}

	if titlesJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(refs)
	}

	for _, ref := range refs {
		fmt.Println(ref.Title)
	}
	fmt.Fprintf(os.Stderr, "Found %d pages (%s mode).\n", len(refs), mode)
	return nil
}
