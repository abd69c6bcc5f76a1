package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kmori/wikiharvest/internal/config"
	"github.com/kmori/wikiharvest/internal/harvest"
)

var scrapeCommand = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape all articles of a wiki into one JSON collection",
	Long: `Enumerates every article of the target wiki, fetches each page, extracts its
readable text, and writes a single JSON collection.

Enumeration prefers the MediaWiki action API and falls back to walking the
Special:AllPages index when no API is available (see --mode).

Configuration can be loaded from a JSON file using --config. Command-line
arguments override config file values.`,
	RunE: runScrapeCmd,
}

var (
	scrapeConfigPath  string
	scrapeWiki        string
	scrapeOutput      string
	scrapeMode        string
	scrapeDelay       float64
	scrapeWorkers     int
	scrapeCheckpoint  int
	scrapeMaxPages    int
	scrapeUserAgent   string
	scrapeEmpty       string
	scrapeKeepRaw     bool
	scrapeUseBrowser  bool
	scrapeVerbose     bool
	scrapeDatabaseURL string
)

func init() {
	// Config file flag (processed first)
	scrapeCommand.Flags().StringVar(&scrapeConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	scrapeCommand.Flags().StringVarP(&scrapeWiki, "wiki", "w", "", "Wiki root URL, e.g. https://wiki.example.com")
	scrapeCommand.Flags().StringVarP(&scrapeOutput, "output", "o", "", "Output JSON path (default wiki_content.json)")
	scrapeCommand.Flags().StringVarP(&scrapeMode, "mode", "m", "", "Enumeration mode: auto, api or html (default auto)")
	scrapeCommand.Flags().Float64Var(&scrapeDelay, "delay", 0, "Seconds to pause between page requests (default 1.5)")
	scrapeCommand.Flags().IntVar(&scrapeWorkers, "workers", 0, "Concurrent page fetchers; 1 means strictly sequential (default 1)")
	scrapeCommand.Flags().IntVar(&scrapeCheckpoint, "checkpoint-every", 0, "Pages between checkpoint saves (default 100)")
	scrapeCommand.Flags().IntVar(&scrapeMaxPages, "max-pages", 0, "Stop after this many pages (0 = no limit)")
	scrapeCommand.Flags().StringVar(&scrapeUserAgent, "user-agent", "", "Custom User-Agent header")
	scrapeCommand.Flags().StringVar(&scrapeEmpty, "empty-policy", "", "What to do with pages that yield no text: skip or record (default skip)")
	scrapeCommand.Flags().BoolVar(&scrapeKeepRaw, "keep-raw", false, "Keep raw wikitext alongside the cleaned text (API mode)")
	scrapeCommand.Flags().BoolVar(&scrapeUseBrowser, "use-browser", false, "Use headless browser for JS-rendered wikis (requires Chrome)")
	scrapeCommand.Flags().BoolVarP(&scrapeVerbose, "verbose", "v", false, "Print detailed debug information")

	// Database URL for page archival
	scrapeCommand.Flags().StringVar(&scrapeDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")

	rootCmd.AddCommand(scrapeCommand)
}

func runScrapeCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	// Step 1: Load config file if provided
	var cfg config.Config
	if scrapeConfigPath != "" {
		loadedCfg, err := config.LoadConfig(scrapeConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := loadedCfg.Validate(); err != nil {
			return err
		}
		cfg = *loadedCfg
		if scrapeVerbose {
			_, _ = fmt.Fprintf(os.Stdout, "Loaded config from: %s\n", scrapeConfigPath)
		}
	}

	// Step 2: Apply CLI overrides (command-line args take priority)
	// Only override if the flag was explicitly set
	if cmd.Flags().Changed("wiki") {
		cfg.Wiki = scrapeWiki
	}
	if cmd.Flags().Changed("output") {
		cfg.Output = scrapeOutput
	}
	if cmd.Flags().Changed("mode") {
		cfg.Mode = scrapeMode
	}
	if cmd.Flags().Changed("delay") {
		cfg.DelaySeconds = scrapeDelay
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = scrapeWorkers
	}
	if cmd.Flags().Changed("checkpoint-every") {
		cfg.CheckpointEvery = scrapeCheckpoint
	}
	if cmd.Flags().Changed("max-pages") {
		cfg.MaxPages = scrapeMaxPages
	}
	if cmd.Flags().Changed("user-agent") {
		cfg.UserAgent = scrapeUserAgent
	}
	if cmd.Flags().Changed("empty-policy") {
		cfg.EmptyPolicy = scrapeEmpty
	}
	if cmd.Flags().Changed("keep-raw") {
		cfg.KeepRaw = scrapeKeepRaw
	}
	if cmd.Flags().Changed("use-browser") {
		cfg.UseBrowser = scrapeUseBrowser
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = scrapeVerbose
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = scrapeDatabaseURL
	}

	// Step 3: Apply defaults for unset values
	cfg = cfg.MergeWithDefaults(config.Defaults())

	// Step 4: Validate required and merged fields
	if cfg.Wiki == "" {
		return fmt.Errorf("--wiki is required (via flag or config)")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Step 5: Database URL handling (optional)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	opts := harvest.Options{
		Wiki:            cfg.Wiki,
		Mode:            cfg.Mode,
		OutputPath:      cfg.Output,
		Delay:           time.Duration(cfg.DelaySeconds * float64(time.Second)),
		Workers:         cfg.Workers,
		CheckpointEvery: cfg.CheckpointEvery,
		MaxPages:        cfg.MaxPages,
		UserAgent:       cfg.UserAgent,
		KeepRaw:         cfg.KeepRaw,
		RecordEmpty:     cfg.EmptyPolicy == config.EmptyPolicyRecord,
		UseBrowser:      cfg.UseBrowser,
		Verbose:         cfg.Verbose,
		DatabaseURL:     cfg.DatabaseURL,
	}

	if _, err := harvest.Run(ctx, opts); err != nil {
		return err
	}
	fmt.Printf("Collection written to %s\n", cfg.Output)
	return nil
}
