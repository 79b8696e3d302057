package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/PentesterFlow/APIDiff/internal/store"
	"github.com/PentesterFlow/APIDiff/pkg/apidiff"
)

var (
	version = "1.0.0"

	// Global flags
	configFile string
	verbose    bool
	debug      bool

	// Compare flags
	level          string
	labels         []string
	outputFile     string
	outputFormat   string
	pretty         bool
	dedupe         bool
	statusClassify bool
	workers        int
	dbPath         string

	// History flags
	historyDB    string
	historyLimit int
	historyRun   string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "apidiff",
		Short: "apidiff - API surface comparison for proxied session logs",
		Long: `apidiff - Compare the API surface observed in captured HTTP session logs.

Takes 2 or 3 snapshots of parsed proxy traffic (Charles .chlsj exports or
HAR files, optionally gzipped) and reports which endpoints were added,
removed or changed, down to status codes, header sets and body shapes.`,
		Version: version,
	}

	compareCmd := &cobra.Command{
		Use:   "compare [file1] [file2] [file3]",
		Short: "Compare 2 or 3 snapshot log files",
		Long:  "Compare the API surface of two or three captured session logs and produce a structured diff report.",
		Args:  cobra.RangeArgs(2, 3),
		RunE:  runCompare,
	}

	inspectCmd := &cobra.Command{
		Use:   "inspect [file]",
		Short: "Summarize a single snapshot log file",
		Long:  "Print a statistical summary of one captured session log: methods, status codes, hosts, content types and timing.",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List or show archived comparison runs",
		Long:  "List comparison runs archived in the report database, or print one full report by run ID.",
		RunE:  runHistory,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Debug mode")

	// Compare flags
	compareCmd.Flags().StringVarP(&level, "level", "l", "detailed", "Comparison level (basic, detailed, comprehensive)")
	compareCmd.Flags().StringArrayVar(&labels, "label", nil, "Version label per input file (repeatable)")
	compareCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	compareCmd.Flags().StringVarP(&outputFormat, "format", "f", "json", "Output format (json, html)")
	compareCmd.Flags().BoolVar(&pretty, "pretty", true, "Pretty-print JSON output")
	compareCmd.Flags().BoolVar(&dedupe, "dedupe", false, "Collapse repeated identical exchanges during ingest")
	compareCmd.Flags().BoolVar(&statusClassify, "status-codes-classify", true, "Count status-code-set changes as modifications")
	compareCmd.Flags().IntVar(&workers, "workers", 0, "Per-endpoint diff parallelism (0 = one per CPU)")
	compareCmd.Flags().StringVar(&dbPath, "db", "", "Archive the report to this database file")

	// History flags
	historyCmd.Flags().StringVar(&historyDB, "db", "apidiff-reports.db", "Report database file")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum runs to list")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "Print the full report for this run ID")

	rootCmd.AddCommand(compareCmd, inspectCmd, historyCmd)
	return rootCmd
}

func buildConfig(cmd *cobra.Command) (*apidiff.Config, error) {
	cfg := apidiff.DefaultConfig()
	if configFile != "" {
		loaded, err := apidiff.LoadFromFile(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	// Override with command-line flags if provided
	flags := cmd.Flags()
	if flags.Changed("level") {
		cfg.ComparisonLevel = level
	}
	if flags.Changed("status-codes-classify") {
		cfg.StatusCodesAffectClassification = statusClassify
	}
	if flags.Changed("dedupe") {
		cfg.Dedupe = dedupe
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("format") {
		cfg.Output.Format = outputFormat
	}
	if flags.Changed("pretty") {
		cfg.Output.Pretty = pretty
	}
	if flags.Changed("output") {
		cfg.Output.Path = outputFile
	}
	if flags.Changed("label") {
		cfg.VersionLabels = labels
	}
	if verbose {
		cfg.Verbose = true
	}
	if debug {
		cfg.Debug = true
	}
	if dbPath != "" {
		cfg.Store.Enabled = true
		cfg.Store.Path = dbPath
	}
	return cfg, nil
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	comparator, err := apidiff.New(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	report, err := comparator.Run(ctx, args)
	if err != nil {
		return err
	}

	out := os.Stdout
	if cfg.Output.Path != "" {
		f, err := os.Create(cfg.Output.Path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	return comparator.NewWriter(out).WriteReport(report)
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Output.Format = "json"

	comparator, err := apidiff.New(cfg)
	if err != nil {
		return err
	}

	summary, err := comparator.Inspect(args[0])
	if err != nil {
		return err
	}
	return printJSON(summary)
}

func runHistory(cmd *cobra.Command, args []string) error {
	db, err := store.New(historyDB)
	if err != nil {
		return err
	}
	defer db.Close()

	if historyRun != "" {
		report, err := db.Get(historyRun)
		if err != nil {
			return err
		}
		return printJSON(report)
	}

	runs, err := db.List(historyLimit)
	if err != nil {
		return err
	}
	return printJSON(runs)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Println(string(data))
	return err
}
