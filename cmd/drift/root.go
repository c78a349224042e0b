package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"drift/internal/config"
	"drift/internal/engine"
	"drift/internal/errors"
	"drift/internal/logging"
)

var (
	flagProjectRoot string
	flagJSON        bool
)

func run() int {
	root := &cobra.Command{
		Use:           "drift",
		Short:         "Codebase convention and drift detection engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagProjectRoot, "project", "", "project root (default: auto-discover)")
	root.PersistentFlags().BoolVar(&flagJSON, "json", false, "emit JSON output")

	root.AddCommand(scanCmd(), statusCmd(), patternsCmd(), violationsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.CodeOf(err) == errors.ConfigInvalid {
			return exitBadInput
		}
		return exitToolError
	}
	return lastExit
}

// lastExit lets commands signal "issues found" without aborting output.
var lastExit = exitClean

func newEngine() (*engine.Engine, error) {
	cfg, err := config.Load(flagProjectRoot)
	if err != nil {
		return nil, err
	}
	logger := logging.NewFromEnv()
	return engine.New(cfg, logger)
}

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run a full or incremental analysis scan",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			report, err := eng.Scan(context.Background())
			if err != nil {
				return err
			}
			if flagJSON {
				return json.NewEncoder(os.Stdout).Encode(report)
			}
			fmt.Printf("scan %s: %s\n", report.ScanID[:8], report.Status)
			fmt.Printf("  files:      %d (%d changed)\n", report.FilesScanned, report.FilesChanged)
			fmt.Printf("  patterns:   %d\n", report.Patterns)
			fmt.Printf("  violations: %d\n", report.Violations)
			fmt.Printf("  flows:      %d\n", report.TaintFlows)
			fmt.Printf("  duration:   %s\n", report.Duration)
			if report.Violations > 0 || report.TaintFlows > 0 {
				lastExit = exitIssuesFound
			}
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the materialized project status",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			status, err := eng.Status()
			if err != nil {
				return err
			}
			if status == nil {
				fmt.Println("no scan recorded yet; run `drift scan` first")
				return nil
			}
			if flagJSON {
				return json.NewEncoder(os.Stdout).Encode(status)
			}
			fmt.Printf("health:     %.1f (%s)\n", status.HealthScore, status.Trend)
			fmt.Printf("files:      %d\n", status.FileCount)
			fmt.Printf("patterns:   %d (%d approved)\n", status.PatternCount, status.ApprovedCount)
			fmt.Printf("violations: %d critical, %d warnings\n", status.CriticalViolations, status.Warnings)
			fmt.Printf("security:   %s\n", status.SecurityRiskLevel)
			if status.CriticalViolations > 0 {
				lastExit = exitIssuesFound
			}
			return nil
		},
	}
}

func patternsCmd() *cobra.Command {
	var cursor string
	var limit int
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "List discovered patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			page, err := eng.Patterns(cursor, limit)
			if err != nil {
				return err
			}
			if flagJSON {
				return json.NewEncoder(os.Stdout).Encode(page)
			}
			for _, p := range page.Items {
				fmt.Printf("%-50s %-12s %-12s conf=%.2f spread=%d outliers=%d\n",
					p.PatternID, p.Category, p.Tier, p.Confidence, p.Spread, p.OutlierCount)
			}
			if page.HasMore {
				fmt.Printf("next cursor: %s\n", page.NextCursor)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cursor, "cursor", "", "pagination cursor")
	cmd.Flags().IntVar(&limit, "limit", 50, "page size")
	return cmd
}

func violationsCmd() *cobra.Command {
	var cursor string
	var limit int
	cmd := &cobra.Command{
		Use:   "violations",
		Short: "List convention violations",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			page, err := eng.Violations(cursor, limit)
			if err != nil {
				return err
			}
			if flagJSON {
				return json.NewEncoder(os.Stdout).Encode(page)
			}
			for _, v := range page.Items {
				marker := ""
				if v.IsNew {
					marker = " [new]"
				}
				fmt.Printf("%s:%d %s %s%s\n", v.File, v.Line, v.Severity, v.Message, marker)
			}
			if len(page.Items) > 0 {
				lastExit = exitIssuesFound
			}
			if page.HasMore {
				fmt.Printf("next cursor: %s\n", page.NextCursor)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cursor, "cursor", "", "pagination cursor")
	cmd.Flags().IntVar(&limit, "limit", 50, "page size")
	return cmd
}
