package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/khanglvm/profile-qa/internal/learning"
	"github.com/khanglvm/profile-qa/internal/storage"
)

// NewHistoryCmd creates the history command group.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded engine outcomes",
		Long: `Every answered query records an outcome (engine, confidence, latency,
fallback, escalation) in ~/.profile-qa/history.db. Queries are stored as
SHA256 hashes only.

Commands:
  stats   Compare engines over recorded outcomes
  export  Export outcomes as JSON or JSONL
  clear   Delete all recorded outcomes`,
	}

	cmd.AddCommand(newHistoryStatsCmd())
	cmd.AddCommand(newHistoryExportCmd())
	cmd.AddCommand(newHistoryClearCmd())

	return cmd
}

// openStorage opens the configured outcome database.
func openStorage() (*storage.SQLiteStorage, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Storage.Enabled {
		return nil, fmt.Errorf("storage is disabled (set storage.enabled: true)")
	}
	store := storage.NewStorage(cfg.Storage.Path, log)
	if err := store.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}

func sinceDays(days int) time.Time {
	if days <= 0 {
		return time.Time{}
	}
	return time.Now().Add(-time.Duration(days) * 24 * time.Hour)
}

func newHistoryStatsCmd() *cobra.Command {
	var days int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Compare engines over recorded outcomes",
		Example: `  profile-qa history stats
  profile-qa history stats --days 30 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStorage()
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Outcomes(sinceDays(days), 0)
			if err != nil {
				return err
			}
			return writeStats(cmd.OutOrStdout(), learning.Summarize(records), days, jsonOutput)
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", 7, "Window in days (0 = all)")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	return cmd
}

func writeStats(out io.Writer, summaries []learning.EngineSummary, days int, jsonOutput bool) error {
	preferred := learning.Preferred(summaries)

	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Days      int                      `json:"days"`
			Engines   []learning.EngineSummary `json:"engines"`
			Preferred string                   `json:"preferred"`
		}{days, summaries, preferred})
	}

	if len(summaries) == 0 {
		fmt.Fprintln(out, "No outcomes recorded yet.")
		fmt.Fprintln(out, "Run 'profile-qa chat' or 'profile-qa serve' to answer some questions.")
		return nil
	}

	window := "all time"
	if days > 0 {
		window = fmt.Sprintf("last %d days", days)
	}
	fmt.Fprintf(out, "Engine outcomes (%s)\n", window)
	fmt.Fprintln(out, strings.Repeat("=", 80))
	fmt.Fprintf(out, "%-12s %8s %10s %12s %10s %10s %8s\n", "ENGINE", "QUERIES", "AVG CONF", "AVG LATENCY", "FALLBACK", "ESCALATED", "FAILED")
	for _, s := range summaries {
		fmt.Fprintf(out, "%-12s %8d %10.2f %10.0fms %9.0f%% %9.0f%% %7.0f%%\n",
			s.Engine, s.Queries, s.AvgConfidence, s.AvgLatencyMs, s.FallbackRate*100, s.EscalationRate*100, s.FailureRate*100)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Preferred engine: %s\n", preferred)
	return nil
}

func newHistoryExportCmd() *cobra.Command {
	var outputFile string
	var format string
	var days int
	var limit int

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export outcomes as JSON or JSONL",
		Example: `  # One outcome per line, for grep/jq
  profile-qa history export > outcomes.jsonl
  jq -r '.engine' outcomes.jsonl | sort | uniq -c

  # JSON array of the last 30 days
  profile-qa history export --format json --days 30 --output outcomes.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "jsonl" {
				return fmt.Errorf("invalid format %q (use json or jsonl)", format)
			}

			store, err := openStorage()
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Outcomes(sinceDays(days), limit)
			if err != nil {
				return err
			}

			if outputFile == "" {
				return writeOutcomes(cmd.OutOrStdout(), records, format)
			}

			f, err := os.OpenFile(outputFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			if err := writeOutcomes(f, records, format); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Exported %d outcomes to %s\n", len(records), outputFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&format, "format", "jsonl", "Output format: json or jsonl")
	cmd.Flags().IntVarP(&days, "days", "d", 0, "Window in days (0 = all)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of outcomes (0 = no limit)")
	return cmd
}

// writeOutcomes encodes records newest first as a JSON array or JSON lines.
func writeOutcomes(w io.Writer, records []storage.OutcomeRecord, format string) error {
	if format == "json" {
		if records == nil {
			records = []storage.OutcomeRecord{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func newHistoryClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all recorded outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			path := cfg.Storage.Path
			if path == "" {
				if path, err = storage.DefaultPath(); err != nil {
					return err
				}
			}
			return runHistoryClear(cmd.InOrStdin(), cmd.OutOrStdout(), path, yes)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func runHistoryClear(in io.Reader, out io.Writer, dbPath string, yes bool) error {
	if !yes {
		fmt.Fprint(out, "This will delete all recorded outcomes. Continue? (y/N): ")
		response, _ := bufio.NewReader(in).ReadString('\n')
		response = strings.TrimSpace(response)
		if response != "y" && response != "Y" {
			fmt.Fprintln(out, "Cancelled")
			return nil
		}
	}

	removed := false
	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		err := os.Remove(p)
		if err == nil {
			removed = removed || p == dbPath
			continue
		}
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete %s: %w", p, err)
		}
	}

	if !removed {
		fmt.Fprintln(out, "No recorded outcomes found")
		return nil
	}
	fmt.Fprintln(out, "Outcome history cleared")
	return nil
}
