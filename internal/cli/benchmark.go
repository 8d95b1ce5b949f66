package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/khanglvm/profile-qa/internal/benchmark"
	"github.com/khanglvm/profile-qa/internal/knowledge"
	"github.com/khanglvm/profile-qa/internal/prompt"
)

// NewBenchmarkCmd creates the 'benchmark' command for comparing engines.
func NewBenchmarkCmd() *cobra.Command {
	var jsonOutput bool
	var style string

	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Compare engine accuracy, confidence and latency",
		Long: `Run every configured engine against probe questions generated from the
knowledge base. Each probe is built from an entry's keywords; an engine
answers it correctly when the entry is among its matched entries.

The engine with the highest accuracy wins, ties broken by confidence and
then latency.`,
		Example: `  profile-qa benchmark
  profile-qa benchmark --style hr --json
  profile-qa benchmark speed --iterations 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, ok := knowledge.ParseStyle(style)
			if !ok {
				return fmt.Errorf("unknown style %q", style)
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			return runBenchmark(cmd.Context(), cmd.OutOrStdout(), a, st, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	cmd.Flags().StringVarP(&style, "style", "s", string(knowledge.DefaultStyle), "Answer style used in probes")

	return cmd
}

func promptBuilder(a *app) *prompt.Builder {
	return prompt.NewBuilder(a.cfg.Prompt.Persona, a.cfg.Prompt.MaxWords, a.cfg.Prompt.MaxHistory)
}

func runBenchmark(ctx context.Context, out io.Writer, a *app, style knowledge.Style, jsonOutput bool) error {
	probes := benchmark.ProbesFromBase(a.base, style)
	result, err := benchmark.RunBenchmark(ctx, a.engines, a.orch.Retriever(), promptBuilder(a), probes)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	fmt.Fprint(out, benchmark.FormatResult(result))
	return nil
}

// NewSpeedBenchmarkCmd creates the 'benchmark speed' command for latency testing.
func NewSpeedBenchmarkCmd() *cobra.Command {
	var iterations int
	var question string

	cmd := &cobra.Command{
		Use:   "speed",
		Short: "Measure engine round-trip latency",
		Long: `Send the same question to every engine several times and report the
round-trip latency, including envelope encoding and transport overhead.`,
		Example: `  profile-qa benchmark speed
  profile-qa benchmark speed --iterations 10 --question "What do you build with Go?"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			return runSpeedBenchmark(cmd.Context(), cmd.OutOrStdout(), a, question, iterations)
		},
	}

	cmd.Flags().IntVarP(&iterations, "iterations", "n", 3, "Number of queries per engine")
	cmd.Flags().StringVarP(&question, "question", "q", "What technologies do you work with?", "Question to send")

	return cmd
}

func runSpeedBenchmark(ctx context.Context, out io.Writer, a *app, question string, iterations int) error {
	if iterations < 1 {
		return fmt.Errorf("iterations must be at least 1")
	}

	req, err := benchmark.BuildRequest(a.orch.Retriever(), promptBuilder(a), benchmark.Probe{
		Question: question,
		Style:    knowledge.DefaultStyle,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "╔══════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(out, "║              SPEED BENCHMARK (Engine Latency)                ║")
	fmt.Fprintln(out, "╠══════════════════════════════════════════════════════════════╣")
	fmt.Fprintf(out, "║  Iterations per engine: %-3d                                  ║\n", iterations)
	fmt.Fprintln(out, "╚══════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(out)

	var totalTime time.Duration
	successCount := 0

	for _, e := range a.engines {
		fmt.Fprintf(out, "Testing: %s\n", e.Name())
		if !e.Available() {
			fmt.Fprintln(out, "  unavailable")
			fmt.Fprintln(out)
			continue
		}

		var engineTime time.Duration
		var engineSuccess int
		for i := 0; i < iterations; i++ {
			start := time.Now()
			res, err := e.Query(ctx, req)
			elapsed := time.Since(start)
			if err != nil {
				fmt.Fprintf(out, "  Run %d: ERROR - %v\n", i+1, err)
				continue
			}
			engineTime += elapsed
			engineSuccess++
			fmt.Fprintf(out, "  Run %d: %v (confidence %.2f)\n", i+1, elapsed.Round(time.Microsecond), res.Confidence)
		}

		if engineSuccess > 0 {
			fmt.Fprintf(out, "  Average: %v\n", (engineTime / time.Duration(engineSuccess)).Round(time.Microsecond))
			totalTime += engineTime
			successCount += engineSuccess
		}
		fmt.Fprintln(out)
	}

	if successCount == 0 {
		return fmt.Errorf("no engine answered")
	}
	fmt.Fprintln(out, "═══════════════════════════════════════════════════════════════")
	fmt.Fprintf(out, "Overall Average Latency: %v\n", (totalTime / time.Duration(successCount)).Round(time.Microsecond))
	fmt.Fprintln(out, "═══════════════════════════════════════════════════════════════")
	return nil
}
