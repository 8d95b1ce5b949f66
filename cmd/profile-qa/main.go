/*
Package main is the entry point for the profile-qa CLI.

profile-qa answers questions about a person's professional profile from a
fixed knowledge base. Two answer engines (lexical and semantic) run behind
an orchestrator that picks the preferred one, falls back on failure and
escalates to an email contact form when confidence is low.

Usage:
  profile-qa [command]

Available Commands:
  init        Write a default configuration file
  chat        Ask questions interactively
  ask         Answer a single question and exit
  serve       Run the HTTP API
  list        List knowledge base entries
  verify      Verify configuration, knowledge base and engines
  history     Inspect recorded engine outcomes
  benchmark   Compare engine accuracy, confidence and latency
  version     Show version information

Examples:
  # Start with the built-in defaults
  profile-qa init --knowledge ./data/profile.yaml

  # Ask in recruiter style
  profile-qa ask --style hr "What did you achieve at your last job?"

  # Serve the HTTP API
  profile-qa serve --addr :8080
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/khanglvm/profile-qa/internal/cli"
	"github.com/khanglvm/profile-qa/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "profile-qa",
		Short: "Conversational Q&A over a professional profile",
		Long: `profile-qa answers questions about a professional profile from a
curated knowledge base.

Every question goes through the same pipeline:
  • retrieval    - keyword and semantic matching of knowledge entries
  • prompt       - persona, style and recent conversation turns
  • engines      - lexical and semantic answer engines with fallback
  • escalation   - rephrase suggestions or an email contact form

Answers come in three styles: hr, developer and friend.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cli.AddGlobalFlags(rootCmd)

	// Add subcommands
	rootCmd.AddCommand(cli.NewInitCmd())
	rootCmd.AddCommand(cli.NewChatCmd())
	rootCmd.AddCommand(cli.NewAskCmd())
	rootCmd.AddCommand(cli.NewServeCmd())
	rootCmd.AddCommand(cli.NewListCmd())
	rootCmd.AddCommand(cli.NewVerifyCmd())
	rootCmd.AddCommand(cli.NewHistoryCmd())
	rootCmd.AddCommand(cli.NewEngineWorkerCmd())
	rootCmd.AddCommand(cli.NewVersionCmd())

	// Benchmark command with speed subcommand
	benchmarkCmd := cli.NewBenchmarkCmd()
	benchmarkCmd.AddCommand(cli.NewSpeedBenchmarkCmd())
	rootCmd.AddCommand(benchmarkCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
