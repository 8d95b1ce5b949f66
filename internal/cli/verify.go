package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/khanglvm/profile-qa/internal/config"
)

// NewVerifyCmd creates the 'verify' command for verifying configuration.
func NewVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify configuration, knowledge base and engines",
		Long: `Verify that the configuration is valid, the knowledge base loads and
every configured engine starts and reports ready.`,
		Example: `  profile-qa verify
  profile-qa verify --config ./profile-qa.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			a, err := assemble(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()
			return runVerify(cmd.OutOrStdout(), a)
		},
	}

	return cmd
}

// runVerify prints one line per check and fails when no engine is usable.
func runVerify(out io.Writer, a *app) error {
	configPath := globals.configPath
	if configPath == "" {
		if p, err := config.GetDefaultConfigPath(); err == nil {
			configPath = p
		}
	}

	fmt.Fprintf(out, "✓ Config file: %s\n", configPath)
	fmt.Fprintf(out, "✓ Knowledge base: %s (%d entries, %d categories)\n",
		a.cfg.Knowledge.Path, a.base.Len(), len(a.base.Categories()))

	if a.store != nil && a.store.Enabled() {
		fmt.Fprintf(out, "✓ Storage: %s\n", a.store.Path())
	} else {
		fmt.Fprintln(out, "- Storage: disabled")
	}

	ready := 0
	for _, e := range a.engines {
		if e.Available() {
			ready++
			fmt.Fprintf(out, "✓ %s: ready\n", e.Name())
		} else {
			fmt.Fprintf(out, "✗ %s: unavailable\n", e.Name())
		}
	}
	fmt.Fprintf(out, "✓ Primary engine: %s\n", a.orch.Primary())

	if ready == 0 {
		return fmt.Errorf("no engine is available")
	}
	return nil
}
