package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/khanglvm/profile-qa/internal/config"
)

// NewInitCmd creates the 'init' command that writes a starter config file.
func NewInitCmd() *cobra.Command {
	var force bool
	var knowledgePath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Write the built-in configuration to ~/.profile-qa.json (or the path given
with --config) so it can be edited. The file extension selects the format:
.yaml/.yml writes YAML, anything else JSON.

Every setting can also be overridden with PROFILE_QA_* environment
variables, e.g. PROFILE_QA_ENGINES_PRIMARY=semantic.`,
		Example: `  profile-qa init
  profile-qa init --config ./profile-qa.yaml --knowledge ./data/profile.yaml
  profile-qa init --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := globals.configPath
			if path == "" {
				p, err := config.GetDefaultConfigPath()
				if err != nil {
					return err
				}
				path = p
			}
			return runInit(cmd.OutOrStdout(), path, knowledgePath, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config file")
	cmd.Flags().StringVarP(&knowledgePath, "knowledge", "k", "", "Knowledge base file to reference")

	return cmd
}

func runInit(out io.Writer, path, knowledgePath string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
	}

	cfg := config.Default()
	if knowledgePath != "" {
		cfg.Knowledge.Path = knowledgePath
	}

	if err := config.Save(cfg, path); err != nil {
		return err
	}

	fmt.Fprintf(out, "✓ Wrote %s\n", path)
	fmt.Fprintf(out, "  Knowledge base: %s\n", cfg.Knowledge.Path)
	fmt.Fprintln(out, "  Run 'profile-qa verify' to check the setup.")
	return nil
}
