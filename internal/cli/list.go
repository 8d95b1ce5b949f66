package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/khanglvm/profile-qa/internal/knowledge"
)

// NewListCmd creates the 'list' command for browsing the knowledge base.
func NewListCmd() *cobra.Command {
	var jsonOutput bool
	var category string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List knowledge base entries",
		Long:    `Display the entries of the knowledge base grouped by category.`,
		Example: `  profile-qa list
  profile-qa ls --category skills
  profile-qa list --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			base, err := knowledge.Load(cfg.Knowledge.Path)
			if err != nil {
				return err
			}
			return runList(cmd.OutOrStdout(), base, category, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	cmd.Flags().StringVar(&category, "category", "", "Only list one category")

	return cmd
}

// runList writes the entries of base, optionally restricted to one category.
func runList(out io.Writer, base *knowledge.Base, category string, jsonOutput bool) error {
	categories := base.Categories()
	if category != "" {
		if len(base.Category(category)) == 0 {
			return fmt.Errorf("unknown category %q (have: %s)", category, strings.Join(categories, ", "))
		}
		categories = []string{category}
	}

	if jsonOutput {
		var entries []*knowledge.Entry
		for _, c := range categories {
			entries = append(entries, base.Category(c)...)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	fmt.Fprintf(out, "Knowledge base (%d entries):\n\n", base.Len())
	for _, c := range categories {
		fmt.Fprintf(out, "%s\n", c)
		for _, e := range base.Category(c) {
			fmt.Fprintf(out, "  %s\n", e.ID)
			if len(e.Keywords) > 0 {
				fmt.Fprintf(out, "    Keywords: %s\n", strings.Join(e.Keywords, ", "))
			}
			fmt.Fprintf(out, "    Priority: %d  Confidence: %.2f\n", e.Priority, e.Confidence)
			if len(e.Related) > 0 {
				fmt.Fprintf(out, "    Related:  %s\n", strings.Join(e.Related, ", "))
			}
		}
		fmt.Fprintln(out)
	}
	return nil
}
