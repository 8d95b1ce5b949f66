package cli

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"
)

// NewAskCmd creates the 'ask' command for a single question.
func NewAskCmd() *cobra.Command {
	var style string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question and exit",
		Example: `  profile-qa ask "What languages do you use?"
  profile-qa ask --style hr "Tell me about your experience" --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := applyStyle(a.session, style); err != nil {
				return err
			}

			reply, err := a.session.ProcessQuery(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(reply)
			}
			printReply(out, reply)
			return nil
		},
	}

	cmd.Flags().StringVarP(&style, "style", "s", "", "Answer style: hr, developer or friend")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}
