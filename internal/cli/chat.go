package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/khanglvm/profile-qa/internal/chat"
	"github.com/khanglvm/profile-qa/internal/errkind"
	"github.com/khanglvm/profile-qa/internal/escalation"
	"github.com/khanglvm/profile-qa/internal/knowledge"
)

const replHelp = `Commands:
  /style <hr|developer|friend>  Change the answer style
  /restart                      Start a new conversation
  /contact <name> <email>       Get a mailto link for the last question
  /stats                        Show session and engine statistics
  /help                         Show this help
  /quit                         Exit`

// NewChatCmd creates the 'chat' command, an interactive question loop.
func NewChatCmd() *cobra.Command {
	var style string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions interactively",
		Long: `Start an interactive session that answers questions about the profile.

Each line is a question. Lines starting with '/' are commands:

` + replHelp,
		Example: `  profile-qa chat
  profile-qa chat --style friend`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := applyStyle(a.session, style); err != nil {
				return err
			}
			return runREPL(ctx, a.session, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&style, "style", "s", "", "Answer style: hr, developer or friend")

	return cmd
}

func applyStyle(s *chat.Session, style string) error {
	if style == "" {
		return nil
	}
	st, ok := knowledge.ParseStyle(style)
	if !ok {
		return fmt.Errorf("unknown style %q (use hr, developer or friend)", style)
	}
	return s.SelectStyle(st)
}

// runREPL reads questions from in until EOF, /quit or ctx ends.
func runREPL(ctx context.Context, s *chat.Session, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "Session %s (style: %s). Type /help for commands.\n", s.ID(), s.Style())

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := runREPLCommand(s, line, out)
			if err != nil {
				fmt.Fprintf(out, "✗ %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		reply, err := s.ProcessQuery(ctx, line)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			fmt.Fprintf(out, "✗ %v\n", err)
			continue
		}
		printReply(out, reply)
	}
}

// runREPLCommand handles one slash command and reports whether to quit.
func runREPLCommand(s *chat.Session, line string, out io.Writer) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil

	case "/help":
		fmt.Fprintln(out, replHelp)

	case "/style":
		if len(fields) != 2 {
			return false, errkind.InvalidInput("usage: /style <hr|developer|friend>")
		}
		st, ok := knowledge.ParseStyle(fields[1])
		if !ok {
			return false, errkind.InvalidInput("unknown style %q", fields[1])
		}
		if err := s.SelectStyle(st); err != nil {
			return false, err
		}
		fmt.Fprintf(out, "✓ Style: %s\n", st)

	case "/restart":
		id := s.Restart()
		fmt.Fprintf(out, "✓ New session %s\n", id)

	case "/contact":
		if len(fields) < 3 {
			return false, errkind.InvalidInput("usage: /contact <name> <email>")
		}
		name := strings.Join(fields[1:len(fields)-1], " ")
		res := s.SubmitContactForm(name, fields[len(fields)-1])
		if !res.Success {
			printFieldErrors(out, res.FieldErrors)
			return false, nil
		}
		fmt.Fprintf(out, "✓ Open this link to send your question:\n  %s\n", res.Mailto)

	case "/stats":
		data, err := json.MarshalIndent(s.Stats(), "", "  ")
		if err != nil {
			return false, err
		}
		fmt.Fprintln(out, string(data))

	default:
		return false, fmt.Errorf("unknown command %s (try /help)", fields[0])
	}
	return false, nil
}

func printReply(out io.Writer, r *chat.Reply) {
	fmt.Fprintln(out, r.Answer)
	for _, s := range r.Suggestions {
		fmt.Fprintf(out, "  • %s\n", s)
	}
	if r.ShowContactForm {
		fmt.Fprintln(out, "  Use /contact <name> <email> to send this question directly.")
	}
	if r.Unavailable {
		return
	}

	meta := fmt.Sprintf("confidence %.2f", r.Confidence)
	if r.Engine != "" {
		meta += ", engine " + r.Engine
	}
	if r.FallbackUsed {
		meta += ", fallback"
	}
	if r.Cached {
		meta += ", cached"
	}
	fmt.Fprintf(out, "  (%s)\n", meta)
}

func printFieldErrors(out io.Writer, fe escalation.FieldErrors) {
	for _, field := range []string{"name", "email", "form"} {
		if msg, ok := fe[field]; ok {
			fmt.Fprintf(out, "✗ %s: %s\n", field, msg)
		}
	}
}
