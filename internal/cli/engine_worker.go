package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/khanglvm/profile-qa/internal/config"
	"github.com/khanglvm/profile-qa/internal/engine/worker"
	"github.com/khanglvm/profile-qa/internal/knowledge"
	"github.com/khanglvm/profile-qa/internal/storage"
)

// NewEngineWorkerCmd creates the 'engine-worker' command, the entry point
// of engines running as child processes.
func NewEngineWorkerCmd() *cobra.Command {
	var kind string
	var name string

	cmd := &cobra.Command{
		Use:   "engine-worker",
		Short: "Serve one answer engine over stdio (used by process engines)",
		Long: `Run a single answer engine that speaks the envelope protocol on
stdin/stdout. The parent profile-qa process starts this command for every
engine definition with transport "process":

  {"name": "semantic", "kind": "semantic", "transport": "process",
   "command": "profile-qa", "args": ["engine-worker", "--kind", "semantic"]}

Logs go to stderr; stdout carries protocol messages only.`,
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				name = kind
			}
			return runEngineWorker(cmd, kind, name)
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", config.KindLexical, "Engine kind: lexical or semantic")
	cmd.Flags().StringVar(&name, "name", "", "Engine name used in logs (default: kind)")

	return cmd
}

func runEngineWorker(cmd *cobra.Command, kind, name string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	log = log.With("pid", os.Getpid())

	base, err := knowledge.Load(cfg.Knowledge.Path)
	if err != nil {
		return err
	}

	var store *storage.SQLiteStorage
	if cfg.Storage.Enabled && kind == config.KindSemantic {
		store = storage.NewStorage(cfg.Storage.Path, log)
		if err := store.Init(); err != nil {
			log.Warn("vector cache unavailable", "error", err)
		}
		defer store.Close()
	}

	h, err := newHandler(kind, cfg, base, store, log)
	if err != nil {
		return fmt.Errorf("engine-worker: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := worker.DefaultOptions(name)
	opts.Logger = log
	return worker.RunStdio(ctx, h, opts)
}
