/*
Package cli implements the profile-qa commands.

Every command that answers questions assembles the same pipeline: config,
knowledge base, engines (in-process or child processes), outcome storage,
orchestrator and a chat session. newApp does that wiring once.
*/
package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/khanglvm/profile-qa/internal/chat"
	"github.com/khanglvm/profile-qa/internal/config"
	"github.com/khanglvm/profile-qa/internal/conversation"
	"github.com/khanglvm/profile-qa/internal/embedding"
	"github.com/khanglvm/profile-qa/internal/engine"
	"github.com/khanglvm/profile-qa/internal/engine/lexical"
	"github.com/khanglvm/profile-qa/internal/engine/semantic"
	"github.com/khanglvm/profile-qa/internal/engine/worker"
	"github.com/khanglvm/profile-qa/internal/escalation"
	"github.com/khanglvm/profile-qa/internal/knowledge"
	"github.com/khanglvm/profile-qa/internal/learning"
	"github.com/khanglvm/profile-qa/internal/logging"
	"github.com/khanglvm/profile-qa/internal/orchestrator"
	"github.com/khanglvm/profile-qa/internal/prompt"
	"github.com/khanglvm/profile-qa/internal/search"
	"github.com/khanglvm/profile-qa/internal/storage"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
}

var globals globalOptions

// AddGlobalFlags registers the persistent flags on the root command.
func AddGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().StringVarP(&globals.configPath, "config", "c", "", "Config file (default: ~/.profile-qa.json)")
	root.PersistentFlags().StringVar(&globals.logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
}

// loadConfig reads the configuration and installs the default logger.
func loadConfig() (*config.Config, logging.Logger, error) {
	cfg, err := config.LoadOrDefault(globals.configPath)
	if err != nil {
		return nil, nil, err
	}
	if globals.logLevel != "" {
		cfg.Log.Level = globals.logLevel
	}

	log := logging.New(cfg.LoggingConfig())
	logging.SetDefault(log)
	return cfg, log, nil
}

// app is the assembled question answering pipeline.
type app struct {
	cfg      *config.Config
	log      logging.Logger
	base     *knowledge.Base
	store    *storage.SQLiteStorage
	tracker  *learning.Tracker
	registry *prometheus.Registry
	engines  []engine.Engine
	orch     *orchestrator.Orchestrator
	session  *chat.Session
}

// newApp wires and starts the pipeline. The caller must Close it.
func newApp(ctx context.Context) (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return assemble(ctx, cfg, log)
}

func assemble(ctx context.Context, cfg *config.Config, log logging.Logger) (*app, error) {
	base, err := knowledge.Load(cfg.Knowledge.Path)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, base: base, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector())

	if cfg.Storage.Enabled {
		a.store = storage.NewStorage(cfg.Storage.Path, log)
		// NewTracker initializes the storage
		a.tracker = learning.NewTracker(a.store, log)
		if cfg.Storage.Retention > 0 {
			if err := a.store.Cleanup(cfg.Storage.Retention); err != nil {
				log.Warn("outcome cleanup failed", "error", err)
			}
		}
	}

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		log.Warn("embedder unavailable, retrieval uses keywords only", "error", err)
		embedder = nil
	}

	engines, err := buildEngines(cfg, base, a.store, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.engines = engines

	deps := orchestrator.Deps{
		Engines:    engines,
		Retriever:  search.NewRetriever(base, cfg.SearchConfig()),
		Prompt:     prompt.NewBuilder(cfg.Prompt.Persona, cfg.Prompt.MaxWords, cfg.Prompt.MaxHistory),
		Escalation: escalation.NewHandler(cfg.Escalation),
		Embedder:   embedder,
		Tracker:    a.tracker,
		Registerer: a.registry,
		Logger:     log,
	}
	if a.store != nil {
		deps.Storage = a.store
	}

	a.orch, err = orchestrator.New(cfg.OrchestratorConfig(), deps)
	if err != nil {
		for _, e := range engines {
			_ = e.Close()
		}
		a.Close()
		return nil, err
	}

	if err := a.orch.Start(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("no engine could start: %w", err)
	}

	conv := conversation.NewManager(cfg.Conversation.MaxTurns, cfg.Conversation.ContextWindow)
	a.session = chat.NewSession(a.orch, conv, log)
	return a, nil
}

// Close stops engines and flushes pending outcomes.
func (a *app) Close() {
	if a.orch != nil {
		if err := a.orch.Close(); err != nil {
			a.log.Warn("engine shutdown failed", "error", err)
		}
	}
	if a.tracker != nil {
		a.tracker.Stop()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", "error", err)
		}
	}
}

// buildEngines creates one client per engine definition.
func buildEngines(cfg *config.Config, base *knowledge.Base, store *storage.SQLiteStorage, log logging.Logger) ([]engine.Engine, error) {
	opts := engine.Options{
		QueryTimeout: cfg.Engines.QueryTimeout,
		InitTimeout:  cfg.Engines.InitTimeout,
		Logger:       log,
	}

	defs := cfg.EngineDefinitions()
	engines := make([]engine.Engine, 0, len(defs))
	for _, def := range defs {
		dialer, err := dialerFor(def, cfg, base, store, log)
		if err != nil {
			return nil, err
		}
		engines = append(engines, engine.NewClient(def.Name, dialer, opts))
	}
	return engines, nil
}

func dialerFor(def config.EngineDefinition, cfg *config.Config, base *knowledge.Base, store *storage.SQLiteStorage, log logging.Logger) (engine.Dialer, error) {
	if def.Transport == config.TransportProcess {
		return engine.ProcessDialer{
			Command: def.Command,
			Args:    def.Args,
			Env:     config.NormalizeEnvVars(def.Env),
			Logger:  log,
		}, nil
	}

	h, err := newHandler(def.Kind, cfg, base, store, log)
	if err != nil {
		return nil, fmt.Errorf("engine '%s': %w", def.Name, err)
	}
	opts := worker.DefaultOptions(def.Name)
	opts.Logger = log
	return worker.Dialer(h, opts), nil
}

// newHandler builds the engine implementation for kind.
func newHandler(kind string, cfg *config.Config, base *knowledge.Base, store *storage.SQLiteStorage, log logging.Logger) (worker.Handler, error) {
	switch kind {
	case config.KindLexical:
		return lexical.New(base, log), nil
	case config.KindSemantic:
		embedder, err := embedding.New(cfg.Embedding)
		if err != nil {
			return nil, err
		}
		e := semantic.New(base, embedder, log)
		if store != nil {
			e.WithCache(store)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown engine kind %q", kind)
	}
}
