package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/khanglvm/profile-qa/internal/api"
	"github.com/khanglvm/profile-qa/internal/orchestrator"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the 'serve' command for running the HTTP API.
func NewServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Start the profile-qa HTTP API.

Endpoints:
  POST /query    {text, style?}  Answer a question
  POST /style    {style}         Change the answer style
  POST /restart                  Start a new conversation
  POST /contact  {name, email}   Build a mailto link (rate limited)
  GET  /stats                    Session, engine and A/B statistics
  GET  /health                   Engine availability
  GET  /metrics                  Prometheus metrics

The server shuts down gracefully on SIGINT/SIGTERM/SIGQUIT.`,
		Example: `  profile-qa serve
  profile-qa serve --addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config server.addr)")

	return cmd
}

// runServe serves the API until a signal arrives or the listener fails.
func runServe(parent context.Context, addr string) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg.Server
	if addr != "" {
		cfg.Addr = addr
	}

	unsubscribe := a.orch.Subscribe(func(e orchestrator.Event) error {
		if e.Type == orchestrator.EventFallback {
			a.log.Warn("engine fallback", "from", e.Engine, "to", e.Next, "error", e.Err)
		}
		return nil
	})
	defer unsubscribe()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewRouter(a.session, a.registry, cfg, a.log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		a.log.Info("listening", "addr", cfg.Addr, "session", a.session.ID())
		errChan <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		a.log.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		a.log.Info("shutdown complete")
		return nil

	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	}
}
