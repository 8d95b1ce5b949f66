// Package api exposes a chat session over HTTP.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/khanglvm/profile-qa/internal/chat"
	"github.com/khanglvm/profile-qa/internal/logging"
)

// Config controls the HTTP server.
type Config struct {
	Addr string `koanf:"addr" validate:"required"`
	// ContactRate is the sustained contact submissions per second.
	ContactRate  float64 `koanf:"contact_rate" validate:"gt=0"`
	ContactBurst int     `koanf:"contact_burst" validate:"gte=1"`
}

// DefaultConfig listens on localhost and allows a contact submission every
// ten seconds after a burst of three.
func DefaultConfig() Config {
	return Config{
		Addr:         "127.0.0.1:8080",
		ContactRate:  0.1,
		ContactBurst: 3,
	}
}

// NewRouter creates the chi router with all routes and middleware.
// A nil gatherer leaves /metrics out.
func NewRouter(session *chat.Session, gatherer prometheus.Gatherer, cfg Config, logger logging.Logger) *chi.Mux {
	log := logging.OrDefault(logger).With("component", "api")
	if cfg.ContactRate <= 0 {
		cfg.ContactRate = DefaultConfig().ContactRate
	}
	if cfg.ContactBurst <= 0 {
		cfg.ContactBurst = DefaultConfig().ContactBurst
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Recovery(log))

	h := &chatHandler{
		session: session,
		contact: rate.NewLimiter(rate.Limit(cfg.ContactRate), cfg.ContactBurst),
		log:     log,
	}

	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)
	r.Post("/query", h.Query)
	r.Post("/style", h.Style)
	r.Post("/restart", h.Restart)
	r.Post("/contact", h.Contact)

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return r
}
