package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cuemby/failwatch/pkg/events"
	"github.com/cuemby/failwatch/pkg/feed"
	"github.com/cuemby/failwatch/pkg/log"
	"github.com/cuemby/failwatch/pkg/metrics"
	"github.com/rs/zerolog"
)

// DefaultAddr is the listen address of the command surface
const DefaultAddr = ":9098"

// maxBodyBytes bounds command and ingest request bodies
const maxBodyBytes = 1 << 20

// Config holds HTTP server settings
type Config struct {
	Addr string

	// IngestRate and IngestBurst limit POST /api/v1/events per client.
	// A non-positive rate disables limiting.
	IngestRate  float64
	IngestBurst int

	// WatchOriginPatterns are extra origins allowed to open the websocket
	WatchOriginPatterns []string
}

// Server exposes the command surface, event ingest and change feed over HTTP
type Server struct {
	cfg        Config
	commands   *Commands
	sink       feed.Sink
	broker     *events.Broker
	limiter    *RateLimiter
	router     http.Handler
	httpServer *http.Server
	logger     zerolog.Logger
}

// NewServer creates a new API server. sink and broker may be nil, which
// disables ingest and watch respectively.
func NewServer(cfg Config, commands *Commands, sink feed.Sink, broker *events.Broker) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	s := &Server{
		cfg:      cfg,
		commands: commands,
		sink:     sink,
		broker:   broker,
		limiter:  NewRateLimiter(cfg.IngestRate, cfg.IngestBurst),
		logger:   log.WithComponent("api"),
	}
	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler for embedding in other servers
func (s *Server) Handler() http.Handler {
	return s.router
}

// RateLimiter returns the ingest limiter
func (s *Server) RateLimiter() *RateLimiter {
	return s.limiter
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	metrics.UpdateComponent(metrics.ComponentAPI, true, "")
	s.logger.Info().Str("addr", s.cfg.Addr).Msg("API listening")

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		metrics.UpdateComponent(metrics.ComponentAPI, false, err.Error())
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
