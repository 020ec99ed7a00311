// Package api exposes the tracker over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/hetulpatel/pricearb/internal/collectors"
	"github.com/hetulpatel/pricearb/internal/config"
	"github.com/hetulpatel/pricearb/internal/logging"
	"github.com/hetulpatel/pricearb/internal/service"
)

// Version is reported by GET /.
const Version = "1.0.0"

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RateLimitRPS    float64 // per client; <= 0 disables limiting
	RateLimitBurst  int
}

// ConfigFrom adapts the api config section.
func ConfigFrom(cfg config.APIConfig) ServerConfig {
	return ServerConfig{
		Host:            cfg.Host,
		Port:            cfg.Port,
		ReadTimeout:     cfg.ReadTimeout.Duration,
		WriteTimeout:    cfg.WriteTimeout.Duration,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		RateLimitRPS:    cfg.RateLimitRPS,
		RateLimitBurst:  cfg.RateLimitBurst,
	}
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	tracker    *service.Tracker
	sources    config.SourcesConfig
	config     ServerConfig

	// buildSources turns a scrape request into collectors; replaced in tests.
	buildSources func(ScrapeRequest) ([]collectors.Source, error)
}

// NewServer creates a server backed by tracker. sources supplies the scraper
// settings (user agent, timeouts, static source name) for POST /scrape.
func NewServer(cfg ServerConfig, tracker *service.Tracker, sources config.SourcesConfig) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		tracker: tracker,
		sources: sources,
		config:  cfg,
	}
	s.buildSources = s.scrapeSources
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	if s.config.RateLimitRPS > 0 {
		s.router.Use(RateLimitMiddleware(NewRateLimiter(s.config.RateLimitRPS, s.config.RateLimitBurst)))
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

func (s *Server) setupRoutes() {
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "Not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	s.router.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	s.router.HandleFunc("/scrape", s.handleScrape).Methods(http.MethodPost)
	s.router.HandleFunc("/opportunities", s.handleOpportunities).Methods(http.MethodGet)
	s.router.HandleFunc("/detect", s.handleDetect).Methods(http.MethodPost)
	s.router.HandleFunc("/snapshots", s.handleListSnapshots).Methods(http.MethodGet)
	s.router.HandleFunc("/snapshots/{id}", s.handleGetSnapshot).Methods(http.MethodGet)
	s.router.HandleFunc("/snapshots/{id}", s.handleDeleteSnapshot).Methods(http.MethodDelete)
	s.router.HandleFunc("/items", s.handleItems).Methods(http.MethodGet)
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Price Arbitrage API",
		"version": Version,
		"endpoints": map[string]string{
			"POST /scrape":                    "Scrape product data and store a snapshot",
			"GET /opportunities":              "Get stored arbitrage opportunities",
			"POST /detect":                    "Detect arbitrage opportunities",
			"GET /items":                      "Get items from a snapshot",
			"GET /snapshots":                  "Get available snapshots",
			"GET /snapshots/{snapshot_id}":    "Get specific snapshot details",
			"DELETE /snapshots/{snapshot_id}": "Delete a snapshot and its data",
		},
	})
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	logging.Infof("[api] listening on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Infof("[api] shutting down")
	if s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}
	return s.httpServer.Shutdown(ctx)
}
