// Package twincore provides the base HTTP server, CLI flags, middleware chain,
// and response helpers for the subscription twin.
package twincore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/pflag"
)

// DefaultPort is the port the twin listens on when neither --port nor PORT
// is given. It is also the client's default service port.
const DefaultPort = 8000

// Config holds the twin configuration, parsed from CLI flags.
type Config struct {
	Port       int
	Latency    time.Duration
	FailRate   float64
	SeedFile   string
	Verbose    bool
	AuthSecret string
	Name       string // twin name for logging
}

// ParseFlags parses the twin flags from args (without the program name).
// PORT is consulted when --port is not given.
func ParseFlags(twinName string, args []string) (*Config, error) {
	cfg := &Config{Name: twinName}
	fs := pflag.NewFlagSet(twinName, pflag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", DefaultPort, "HTTP listen port")
	fs.DurationVar(&cfg.Latency, "latency", 0, "base simulated latency")
	fs.Float64Var(&cfg.FailRate, "fail-rate", 0, "random failure rate 0.0-1.0")
	fs.StringVar(&cfg.SeedFile, "seed-file", "", "path to JSON fixture for initial state")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "enable request logging")
	fs.StringVar(&cfg.AuthSecret, "auth-secret", "", "require HS256 bearer tokens signed with this secret")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if !fs.Changed("port") {
		if p := os.Getenv("PORT"); p != "" {
			n, err := strconv.Atoi(p)
			if err != nil {
				return nil, fmt.Errorf("invalid PORT %q: %w", p, err)
			}
			cfg.Port = n
		}
	}
	if cfg.FailRate < 0 || cfg.FailRate > 1 {
		return nil, fmt.Errorf("fail-rate must be between 0.0 and 1.0, got %v", cfg.FailRate)
	}
	if cfg.Latency < 0 {
		return nil, errors.New("latency must not be negative")
	}
	return cfg, nil
}

// Twin is the base server. It wraps a chi router with the common middleware
// and provides lifecycle management.
type Twin struct {
	Config  *Config
	Router  *chi.Mux
	Logger  *slog.Logger
	mw      *Middleware
	metrics *Metrics
}

// New creates a Twin. Logs go to stdout as JSON.
func New(cfg *Config) *Twin {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	return NewWithLogger(cfg, logger)
}

// NewWithLogger creates a Twin that logs to logger.
func NewWithLogger(cfg *Config, logger *slog.Logger) *Twin {
	r := chi.NewRouter()
	mw := NewMiddleware(cfg, logger)
	metrics := NewMetrics()

	// Latency and failure middleware are always mounted so runtime config
	// updates take effect immediately; both check their setting per request.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.CORS)
	r.Use(metrics.Instrument)
	r.Use(mw.RequestLog)
	r.Use(mw.LatencyInjection)
	r.Use(mw.RandomFailure)

	return &Twin{
		Config:  cfg,
		Router:  r,
		Logger:  logger,
		mw:      mw,
		metrics: metrics,
	}
}

// Middleware returns the middleware instance (fault registry, request log).
func (t *Twin) Middleware() *Middleware {
	return t.mw
}

// Metrics returns the twin's Prometheus collectors.
func (t *Twin) Metrics() *Metrics {
	return t.metrics
}

// GetConfig returns the current runtime configuration as a map.
func (t *Twin) GetConfig() map[string]any {
	rt := t.mw.Runtime()
	return map[string]any{
		"name":      t.Config.Name,
		"port":      t.Config.Port,
		"latency":   rt.Latency.String(),
		"fail_rate": rt.FailRate,
		"verbose":   rt.Verbose,
		"auth":      t.Config.AuthSecret != "",
	}
}

// UpdateConfig updates runtime settings from a map. Only latency, fail_rate,
// and verbose can change at runtime. All fields are validated before any is
// applied.
func (t *Twin) UpdateConfig(updates map[string]any) error {
	rt := t.mw.Runtime()
	for k, v := range updates {
		switch k {
		case "latency":
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("latency must be a duration string")
			}
			d, err := time.ParseDuration(s)
			if err != nil {
				return fmt.Errorf("invalid latency duration: %w", err)
			}
			if d < 0 {
				return fmt.Errorf("latency must not be negative")
			}
			rt.Latency = d
		case "fail_rate":
			f, ok := v.(float64)
			if !ok {
				return fmt.Errorf("fail_rate must be a number")
			}
			if f < 0 || f > 1 {
				return fmt.Errorf("fail_rate must be between 0.0 and 1.0")
			}
			rt.FailRate = f
		case "verbose":
			b, ok := v.(bool)
			if !ok {
				return fmt.Errorf("verbose must be a boolean")
			}
			rt.Verbose = b
		case "name", "port", "auth":
			return fmt.Errorf("%s cannot be changed at runtime", k)
		default:
			return fmt.Errorf("unknown config key: %s", k)
		}
	}
	t.mw.SetRuntime(rt)
	return nil
}

// Serve starts the HTTP server and blocks until ctx is done or SIGINT/SIGTERM
// arrives, then shuts down gracefully.
func (t *Twin) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", t.Config.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      t.Router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		t.Logger.Info("starting twin", "name", t.Config.Name, "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("serving %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}
	t.Logger.Info("shutting down twin", "name", t.Config.Name)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// ServeHTTP implements http.Handler so Twin can be used directly in tests.
func (t *Twin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t.Router.ServeHTTP(w, r)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// Error writes a JSON error response of the form {"error": message}.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
