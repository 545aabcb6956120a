// Package http serves reports and receipt capture over JSON.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"andamento/internal/core"
	applog "andamento/internal/log"
	"andamento/internal/report"
)

const defaultRequestTimeout = 7 * time.Second

// ReportProvider computes the report of one account. An empty account
// selects every account.
type ReportProvider interface {
	Report(ctx context.Context, accountID string, preset report.Preset) (report.Report, error)
}

// ReceiptRecorder stores a scanned receipt as an expense.
type ReceiptRecorder interface {
	RecordReceipt(ctx context.Context, accountID string, scan core.ReceiptScan) (string, error)
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Options wires the server to its collaborators. Reports is required.
// A nil Receipts leaves POST /api/receipts unavailable.
type Options struct {
	Reports        ReportProvider
	Receipts       ReceiptRecorder
	Checks         map[string]ReadinessCheck
	Logger         *applog.Logger
	RateLimit      RateLimitConfig
	RequestTimeout time.Duration
}

type Server struct {
	http.Server

	reports  ReportProvider
	receipts ReceiptRecorder
	checks   map[string]ReadinessCheck
	logger   *applog.Logger
	events   *applog.StructuredLogger
	limiter  *ipRateLimiter
	timeout  time.Duration
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	s := &Server{
		reports:  opts.Reports,
		receipts: opts.Receipts,
		checks:   opts.Checks,
		logger:   logger,
		events:   applog.NewStructuredLogger(logger),
		limiter:  newIPRateLimiter(opts.RateLimit),
		timeout:  timeout,
		started:  time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.Handle("/api/presets", s.api(s.handlePresets))
	mux.Handle("/api/report", s.api(s.handleReport))
	mux.Handle("/api/receipts", s.api(s.handleReceipt))

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.withRequestContext(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// api applies the middleware every /api route shares.
func (s *Server) api(h http.HandlerFunc) http.Handler {
	return s.withSecurityHeaders(s.withRateLimit(h))
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.Server.Shutdown(ctx)
	})
	return err
}
