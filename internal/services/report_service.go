package services

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"andamento/internal/cache"
	"andamento/internal/core"
	applog "andamento/internal/log"
	"andamento/internal/report"
)

// ErrSourceUnavailable wraps failures of the transaction source.
var ErrSourceUnavailable = errors.New("transaction source unavailable")

const (
	defaultCacheEntries = 256
	defaultCacheTTL     = time.Minute
	defaultFetchTimeout = 10 * time.Second
)

// ReportService serves reports for an account. Transaction lists are cached
// per account until invalidated. Reports are cached per account,
// transaction fingerprint, preset and reference day.
type ReportService struct {
	lister  TransactionLister
	engine  *report.Engine
	lists   cache.Cache[[]core.Transaction]
	reports cache.Cache[report.Report]
	logger  *applog.Logger
	events  *applog.StructuredLogger
	fetches singleflight.Group

	fetchTimeout time.Duration

	// generations counts invalidations per account. A fetch only fills the
	// list cache if no invalidation happened while it was reading.
	mu          sync.Mutex
	generations map[string]uint64
}

var _ Invalidator = (*ReportService)(nil)

type ReportOption func(*ReportService)

func WithListCache(c cache.Cache[[]core.Transaction]) ReportOption {
	return func(s *ReportService) { s.lists = c }
}

func WithReportCache(c cache.Cache[report.Report]) ReportOption {
	return func(s *ReportService) { s.reports = c }
}

func WithLogger(l *applog.Logger) ReportOption {
	return func(s *ReportService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithFetchTimeout bounds one source read. The read is shared by every
// caller waiting on it, so it does not follow any single caller's context.
func WithFetchTimeout(d time.Duration) ReportOption {
	return func(s *ReportService) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

func NewReportService(lister TransactionLister, engine *report.Engine, opts ...ReportOption) *ReportService {
	if engine == nil {
		engine = report.NewEngine()
	}
	s := &ReportService{
		lister:       lister,
		engine:       engine,
		logger:       applog.New(applog.DefaultConfig()),
		fetchTimeout: defaultFetchTimeout,
		generations:  make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.lists == nil {
		s.lists = cache.NewLRUCache[[]core.Transaction](defaultCacheEntries, defaultCacheTTL)
	}
	if s.reports == nil {
		s.reports = cache.NewLRUCache[report.Report](defaultCacheEntries, defaultCacheTTL)
	}
	s.logger = s.logger.WithComponent(applog.ComponentReport)
	s.events = applog.NewStructuredLogger(s.logger)
	return s
}

// Engine exposes the engine for callers that need its location or clock.
func (s *ReportService) Engine() *report.Engine {
	return s.engine
}

// Report computes, or returns a memoized, report for accountID.
func (s *ReportService) Report(ctx context.Context, accountID string, preset report.Preset) (report.Report, error) {
	if !preset.Valid() {
		return report.Report{}, fmt.Errorf("%w: %q", report.ErrInvalidPreset, string(preset))
	}

	txs, err := s.transactions(ctx, accountID)
	if err != nil {
		return report.Report{}, err
	}

	now := s.engine.Now()
	key := reportKey(accountID, txs, preset, civil.DateOf(now.In(s.engine.Location())))

	if cached, ok := s.reports.Get(ctx, key); ok {
		s.logger.DebugContext(ctx, "Report cache hit", applog.FieldCacheKey, key)
		s.events.LogReportComputed(ctx, accountID, preset.String(), len(cached.Buckets), cached.SkippedCount(), true)
		return cached, nil
	}

	rep, err := s.engine.ComputeAt(txs, preset, now)
	if err != nil {
		return report.Report{}, err
	}
	if rep.SkippedCount() > 0 {
		s.logger.WarnContext(ctx, "Malformed transactions skipped",
			applog.FieldAccountID, accountID,
			applog.FieldSkippedCount, rep.SkippedCount(),
			"first", rep.Skipped[0].Error())
	}
	s.reports.Set(ctx, key, rep)
	s.events.LogReportComputed(ctx, accountID, preset.String(), len(rep.Buckets), rep.SkippedCount(), false)
	return rep, nil
}

// Invalidate drops the cached transaction list for accountID and the
// all-accounts list. Reports keyed on the old fingerprint become unreachable
// and expire on their own.
func (s *ReportService) Invalidate(ctx context.Context, accountID string) {
	keys := []string{accountID}
	if accountID != "" {
		keys = append(keys, "")
	}

	s.mu.Lock()
	for _, k := range keys {
		s.generations[k]++
		// later readers must not join a read that started before the write
		s.fetches.Forget(k)
	}
	s.mu.Unlock()

	for _, k := range keys {
		s.lists.Delete(ctx, k)
	}
	s.logger.InfoContext(ctx, "Transaction cache invalidated",
		applog.FieldAccountID, accountID,
		applog.FieldOperation, applog.OpInvalidate)
}

func (s *ReportService) transactions(ctx context.Context, accountID string) ([]core.Transaction, error) {
	if txs, ok := s.lists.Get(ctx, accountID); ok {
		return txs, nil
	}
	if s.lister == nil {
		return nil, fmt.Errorf("%w: no lister configured", ErrSourceUnavailable)
	}

	// concurrent misses for one account share a single source read
	ch := s.fetches.DoChan(accountID, func() (any, error) {
		gen := s.generation(accountID)
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()
		txs, err := s.lister.ListTransactions(fetchCtx, accountID)
		if err != nil {
			return nil, err
		}
		s.storeIfCurrent(fetchCtx, accountID, gen, txs)
		return txs, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	v, err, shared := res.Val, res.Err, res.Shared
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list transactions",
			applog.FieldAccountID, accountID,
			applog.FieldOperation, applog.OpList,
			applog.FieldError, err)
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	txs := v.([]core.Transaction)
	s.logger.DebugContext(ctx, "Transactions loaded",
		applog.FieldAccountID, accountID,
		applog.FieldTxCount, len(txs),
		"shared", shared)
	return txs, nil
}

func (s *ReportService) generation(accountID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[accountID]
}

// storeIfCurrent caches txs unless accountID was invalidated after gen was
// read. The check and the write happen under mu so an Invalidate cannot
// slip between them.
func (s *ReportService) storeIfCurrent(ctx context.Context, accountID string, gen uint64, txs []core.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[accountID] != gen {
		s.logger.DebugContext(ctx, "Discarding list read overtaken by a write",
			applog.FieldAccountID, accountID)
		return
	}
	s.lists.Set(ctx, accountID, txs)
}

func reportKey(accountID string, txs []core.Transaction, preset report.Preset, day civil.Date) string {
	return fmt.Sprintf("%s|%016x|%s|%s", accountID, fingerprint(txs), preset, day)
}

// fingerprint identifies a transaction set regardless of order. Per-record
// hashes are summed, not XORed, so duplicate records still count.
func fingerprint(txs []core.Transaction) uint64 {
	var (
		sum uint64
		buf []byte
		ts  [8]byte
	)
	for _, tx := range txs {
		buf = buf[:0]
		buf = append(buf, tx.ID...)
		buf = append(buf, 0)
		buf = append(buf, tx.AccountID...)
		buf = append(buf, 0)
		binary.BigEndian.PutUint64(ts[:], uint64(tx.Date.Unix()))
		buf = append(buf, ts[:]...)
		binary.BigEndian.PutUint64(ts[:], uint64(tx.Date.Nanosecond()))
		buf = append(buf, ts[:]...)
		buf = append(buf, string(tx.Type)...)
		buf = append(buf, 0)
		buf = append(buf, tx.Amount.String()...)
		sum += xxhash.Sum64(buf)
	}
	binary.BigEndian.PutUint64(ts[:], uint64(len(txs)))
	return sum ^ xxhash.Sum64(ts[:])
}
