package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"CaseCollector/internal/casestore"
	"CaseCollector/internal/dedup"
	"CaseCollector/internal/domain"
	"CaseCollector/internal/metrics"
	"CaseCollector/internal/normalize"
	"CaseCollector/internal/ports"
	"CaseCollector/internal/source"
	"CaseCollector/internal/validate"
)

const (
	runIDLayout      = "20060102-150405"
	idlePollInterval = 20 * time.Millisecond
)

// CaseExtractor turns one article into candidate cases.
type CaseExtractor interface {
	Extract(detail domain.ArticleDetail, sourceName string) []domain.CandidateCase
}

// Settings are the collector knobs taken from configuration.
type Settings struct {
	Enabled bool
	// RequestDelay overrides every adapter's own rate limit when positive.
	RequestDelay time.Duration
	MaxArticles  int
	Keywords     []string
	Sources      []string
	Location     *time.Location
}

// CollectorDeps wires all driven adapters into the collector.
type CollectorDeps struct {
	Sources   *source.Registry
	Store     *casestore.Store
	Extractor CaseExtractor
	Validator *validate.Validator
	Scheduler ports.Scheduler
	Notifier  ports.Notifier
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Clock     func() time.Time
}

// Status is the externally visible collector state.
type Status struct {
	Enabled           bool               `json:"enabled"`
	IsRunning         bool               `json:"is_running"`
	LastRun           *time.Time         `json:"last_run"`
	LastResult        *domain.RunSummary `json:"last_result"`
	NextRun           *time.Time         `json:"next_run"`
	RegisteredSources []string           `json:"registered_sources"`
	StorageStats      casestore.Stats    `json:"storage_stats"`
	DedupStats        dedup.Stats        `json:"dedup_stats"`
}

// Collector runs collection passes over the registered sources.
// At most one run is active at a time; triggers received meanwhile are rejected.
type Collector struct {
	settings  Settings
	sources   *source.Registry
	store     *casestore.Store
	extractor CaseExtractor
	validator *validate.Validator
	trigger   *Scheduler
	notifier  ports.Notifier
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time

	running atomic.Bool

	mu         sync.RWMutex
	index      *dedup.Deduplicator
	lastRun    *time.Time
	lastResult *domain.RunSummary
}

// NewCollector constructs the collector. Initialize must be called before the first run.
func NewCollector(settings Settings, deps CollectorDeps) *Collector {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	if settings.MaxArticles <= 0 {
		settings.MaxArticles = 50
	}
	validator := deps.Validator
	if validator == nil {
		validator = validate.New(0)
	}
	registry := deps.Sources
	if registry == nil {
		registry = source.NewRegistry()
	}

	c := &Collector{
		settings:  settings,
		sources:   registry,
		store:     deps.Store,
		extractor: deps.Extractor,
		validator: validator,
		notifier:  deps.Notifier,
		metrics:   deps.Metrics,
		logger:    logger.With("component", "collector"),
		now:       now,
		index:     dedup.New(now),
	}
	c.trigger = NewScheduler(deps.Scheduler, c)
	return c
}

// Initialize seeds the dedup index from every stored case and starts the periodic trigger.
func (c *Collector) Initialize(ctx context.Context) error {
	known, err := c.store.KnownCases(ctx)
	if err != nil {
		return fmt.Errorf("seed dedup index: %w", err)
	}
	index := dedup.New(c.now)
	index.Seed(known)

	c.mu.Lock()
	c.index = index
	c.mu.Unlock()

	c.logger.Info("collector initialized", "known_cases", len(known), "sources", c.sources.Names())

	if !c.settings.Enabled {
		return nil
	}
	if err := c.trigger.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	return nil
}

// Cleanup stops the periodic trigger, waits for an active run (including one started by
// RunAsync) bounded by ctx, and releases every adapter session.
func (c *Collector) Cleanup(ctx context.Context) error {
	var errs []error
	if err := c.trigger.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
	}
	if err := c.waitIdle(ctx); err != nil {
		// The active run still owns its adapter sessions and releases them itself.
		return errors.Join(append(errs, fmt.Errorf("wait for active run: %w", err))...)
	}
	for _, adapter := range c.sources.Adapters() {
		adapter.Cleanup()
	}
	return errors.Join(errs...)
}

func (c *Collector) waitIdle(ctx context.Context) error {
	if !c.running.Load() {
		return nil
	}
	ticker := time.NewTicker(idlePollInterval)
	defer ticker.Stop()
	for c.running.Load() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// IsRunning reports whether a run is active.
func (c *Collector) IsRunning() bool {
	return c.running.Load()
}

// Run executes one collection pass and blocks until it finishes. A run requested while
// another is active returns a summary with status rejected and changes nothing.
func (c *Collector) Run(ctx context.Context, req domain.RunRequest) domain.RunSummary {
	if !c.running.CompareAndSwap(false, true) {
		return c.rejected(req)
	}
	defer c.running.Store(false)
	return c.execute(ctx, c.newRunID(), req)
}

// RunAsync acquires the run guard and executes the pass in the background.
// It returns the run identifier, or domain.ErrAlreadyRunning.
func (c *Collector) RunAsync(ctx context.Context, req domain.RunRequest) (string, error) {
	if !c.running.CompareAndSwap(false, true) {
		c.metrics.RunRejected()
		return "", domain.ErrAlreadyRunning
	}
	id := c.newRunID()
	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer c.running.Store(false)
		c.execute(runCtx, id, req)
	}()
	return id, nil
}

func (c *Collector) rejected(req domain.RunRequest) domain.RunSummary {
	c.metrics.RunRejected()
	c.logger.Warn("run rejected", "reason", domain.ErrAlreadyRunning)
	return domain.RunSummary{
		Timestamp:   c.now(),
		Sources:     c.sourceNames(req),
		Status:      domain.RunRejected,
		SourceStats: map[string]domain.RunStats{},
		Errors:      []string{domain.ErrAlreadyRunning.Error()},
	}
}

func (c *Collector) newRunID() string {
	return "COL-" + c.now().In(c.settings.Location).Format(runIDLayout) + "-" + uuid.NewString()[:8]
}

func (c *Collector) sourceNames(req domain.RunRequest) []string {
	if len(req.Sources) > 0 {
		return slices.Clone(req.Sources)
	}
	if len(c.settings.Sources) > 0 {
		return slices.Clone(c.settings.Sources)
	}
	return c.sources.Names()
}

// execute runs with the guard held by the caller.
func (c *Collector) execute(ctx context.Context, id string, req domain.RunRequest) domain.RunSummary {
	start := c.now()
	keywords := req.Keywords
	if len(keywords) == 0 {
		keywords = c.settings.Keywords
	}
	maxArticles := req.MaxArticles
	if maxArticles <= 0 {
		maxArticles = c.settings.MaxArticles
	}

	summary := domain.RunSummary{
		ID:          id,
		Timestamp:   start,
		Sources:     c.sourceNames(req),
		Status:      domain.RunRunning,
		SourceStats: make(map[string]domain.RunStats),
		Errors:      []string{},
	}
	logger := c.logger.With("run_id", id)
	logger.Info("run started", "sources", summary.Sources, "keywords", len(keywords), "max_articles", maxArticles)
	c.metrics.RunStarted()

	c.mu.RLock()
	index := c.index.Clone()
	c.mu.RUnlock()

	var accumulated []domain.CandidateCase
	for _, name := range summary.Sources {
		adapter, err := c.sources.Resolve(name)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("unknown adapter: %s", name))
			continue
		}
		cases, stats, err := c.collectFrom(ctx, logger, adapter, keywords, maxArticles)
		summary.SourceStats[name] = stats
		summary.Statistics.Add(stats)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("error from %s: %v", name, err))
			logger.Warn("source failed", "source", name, "error", err)
		}
		accumulated = append(accumulated, cases...)
	}

	unique, duplicates := index.FilterDuplicates(accumulated)
	summary.Statistics.CasesDuplicate = len(duplicates)

	var approved, pending []domain.CandidateCase
	for _, cand := range unique {
		if c.validator.CanAutoApprove(cand) {
			approved = append(approved, cand)
		} else {
			pending = append(pending, cand)
		}
	}

	err := c.store.PersistRun(ctx, casestore.RunBatch{Pending: pending, Approved: approved, Duplicates: duplicates})
	if err != nil {
		summary.Status = domain.RunFailed
		summary.Errors = append(summary.Errors, fmt.Sprintf("persist run: %v", err))
		logger.Error("run failed", "error", err)
	} else {
		summary.Status = domain.RunCompleted
		summary.Statistics.CasesAdded = len(unique)
		summary.Statistics.CasesAutoApproved = len(approved)
		c.mu.Lock()
		c.index = index
		c.mu.Unlock()
	}

	summary.DurationSeconds = roundSeconds(c.now().Sub(start))
	c.finish(ctx, logger, start, summary)
	return summary
}

// finish records the outcome. Failures here never change the run status.
func (c *Collector) finish(ctx context.Context, logger *slog.Logger, start time.Time, summary domain.RunSummary) {
	c.mu.Lock()
	c.lastRun = &start
	c.lastResult = &summary
	c.mu.Unlock()

	if err := c.store.AppendRunLog(ctx, summary); err != nil {
		logger.Warn("append run log failed", "error", err)
	}
	c.metrics.RunFinished(summary)

	st := summary.Statistics
	logger.Info("run finished",
		"status", summary.Status,
		"searched", st.ArticlesSearched,
		"fetched", st.ArticlesFetched,
		"extracted", st.CasesExtracted,
		"valid", st.CasesValid,
		"duplicates", st.CasesDuplicate,
		"added", st.CasesAdded,
		"auto_approved", st.CasesAutoApproved,
		"duration_seconds", summary.DurationSeconds,
	)

	if c.notifier == nil || (summary.Status == domain.RunCompleted && st.CasesAdded == 0) {
		return
	}
	if err := c.notifier.PublishDigest(ctx, buildDigestMessage(summary)); err != nil {
		logger.Warn("publish digest failed", "error", err)
	}
}

func (c *Collector) collectFrom(
	ctx context.Context,
	logger *slog.Logger,
	adapter ports.SourceAdapter,
	keywords []string,
	maxArticles int,
) ([]domain.CandidateCase, domain.RunStats, error) {
	var stats domain.RunStats
	name := adapter.Name()
	logger = logger.With("source", name)

	if err := adapter.Initialize(ctx); err != nil {
		return nil, stats, fmt.Errorf("initialize: %w", err)
	}
	defer adapter.Cleanup()

	limiter := c.limiterFor(adapter)
	query := domain.SearchQuery{Keywords: keywords, MaxResults: maxArticles}

	var cases []domain.CandidateCase
	for article := range adapter.Search(ctx, query) {
		stats.ArticlesSearched++
		if stats.ArticlesFetched >= maxArticles {
			break
		}

		if err := limiter.Wait(ctx); err != nil {
			return cases, stats, fmt.Errorf("rate limiter: %w", err)
		}
		detail, err := adapter.FetchDetail(ctx, article.ID)
		if err != nil {
			stats.FetchFailures++
			logger.Warn("fetch detail failed", "article_id", article.ID, "error", err)
			continue
		}
		if detail == nil {
			logger.Debug("article not found", "article_id", article.ID)
			continue
		}
		stats.ArticlesFetched++

		extracted := c.extractor.Extract(*detail, name)
		stats.CasesExtracted += len(extracted)
		for _, raw := range extracted {
			cand := normalize.Normalize(raw)
			result := c.validator.Validate(cand)
			if !result.Valid {
				logger.Debug("case dropped", "case_id", cand.ID, "issues", result.Issues)
				continue
			}
			stats.CasesValid++
			cases = append(cases, cand)
		}
	}

	logger.Info("source collected", "fetched", stats.ArticlesFetched, "valid", stats.CasesValid)
	return cases, stats, nil
}

func (c *Collector) limiterFor(adapter ports.SourceAdapter) *rate.Limiter {
	delay := c.settings.RequestDelay
	if delay <= 0 {
		delay = adapter.RateLimit()
	}
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// Status reports the collector state together with storage statistics.
func (c *Collector) Status(ctx context.Context) (Status, error) {
	stats, err := c.store.Stats(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("storage stats: %w", err)
	}

	c.mu.RLock()
	st := Status{
		Enabled:           c.settings.Enabled,
		IsRunning:         c.running.Load(),
		LastRun:           c.lastRun,
		LastResult:        c.lastResult,
		RegisteredSources: c.sources.Names(),
		StorageStats:      stats,
		DedupStats:        c.index.Stats(),
	}
	c.mu.RUnlock()

	if next, ok := c.trigger.NextRun(); ok {
		st.NextRun = &next
	}
	return st, nil
}

// ListPending pages through the review queue.
func (c *Collector) ListPending(ctx context.Context, limit, offset int) ([]domain.PersistedCase, int, error) {
	if limit < 0 || offset < 0 {
		return nil, 0, fmt.Errorf("%w: limit and offset must not be negative", domain.ErrInvalidInput)
	}
	return c.store.ListPending(ctx, limit, offset)
}

// Approve moves pending cases to the approved collection.
func (c *Collector) Approve(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: case_ids must not be empty", domain.ErrInvalidInput)
	}
	return c.store.Approve(ctx, ids)
}

// Reject moves pending cases to the rejected collection, keeping reason.
func (c *Collector) Reject(ctx context.Context, ids []string, reason string) (int, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: case_ids must not be empty", domain.ErrInvalidInput)
	}
	return c.store.Reject(ctx, ids, reason)
}

// AutoApprove approves pending cases whose confidence reaches threshold.
// A zero threshold uses the configured one. It returns the threshold applied.
func (c *Collector) AutoApprove(ctx context.Context, threshold float64) (int, float64, error) {
	if threshold == 0 {
		threshold = c.validator.Threshold()
	}
	if threshold < 0 || threshold > 1 {
		return 0, threshold, fmt.Errorf("%w: threshold must be in [0,1], got %v", domain.ErrInvalidInput, threshold)
	}
	n, err := c.store.AutoApproveAbove(ctx, threshold)
	return n, threshold, err
}

// Logs returns the most recent run summaries.
func (c *Collector) Logs(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", domain.ErrInvalidInput)
	}
	return c.store.RunLogs(ctx, limit)
}

// Stats reports storage statistics.
func (c *Collector) Stats(ctx context.Context) (casestore.Stats, error) {
	return c.store.Stats(ctx)
}

func roundSeconds(d time.Duration) float64 {
	return float64(d.Round(10*time.Millisecond)) / float64(time.Second)
}
