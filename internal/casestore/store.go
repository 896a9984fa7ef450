// Package casestore persists collected cases, duplicates and run logs over a document store.
package casestore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"CaseCollector/internal/domain"
	"CaseCollector/internal/ports"
)

// Collection names.
const (
	CollectionApproved   = "approved"
	CollectionPending    = "pending"
	CollectionRejected   = "rejected"
	CollectionDuplicates = "duplicates"
	CollectionRunLogs    = "run_logs"
)

const (
	maxDuplicates = 1000
	maxRunLogs    = 500
)

// Stats summarises the stored collections.
type Stats struct {
	TotalCases           int   `json:"total_cases"`
	PendingCases         int   `json:"pending_cases"`
	RejectedCases        int   `json:"rejected_cases"`
	OnlineCollectedCases int   `json:"online_collected_cases"`
	ApprovedBytes        int64 `json:"approved_bytes"`
}

// RunBatch is everything one collection run writes.
type RunBatch struct {
	Pending    []domain.CandidateCase
	Approved   []domain.CandidateCase
	Duplicates []domain.DuplicateRecord
}

// Store owns the case collections. Every mutation holds a single writer lock.
type Store struct {
	docs   ports.DocumentStore
	mu     sync.Mutex
	now    func() time.Time
	logger *slog.Logger
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger.With("component", "casestore") }
}

// New builds a Store over docs.
func New(docs ports.DocumentStore, opts ...Option) *Store {
	s := &Store{docs: docs, now: time.Now, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func load[T any](ctx context.Context, docs ports.DocumentStore, collection string) ([]T, error) {
	raw, err := docs.Load(ctx, collection)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", collection, err)
	}
	return items, nil
}

func encode[T any](collection string, items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", collection, err)
	}
	return raw, nil
}

func (s *Store) save(ctx context.Context, payloads map[string][]byte) error {
	if batch, ok := s.docs.(ports.BatchSaver); ok && len(payloads) > 1 {
		return batch.SaveBatch(ctx, payloads)
	}
	for _, name := range saveOrder(payloads) {
		if err := s.docs.Save(ctx, name, payloads[name]); err != nil {
			return err
		}
	}
	return nil
}

// saveOrder writes pending last: a failure part way through leaves a moved case in both
// collections rather than in neither.
func saveOrder(payloads map[string][]byte) []string {
	names := slices.Sorted(maps.Keys(payloads))
	if i := slices.Index(names, CollectionPending); i >= 0 {
		names = append(slices.Delete(names, i, i+1), CollectionPending)
	}
	return names
}

// LoadExisting returns the approved collection.
func (s *Store) LoadExisting(ctx context.Context) ([]domain.PersistedCase, error) {
	return load[domain.PersistedCase](ctx, s.docs, CollectionApproved)
}

// LoadPending returns the review queue.
func (s *Store) LoadPending(ctx context.Context) ([]domain.PersistedCase, error) {
	return load[domain.PersistedCase](ctx, s.docs, CollectionPending)
}

// LoadRejected returns rejected cases with their reasons.
func (s *Store) LoadRejected(ctx context.Context) ([]domain.PersistedCase, error) {
	return load[domain.PersistedCase](ctx, s.docs, CollectionRejected)
}

// ListPending pages through the review queue.
func (s *Store) ListPending(ctx context.Context, limit, offset int) ([]domain.PersistedCase, int, error) {
	pending, err := s.LoadPending(ctx)
	if err != nil {
		return nil, 0, err
	}
	total := len(pending)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []domain.PersistedCase{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return pending[offset:end], total, nil
}

// KnownCases returns every approved, pending and rejected case for dedup seeding.
func (s *Store) KnownCases(ctx context.Context) ([]domain.CandidateCase, error) {
	var known []domain.CandidateCase
	for _, name := range []string{CollectionApproved, CollectionPending, CollectionRejected} {
		cases, err := load[domain.PersistedCase](ctx, s.docs, name)
		if err != nil {
			return nil, err
		}
		for _, c := range cases {
			known = append(known, c.CandidateCase)
		}
	}
	return known, nil
}

// AddToPending appends cases to the review queue.
func (s *Store) AddToPending(ctx context.Context, cases []domain.CandidateCase) (int, error) {
	if len(cases) == 0 {
		return 0, nil
	}
	err := s.PersistRun(ctx, RunBatch{Pending: cases})
	if err != nil {
		return 0, err
	}
	return len(cases), nil
}

// AddApproved stores cases directly in the approved collection.
func (s *Store) AddApproved(ctx context.Context, cases []domain.CandidateCase) (int, error) {
	if len(cases) == 0 {
		return 0, nil
	}
	err := s.PersistRun(ctx, RunBatch{Approved: cases})
	if err != nil {
		return 0, err
	}
	return len(cases), nil
}

// PersistRun writes pending, approved and archived duplicates together.
func (s *Store) PersistRun(ctx context.Context, batch RunBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	payloads := make(map[string][]byte, 3)

	if len(batch.Pending) > 0 {
		pending, err := s.LoadPending(ctx)
		if err != nil {
			return err
		}
		for _, c := range batch.Pending {
			pending = append(pending, domain.PersistedCase{CandidateCase: c, Status: domain.StatusPending, CreatedAt: now})
		}
		if payloads[CollectionPending], err = encode(CollectionPending, pending); err != nil {
			return err
		}
	}

	if len(batch.Approved) > 0 {
		approved, err := s.LoadExisting(ctx)
		if err != nil {
			return err
		}
		for _, c := range batch.Approved {
			approvedAt := now
			approved = append(approved, domain.PersistedCase{
				CandidateCase: c,
				Status:        domain.StatusApproved,
				CreatedAt:     now,
				ApprovedAt:    &approvedAt,
			})
		}
		if payloads[CollectionApproved], err = encode(CollectionApproved, approved); err != nil {
			return err
		}
	}

	if len(batch.Duplicates) > 0 {
		archive, err := load[domain.DuplicateRecord](ctx, s.docs, CollectionDuplicates)
		if err != nil {
			return err
		}
		archive = capTail(append(archive, batch.Duplicates...), maxDuplicates)
		if payloads[CollectionDuplicates], err = encode(CollectionDuplicates, archive); err != nil {
			return err
		}
	}

	if len(payloads) == 0 {
		return nil
	}
	return s.save(ctx, payloads)
}

// Approve moves the given pending cases to approved and returns how many moved.
func (s *Store) Approve(ctx context.Context, ids []string) (int, error) {
	want := idSet(ids)
	return s.movePending(ctx, func(c domain.PersistedCase) bool { return want[c.ID] }, CollectionApproved, "")
}

// Reject moves the given pending cases to the rejected collection with reason.
func (s *Store) Reject(ctx context.Context, ids []string, reason string) (int, error) {
	want := idSet(ids)
	return s.movePending(ctx, func(c domain.PersistedCase) bool { return want[c.ID] }, CollectionRejected, reason)
}

// AutoApproveAbove approves every pending case whose confidence reaches threshold.
func (s *Store) AutoApproveAbove(ctx context.Context, threshold float64) (int, error) {
	return s.movePending(ctx, func(c domain.PersistedCase) bool { return c.ConfidenceScore >= threshold }, CollectionApproved, "")
}

func (s *Store) movePending(ctx context.Context, match func(domain.PersistedCase) bool, target, reason string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, err := s.LoadPending(ctx)
	if err != nil {
		return 0, err
	}
	dest, err := load[domain.PersistedCase](ctx, s.docs, target)
	if err != nil {
		return 0, err
	}

	now := s.now()
	remaining := make([]domain.PersistedCase, 0, len(pending))
	moved := 0
	for _, c := range pending {
		if !match(c) {
			remaining = append(remaining, c)
			continue
		}
		stamp := now
		switch target {
		case CollectionApproved:
			c.Status = domain.StatusApproved
			c.ApprovedAt = &stamp
		case CollectionRejected:
			c.Status = domain.StatusRejected
			c.RejectedAt = &stamp
			c.RejectionReason = reason
		}
		dest = append(dest, c)
		moved++
	}
	if moved == 0 {
		return 0, nil
	}

	payloads := make(map[string][]byte, 2)
	if payloads[CollectionPending], err = encode(CollectionPending, remaining); err != nil {
		return 0, err
	}
	if payloads[target], err = encode(target, dest); err != nil {
		return 0, err
	}
	if err := s.save(ctx, payloads); err != nil {
		return 0, err
	}
	s.logger.Info("pending cases moved", "target", target, "count", moved)
	return moved, nil
}

// ArchiveDuplicates appends records to the capped duplicate archive.
func (s *Store) ArchiveDuplicates(ctx context.Context, records []domain.DuplicateRecord) error {
	return s.PersistRun(ctx, RunBatch{Duplicates: records})
}

// AppendRunLog appends a run summary to the capped run log.
func (s *Store) AppendRunLog(ctx context.Context, entry domain.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logs, err := load[domain.RunSummary](ctx, s.docs, CollectionRunLogs)
	if err != nil {
		return err
	}
	logs = capTail(append(logs, entry), maxRunLogs)
	raw, err := encode(CollectionRunLogs, logs)
	if err != nil {
		return err
	}
	return s.docs.Save(ctx, CollectionRunLogs, raw)
}

// RunLogs returns the most recent limit entries, oldest first.
func (s *Store) RunLogs(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	logs, err := load[domain.RunSummary](ctx, s.docs, CollectionRunLogs)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(logs) > limit {
		logs = logs[len(logs)-limit:]
	}
	return logs, nil
}

// Duplicates returns the archived duplicates.
func (s *Store) Duplicates(ctx context.Context) ([]domain.DuplicateRecord, error) {
	return load[domain.DuplicateRecord](ctx, s.docs, CollectionDuplicates)
}

// Stats counts the stored collections.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	raw, err := s.docs.Load(ctx, CollectionApproved)
	if err != nil {
		return Stats{}, err
	}
	var approved []domain.PersistedCase
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &approved); err != nil {
			return Stats{}, fmt.Errorf("decode %s: %w", CollectionApproved, err)
		}
	}
	pending, err := s.LoadPending(ctx)
	if err != nil {
		return Stats{}, err
	}
	rejected, err := s.LoadRejected(ctx)
	if err != nil {
		return Stats{}, err
	}

	st := Stats{
		TotalCases:    len(approved),
		PendingCases:  len(pending),
		RejectedCases: len(rejected),
		ApprovedBytes: int64(len(raw)),
	}
	for _, c := range approved {
		if c.DataSource == domain.DataSourceOnline {
			st.OnlineCollectedCases++
		}
	}
	return st, nil
}

func idSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func capTail[T any](items []T, limit int) []T {
	if len(items) <= limit {
		return items
	}
	return items[len(items)-limit:]
}
