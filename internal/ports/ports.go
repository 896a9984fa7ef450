package ports

import (
	"context"
	"iter"
	"time"

	"CaseCollector/internal/domain"
)

// SourceAdapter searches and fetches articles from one bibliographic database.
type SourceAdapter interface {
	Name() string
	// Initialize opens the adapter's transport session.
	Initialize(ctx context.Context) error
	// Cleanup releases the transport session. Safe to call more than once.
	Cleanup()
	// Search yields summaries lazily; failures for a keyword are logged and skipped.
	Search(ctx context.Context, q domain.SearchQuery) iter.Seq[domain.ArticleSummary]
	// FetchDetail returns nil without error when the article cannot be found.
	FetchDetail(ctx context.Context, id string) (*domain.ArticleDetail, error)
	// RateLimit is the delay to keep between requests to this source.
	RateLimit() time.Duration
}

// DocumentStore persists whole named collections as opaque JSON payloads.
// Load returns nil, nil for a collection that was never saved.
type DocumentStore interface {
	Load(ctx context.Context, collection string) ([]byte, error)
	Save(ctx context.Context, collection string, payload []byte) error
	Close() error
}

// BatchSaver is implemented by stores that can replace several collections atomically.
type BatchSaver interface {
	SaveBatch(ctx context.Context, payloads map[string][]byte) error
}

// Notifier publishes run summaries to an outbound channel (Telegram, etc.).
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when periodic runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
	NextRun() (time.Time, bool)
}
