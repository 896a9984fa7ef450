package source

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"CaseCollector/internal/domain"
)

type stubAdapter struct{ name string }

func (s stubAdapter) Name() string                    { return s.name }
func (stubAdapter) Initialize(context.Context) error  { return nil }
func (stubAdapter) Cleanup()                          {}
func (stubAdapter) RateLimit() time.Duration          { return 0 }
func (stubAdapter) Search(context.Context, domain.SearchQuery) iter.Seq[domain.ArticleSummary] {
	return func(func(domain.ArticleSummary) bool) {}
}
func (stubAdapter) FetchDetail(context.Context, string) (*domain.ArticleDetail, error) {
	return nil, nil
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	r := NewRegistry(stubAdapter{"pubmed"}, stubAdapter{"kci"})

	a, err := r.Resolve("kci")
	if err != nil {
		t.Fatalf("resolve kci: %v", err)
	}
	if a.Name() != "kci" {
		t.Fatalf("unexpected adapter %s", a.Name())
	}

	if _, err := r.Resolve("scopus"); !errors.Is(err, domain.ErrUnknownSource) {
		t.Fatalf("expected ErrUnknownSource, got %v", err)
	}

	names := r.Names()
	if len(names) != 2 || names[0] != "kci" || names[1] != "pubmed" {
		t.Fatalf("unexpected names %v", names)
	}
	if got := r.Adapters(); len(got) != 2 || got[1].Name() != "pubmed" {
		t.Fatalf("unexpected adapters %v", got)
	}
}
