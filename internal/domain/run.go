package domain

import "time"

// RunStatus is the outcome of one collection run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunRejected  RunStatus = "rejected"
)

// RunStats aggregates pipeline counters.
type RunStats struct {
	ArticlesSearched  int `json:"articles_searched"`
	ArticlesFetched   int `json:"articles_fetched"`
	FetchFailures     int `json:"fetch_failures"`
	CasesExtracted    int `json:"cases_extracted"`
	CasesValid        int `json:"cases_valid"`
	CasesDuplicate    int `json:"cases_duplicate"`
	CasesAdded        int `json:"cases_added"`
	CasesAutoApproved int `json:"cases_auto_approved"`
}

// Add accumulates other into s.
func (s *RunStats) Add(other RunStats) {
	s.ArticlesSearched += other.ArticlesSearched
	s.ArticlesFetched += other.ArticlesFetched
	s.FetchFailures += other.FetchFailures
	s.CasesExtracted += other.CasesExtracted
	s.CasesValid += other.CasesValid
	s.CasesDuplicate += other.CasesDuplicate
	s.CasesAdded += other.CasesAdded
	s.CasesAutoApproved += other.CasesAutoApproved
}

// RunRequest selects what a run collects. Empty slices mean "everything configured".
type RunRequest struct {
	Sources     []string `json:"sources,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	MaxArticles int      `json:"max_articles,omitempty"`
}

// RunSummary is returned to callers and appended to the run log.
type RunSummary struct {
	ID              string              `json:"collection_id"`
	Timestamp       time.Time           `json:"timestamp"`
	Sources         []string            `json:"sources"`
	Status          RunStatus           `json:"status"`
	Statistics      RunStats            `json:"statistics"`
	SourceStats     map[string]RunStats `json:"source_statistics,omitempty"`
	Errors          []string            `json:"errors"`
	DurationSeconds float64             `json:"duration_seconds"`
}
