package domain

import (
	"strings"
	"time"
)

// ArticleSummary is a search hit returned by a source adapter.
type ArticleSummary struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Authors  []string `json:"authors,omitempty"`
	Journal  string   `json:"journal,omitempty"`
	Year     int      `json:"year,omitempty"`
	DOI      string   `json:"doi,omitempty"`
	URL      string   `json:"url"`
	Abstract string   `json:"abstract,omitempty"`
}

// ArticleDetail is a fetched article with its full text.
type ArticleDetail struct {
	ArticleSummary
	FullText  string    `json:"full_text"`
	Keywords  []string  `json:"keywords,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// CanonicalURL prefers the DOI resolver URL so the same paper reached through
// different sources carries the same provenance URL.
func (a ArticleDetail) CanonicalURL() string {
	doi := strings.ToLower(strings.TrimSpace(a.DOI))
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "doi:"} {
		doi = strings.TrimPrefix(doi, prefix)
	}
	doi = strings.TrimSpace(doi)
	if doi == "" {
		return a.URL
	}
	return "https://doi.org/" + doi
}

// SearchQuery carries the parameters of one adapter search.
type SearchQuery struct {
	Keywords   []string
	DateFrom   time.Time
	DateTo     time.Time
	MaxResults int
}

// InRange reports whether a publication year falls inside the query date window.
// Unknown years are kept.
func (q SearchQuery) InRange(year int) bool {
	if year == 0 {
		return true
	}
	if !q.DateFrom.IsZero() && year < q.DateFrom.Year() {
		return false
	}
	if !q.DateTo.IsZero() && year > q.DateTo.Year() {
		return false
	}
	return true
}

// Registered source names.
const (
	SourcePubMed = "pubmed"
	SourceKCI    = "kci"
	SourceOASIS  = "oasis"
)
