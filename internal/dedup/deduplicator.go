// Package dedup detects candidate cases that were already collected.
package dedup

import (
	"crypto/md5"
	"encoding/hex"
	"maps"
	"strconv"
	"strings"
	"time"

	"CaseCollector/internal/domain"
	"CaseCollector/internal/textutil"
)

const (
	complaintKeyLength = 50
	minKeyParts        = 2
)

// Stats reports the size of each index.
type Stats struct {
	IndexedURLs   int `json:"indexed_urls"`
	IndexedHashes int `json:"indexed_hashes"`
	IndexedKeys   int `json:"indexed_keys"`
}

// Deduplicator indexes cases by source URL, content hash and key fields.
// It is not safe for concurrent mutation; callers Clone it per run.
type Deduplicator struct {
	urls   map[string]struct{}
	hashes map[string]struct{}
	keys   map[string]struct{}
	now    func() time.Time
}

// New builds an empty Deduplicator.
func New(now func() time.Time) *Deduplicator {
	if now == nil {
		now = time.Now
	}
	return &Deduplicator{
		urls:   make(map[string]struct{}),
		hashes: make(map[string]struct{}),
		keys:   make(map[string]struct{}),
		now:    now,
	}
}

// Seed indexes previously stored cases.
func (d *Deduplicator) Seed(cases []domain.CandidateCase) {
	for _, c := range cases {
		d.Add(c)
	}
}

// Clone returns an independent copy of the index.
func (d *Deduplicator) Clone() *Deduplicator {
	return &Deduplicator{
		urls:   maps.Clone(d.urls),
		hashes: maps.Clone(d.hashes),
		keys:   maps.Clone(d.keys),
		now:    d.now,
	}
}

// Check returns the first matching key family, checking URL, then content hash, then key fields.
func (d *Deduplicator) Check(c domain.CandidateCase) (domain.DuplicateReason, bool) {
	if url := c.Provenance.SourceURL; url != "" {
		if _, ok := d.urls[url]; ok {
			return domain.DuplicateURL, true
		}
	}
	if h := ContentHash(c); h != "" {
		if _, ok := d.hashes[h]; ok {
			return domain.DuplicateHash, true
		}
	}
	if k := FieldKey(c); k != "" {
		if _, ok := d.keys[k]; ok {
			return domain.DuplicateKey, true
		}
	}
	return "", false
}

// Add indexes c under every key it produces.
func (d *Deduplicator) Add(c domain.CandidateCase) {
	if url := c.Provenance.SourceURL; url != "" {
		d.urls[url] = struct{}{}
	}
	if h := ContentHash(c); h != "" {
		d.hashes[h] = struct{}{}
	}
	if k := FieldKey(c); k != "" {
		d.keys[k] = struct{}{}
	}
}

// FilterDuplicates splits cases into unique and duplicate sets, preserving input order.
// Accepted cases are indexed immediately, so later cases in the same batch are checked
// against them.
func (d *Deduplicator) FilterDuplicates(cases []domain.CandidateCase) ([]domain.CandidateCase, []domain.DuplicateRecord) {
	var (
		unique     []domain.CandidateCase
		duplicates []domain.DuplicateRecord
	)
	for _, c := range cases {
		if reason, dup := d.Check(c); dup {
			duplicates = append(duplicates, domain.DuplicateRecord{Case: c, Reason: reason, DetectedAt: d.now()})
			continue
		}
		unique = append(unique, c)
		d.Add(c)
	}
	return unique, duplicates
}

// Stats returns the index sizes.
func (d *Deduplicator) Stats() Stats {
	return Stats{IndexedURLs: len(d.urls), IndexedHashes: len(d.hashes), IndexedKeys: len(d.keys)}
}

// ContentHash is the md5 of the full text with whitespace removed and letters lowercased.
// Empty text yields no hash.
func ContentHash(c domain.CandidateCase) string {
	if c.FullText == "" {
		return ""
	}
	normalized := strings.ToLower(strings.Join(strings.Fields(c.FullText), ""))
	sum := md5.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// FieldKey joins formula, chief complaint prefix, age and gender. It abstains when fewer
// than two of them are populated.
func FieldKey(c domain.CandidateCase) string {
	parts := make([]string, 0, 4)
	if c.FormulaName != "" {
		parts = append(parts, c.FormulaName)
	}
	if c.ChiefComplaint != "" {
		parts = append(parts, textutil.Truncate(c.ChiefComplaint, complaintKeyLength))
	}
	if c.Patient.Age != nil {
		parts = append(parts, strconv.Itoa(*c.Patient.Age))
	}
	if c.Patient.Gender != domain.GenderUnknown {
		parts = append(parts, string(c.Patient.Gender))
	}
	if len(parts) < minKeyParts {
		return ""
	}
	return strings.ToLower(strings.Join(parts, "|"))
}
