// Package extract turns article text into candidate clinical cases.
package extract

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"CaseCollector/internal/domain"
	"CaseCollector/internal/textutil"
)

const (
	minBlockLength    = 50
	splitBlockLength  = 100
	symptomWindow     = 1000
	maxSymptoms       = 10
	maxProgress       = 10
	maxFullText       = 2000
	idTextPrefix      = 500
	titleComplaintLen = 30
	minFullText       = 50
)

// Confidence weights per populated field.
const (
	weightChiefComplaint = 0.25
	weightFormula        = 0.25
	weightDemographics   = 0.1
	weightConstitution   = 0.15
	weightResult         = 0.15
	weightSymptoms       = 0.1
)

// Extractor is stateless apart from its clock and logger and is safe for concurrent use.
type Extractor struct {
	now    func() time.Time
	logger *slog.Logger
}

// Option customises an Extractor.
type Option func(*Extractor)

// WithClock overrides the collection timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// WithLogger attaches a logger for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) { e.logger = logger.With("component", "extractor") }
}

// New builds an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{now: time.Now, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns every case found in the article. Nothing is returned for articles that
// do not look like case reports.
func (e *Extractor) Extract(detail domain.ArticleDetail, sourceName string) []domain.CandidateCase {
	text := detail.FullText
	if strings.TrimSpace(text) == "" {
		text = detail.Abstract
	}
	if !looksLikeCaseReport(text) {
		return nil
	}

	blocks := Segment(text)
	prov := domain.Provenance{
		SourceName:     sourceName,
		SourceURL:      detail.CanonicalURL(),
		CollectionDate: e.now(),
		ArticleTitle:   detail.Title,
		ArticleAuthors: detail.Authors,
		ArticleJournal: detail.Journal,
		ArticleYear:    detail.Year,
		ArticleDOI:     detail.DOI,
	}

	var cases []domain.CandidateCase
	for i, block := range blocks {
		c := e.extractCase(block, i+1, prov)
		if !c.HasRequiredField() || textutil.RuneLen(c.FullText) < minFullText {
			continue
		}
		cases = append(cases, c)
	}
	e.logger.Debug("extracted cases", "url", prov.SourceURL, "blocks", len(blocks), "cases", len(cases))
	return cases
}

func looksLikeCaseReport(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range caseKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Segment splits text into case blocks using the first delimiter that produces a usable split.
func Segment(text string) []string {
	for _, pattern := range segmentPatterns {
		parts := pattern.Split(text, -1)
		if len(parts) <= 1 {
			continue
		}
		var blocks []string
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if textutil.RuneLen(p) > splitBlockLength {
				blocks = append(blocks, p)
			}
		}
		if len(blocks) > 0 {
			return blocks
		}
	}

	whole := strings.TrimSpace(text)
	if whole == "" {
		return nil
	}
	return []string{whole}
}

func (e *Extractor) extractCase(block string, index int, prov domain.Provenance) domain.CandidateCase {
	c := domain.CandidateCase{
		ID:              caseID(prov.SourceURL, block),
		Provenance:      prov,
		ChiefComplaint:  firstMatch(chiefComplaintRules, block),
		Symptoms:        extractSymptoms(block),
		FormulaName:     extractFormula(block),
		Diagnosis:       firstMatch(diagnosisRules, block),
		Differentiation: firstMatch(differentiationRules, block),
		Result:          firstMatch(resultRules, block),
		Progress:        extractProgress(block),
		Patient:         extractDemographics(block),
		FullText:        textutil.Truncate(block, maxFullText),
		DataSource:      domain.DataSourceOnline,
	}
	c.Title = caseTitle(c, index)
	c.ConfidenceScore = Confidence(c)
	return c
}

func caseID(url, block string) string {
	sum := md5.Sum([]byte(url + textutil.Truncate(block, idTextPrefix)))
	return "online_" + hex.EncodeToString(sum[:])[:12]
}

func caseTitle(c domain.CandidateCase, index int) string {
	detail := c.ChiefComplaint
	if detail == "" {
		detail = c.Diagnosis
	}
	detail = textutil.Truncate(detail, titleComplaintLen)

	switch {
	case c.FormulaName != "" && detail != "":
		return c.FormulaName + " - " + detail
	case c.FormulaName != "":
		return c.FormulaName
	case detail != "":
		return detail
	default:
		return fmt.Sprintf("Case %d", index)
	}
}

func extractFormula(block string) string {
	for _, pattern := range formulaRules {
		for _, m := range pattern.FindAllStringSubmatch(block, -1) {
			name := strings.TrimSpace(m[1])
			if isFormulaName(name) {
				return name
			}
		}
	}
	for _, m := range broadFormulaRule.FindAllStringSubmatch(block, -1) {
		name := strings.TrimSpace(m[1])
		if textutil.RuneLen(name) >= 4 && isFormulaName(name) {
			return name
		}
	}
	return ""
}

func extractSymptoms(block string) []domain.Symptom {
	window := textutil.Truncate(block, symptomWindow)
	locs := symptomMarker.FindAllStringIndex(window, -1)

	var symptoms []domain.Symptom
	for i, loc := range locs {
		end := len(window)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		item := window[loc[1]:end]
		if nl := strings.IndexByte(item, '\n'); nl >= 0 {
			item = item[:nl]
		}
		item = strings.TrimSpace(item)
		if n := textutil.RuneLen(item); n <= 3 || n >= 100 {
			continue
		}
		symptoms = append(symptoms, domain.Symptom{Name: item, Source: item})
		if len(symptoms) == maxSymptoms {
			break
		}
	}
	return symptoms
}

func extractProgress(block string) []domain.ProgressEntry {
	locs := progressMarker.FindAllStringSubmatchIndex(block, -1)

	var entries []domain.ProgressEntry
	for i, loc := range locs {
		end := len(block)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		note := textutil.CollapseSpace(block[loc[1]:end])
		if note == "" {
			continue
		}
		entries = append(entries, domain.ProgressEntry{
			Marker: block[loc[2]:loc[3]],
			Note:   textutil.Truncate(note, 200),
		})
		if len(entries) == maxProgress {
			break
		}
	}
	return entries
}

func extractDemographics(block string) domain.Demographics {
	var d domain.Demographics

	if v := firstMatch(ageRules, block); v != "" {
		age, _ := strconv.Atoi(v)
		d.Age = &age
	}

	for _, r := range genderRules {
		scope := block
		if r.window > 0 {
			scope = textutil.Truncate(block, r.window)
		}
		if m := r.pattern.FindStringSubmatch(scope); m != nil {
			d.Gender = genderFromToken(m[1])
			break
		}
	}

	for _, token := range constitutionTokens {
		if strings.Contains(block, token) {
			d.Constitution = token
			break
		}
	}
	return d
}

// Confidence scores how completely a case was extracted, in [0,1].
func Confidence(c domain.CandidateCase) float64 {
	score := 0.0
	if c.ChiefComplaint != "" {
		score += weightChiefComplaint
	}
	if c.FormulaName != "" {
		score += weightFormula
	}
	if c.Patient.HasAge() || c.Patient.Gender != domain.GenderUnknown {
		score += weightDemographics
	}
	if c.Patient.Constitution != "" {
		score += weightConstitution
	}
	if c.Result != "" {
		score += weightResult
	}
	if len(c.Symptoms) > 0 {
		score += weightSymptoms
	}
	return min(max(score, 0), 1)
}
