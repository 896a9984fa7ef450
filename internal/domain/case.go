package domain

import "time"

// DataSourceOnline tags cases gathered by the collector.
const DataSourceOnline = "online_collection"

// Gender is the canonical patient gender token.
type Gender string

const (
	GenderUnknown Gender = ""
	GenderMale    Gender = "M"
	GenderFemale  Gender = "F"
)

// Sasang constitution types.
const (
	ConstitutionSoeum   = "소음인"
	ConstitutionTaeeum  = "태음인"
	ConstitutionSoyang  = "소양인"
	ConstitutionTaeyang = "태양인"
)

// Constitutions lists the valid constitution values in lookup order.
var Constitutions = []string{ConstitutionSoeum, ConstitutionTaeeum, ConstitutionSoyang, ConstitutionTaeyang}

// Symptom is one reported symptom. Source keeps the extracted wording, Name the canonical term.
type Symptom struct {
	Name   string `json:"name"`
	Source string `json:"source,omitempty"`
}

// ProgressEntry is one dated note from a treatment course.
type ProgressEntry struct {
	Marker string `json:"marker"`
	Note   string `json:"note"`
}

// Demographics holds optional patient attributes.
type Demographics struct {
	Age          *int   `json:"age,omitempty"`
	Gender       Gender `json:"gender,omitempty"`
	Constitution string `json:"constitution,omitempty"`
}

// HasAge reports whether an age was extracted.
func (d Demographics) HasAge() bool {
	return d.Age != nil
}

// Provenance records where a case came from.
type Provenance struct {
	SourceName     string    `json:"source_name"`
	SourceURL      string    `json:"source_url"`
	CollectionDate time.Time `json:"collection_date"`
	ArticleTitle   string    `json:"article_title,omitempty"`
	ArticleAuthors []string  `json:"article_authors,omitempty"`
	ArticleJournal string    `json:"article_journal,omitempty"`
	ArticleYear    int       `json:"article_year,omitempty"`
	ArticleDOI     string    `json:"article_doi,omitempty"`
}

// CandidateCase is a clinical case extracted from article text, not yet validated or deduplicated.
type CandidateCase struct {
	ID              string          `json:"id"`
	Provenance      Provenance      `json:"provenance"`
	FormulaName     string          `json:"formula_name,omitempty"`
	Title           string          `json:"title,omitempty"`
	ChiefComplaint  string          `json:"chief_complaint,omitempty"`
	Symptoms        []Symptom       `json:"symptoms,omitempty"`
	Diagnosis       string          `json:"diagnosis,omitempty"`
	Differentiation string          `json:"differentiation,omitempty"`
	Patient         Demographics    `json:"patient"`
	Result          string          `json:"result,omitempty"`
	Progress        []ProgressEntry `json:"progress,omitempty"`
	FullText        string          `json:"full_text"`
	SearchText      string          `json:"search_text,omitempty"`
	DataSource      string          `json:"data_source"`
	ConfidenceScore float64         `json:"confidence_score"`
}

// HasRequiredField reports whether the case names a chief complaint or a formula.
func (c CandidateCase) HasRequiredField() bool {
	return c.ChiefComplaint != "" || c.FormulaName != ""
}

// CaseStatus is the review state of a persisted case.
type CaseStatus string

const (
	StatusPending  CaseStatus = "pending"
	StatusApproved CaseStatus = "approved"
	StatusRejected CaseStatus = "rejected"
)

// PersistedCase is a stored case together with its review state.
type PersistedCase struct {
	CandidateCase
	Status          CaseStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
}

// DuplicateReason names the dedup key family that matched.
type DuplicateReason string

const (
	DuplicateURL  DuplicateReason = "duplicate_url"
	DuplicateHash DuplicateReason = "duplicate_hash"
	DuplicateKey  DuplicateReason = "duplicate_key"
)

// DuplicateRecord is an archived duplicate candidate.
type DuplicateRecord struct {
	Case       CandidateCase   `json:"case"`
	Reason     DuplicateReason `json:"reason"`
	DetectedAt time.Time       `json:"detected_at"`
}
