// Package validate checks candidate cases before they are persisted.
package validate

import (
	"fmt"
	"slices"
	"strings"

	"CaseCollector/internal/domain"
	"CaseCollector/internal/textutil"
)

const (
	// DefaultAutoApproveThreshold is the confidence above which valid cases skip review.
	DefaultAutoApproveThreshold = 0.9

	minTextLength    = 100
	minFormulaLength = 3
	maxMinorIssues   = 2
)

var formulaBadEndings = []string{"하고", "있고", "없고", "했고", "되고"}

// shortFormulas are accepted despite being shorter than minFormulaLength.
var shortFormulas = map[string]bool{
	"이중": true, "귀비": true, "보중": true, "육미": true, "팔미": true,
}

// Result is the outcome of validating one case.
type Result struct {
	Valid      bool     `json:"is_valid"`
	Issues     []string `json:"issues"`
	Confidence float64  `json:"confidence"`
}

// Validator applies the structural and semantic case rules.
type Validator struct {
	threshold float64
}

// New builds a Validator. A non-positive threshold selects DefaultAutoApproveThreshold.
func New(threshold float64) *Validator {
	if threshold <= 0 {
		threshold = DefaultAutoApproveThreshold
	}
	return &Validator{threshold: threshold}
}

// Threshold returns the auto-approval confidence cutoff.
func (v *Validator) Threshold() float64 {
	return v.threshold
}

// Validate reports every issue found in c. Cases without a chief complaint and formula,
// or with demographics outside the plausible range, are never valid.
func (v *Validator) Validate(c domain.CandidateCase) Result {
	var (
		issues   []string
		critical bool
	)

	if c.ChiefComplaint == "" {
		issues = append(issues, "missing required field: chief_complaint")
	}
	if c.FormulaName == "" {
		issues = append(issues, "missing required field: formula_name")
	}
	if !c.HasRequiredField() {
		issues = append(issues, "chief complaint or formula name required")
		critical = true
	}

	if n := textutil.RuneLen(c.FullText); n < minTextLength {
		issues = append(issues, fmt.Sprintf("text too short: %d < %d", n, minTextLength))
	}

	if c.Patient.Age != nil {
		if age := *c.Patient.Age; age <= 0 || age >= 120 {
			issues = append(issues, fmt.Sprintf("invalid age: %d", age))
			critical = true
		}
	}
	if g := c.Patient.Gender; g != domain.GenderUnknown && g != domain.GenderMale && g != domain.GenderFemale {
		issues = append(issues, fmt.Sprintf("invalid gender: %s", g))
	}
	if con := c.Patient.Constitution; con != "" && !slices.Contains(domain.Constitutions, con) {
		issues = append(issues, fmt.Sprintf("invalid constitution: %s", con))
	}

	if f := c.FormulaName; f != "" {
		if textutil.RuneLen(f) < minFormulaLength && !shortFormulas[f] {
			issues = append(issues, fmt.Sprintf("formula name too short: %s", f))
		}
		for _, ending := range formulaBadEndings {
			if strings.HasSuffix(f, ending) {
				issues = append(issues, fmt.Sprintf("malformed formula name: %s", f))
				break
			}
		}
	}

	valid := len(issues) == 0 || (!critical && len(issues) <= maxMinorIssues)
	return Result{Valid: valid, Issues: issues, Confidence: c.ConfidenceScore}
}

// CanAutoApprove reports whether c is valid and confident enough to skip manual review.
func (v *Validator) CanAutoApprove(c domain.CandidateCase) bool {
	r := v.Validate(c)
	return r.Valid && r.Confidence >= v.threshold
}

// QualityScore rates how complete a case is on a 0-100 scale.
func QualityScore(c domain.CandidateCase) float64 {
	score := 0.0
	if c.ChiefComplaint != "" {
		score += 25
	}
	if c.FormulaName != "" {
		score += 25
	}
	if c.Patient.HasAge() {
		score += 5
	}
	if c.Patient.Gender != domain.GenderUnknown {
		score += 5
	}
	if c.Patient.Constitution != "" {
		score += 5
	}
	score += float64(min(10, 2*len(c.Symptoms)))
	if c.Diagnosis != "" || c.Differentiation != "" {
		score += 10
	}
	if c.Result != "" {
		score += 15
	}
	return min(score, 100)
}
