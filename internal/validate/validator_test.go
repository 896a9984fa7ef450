package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"CaseCollector/internal/domain"
)

func intPtr(v int) *int { return &v }

func goodCase() domain.CandidateCase {
	return domain.CandidateCase{
		ChiefComplaint:  "좌측 반신불수",
		FormulaName:     "소속명탕",
		FullText:        strings.Repeat("중풍 환자의 치험례 ", 12),
		Patient:         domain.Demographics{Age: intPtr(65), Gender: domain.GenderMale, Constitution: domain.ConstitutionTaeeum},
		Result:          "호전",
		ConfidenceScore: 0.95,
	}
}

func TestValidateAcceptsCompleteCase(t *testing.T) {
	t.Parallel()

	r := New(0).Validate(goodCase())
	assert.True(t, r.Valid)
	assert.Empty(t, r.Issues)
	assert.Equal(t, 0.95, r.Confidence)
}

func TestValidateToleratesMinorIssues(t *testing.T) {
	t.Parallel()

	c := goodCase()
	c.FormulaName = ""
	c.FullText = "짧은 본문"

	r := New(0).Validate(c)
	assert.Len(t, r.Issues, 2)
	assert.True(t, r.Valid)
}

func TestValidateRejectsTooManyIssues(t *testing.T) {
	t.Parallel()

	c := goodCase()
	c.FormulaName = ""
	c.FullText = "짧은 본문"
	c.Patient.Gender = "X"

	r := New(0).Validate(c)
	assert.Len(t, r.Issues, 3)
	assert.False(t, r.Valid)
}

func TestValidateNeverAcceptsMissingRequiredFields(t *testing.T) {
	t.Parallel()

	c := goodCase()
	c.ChiefComplaint = ""
	c.FormulaName = ""
	c.ConfidenceScore = 1

	v := New(0.1)
	assert.False(t, v.Validate(c).Valid)
	assert.False(t, v.CanAutoApprove(c))
}

func TestValidateRejectsImplausibleAge(t *testing.T) {
	t.Parallel()

	c := goodCase()
	c.Patient.Age = intPtr(150)

	r := New(0).Validate(c)
	assert.False(t, r.Valid)
	assert.Equal(t, []string{"invalid age: 150"}, r.Issues)
}

func TestValidateFormulaShape(t *testing.T) {
	t.Parallel()

	v := New(0)

	c := goodCase()
	c.FormulaName = "귀비"
	assert.Empty(t, v.Validate(c).Issues)

	c.FormulaName = "십전"
	assert.Equal(t, []string{"formula name too short: 십전"}, v.Validate(c).Issues)

	c.FormulaName = "복용하고"
	assert.Equal(t, []string{"malformed formula name: 복용하고"}, v.Validate(c).Issues)
}

func TestCanAutoApproveFollowsThreshold(t *testing.T) {
	t.Parallel()

	c := goodCase()
	c.ConfidenceScore = 0.8

	assert.False(t, New(0).CanAutoApprove(c))
	assert.True(t, New(0.75).CanAutoApprove(c))
	assert.Equal(t, DefaultAutoApproveThreshold, New(-1).Threshold())
}

func TestQualityScore(t *testing.T) {
	t.Parallel()

	c := goodCase()
	c.Symptoms = []domain.Symptom{{Name: "두통"}, {Name: "어지러움"}}
	c.Diagnosis = "중풍"
	assert.Equal(t, 94.0, QualityScore(c))
	assert.Zero(t, QualityScore(domain.CandidateCase{}))
}
