package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CaseCollector/internal/domain"
)

var detectedAt = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func clock() time.Time { return detectedAt }

func intPtr(v int) *int { return &v }

func candidate(url, text, formula, complaint string) domain.CandidateCase {
	return domain.CandidateCase{
		Provenance:     domain.Provenance{SourceURL: url},
		FullText:       text,
		FormulaName:    formula,
		ChiefComplaint: complaint,
	}
}

func TestFilterDuplicatesByURL(t *testing.T) {
	t.Parallel()

	d := New(clock)
	unique, dups := d.FilterDuplicates([]domain.CandidateCase{
		candidate("https://a", "본문 하나", "소속명탕", ""),
		candidate("https://a", "본문 둘", "이중탕", ""),
	})
	require.Len(t, unique, 1)
	require.Len(t, dups, 1)
	assert.Equal(t, domain.DuplicateURL, dups[0].Reason)
	assert.Equal(t, detectedAt, dups[0].DetectedAt)
}

func TestFilterDuplicatesByContentHash(t *testing.T) {
	t.Parallel()

	d := New(clock)
	_, dups := d.FilterDuplicates([]domain.CandidateCase{
		candidate("https://a", "Case Report\n 중풍  환자", "", ""),
		candidate("https://b", "case report 중풍환자", "", ""),
	})
	require.Len(t, dups, 1)
	assert.Equal(t, domain.DuplicateHash, dups[0].Reason)
}

func TestFilterDuplicatesByKeyFields(t *testing.T) {
	t.Parallel()

	d := New(clock)
	_, dups := d.FilterDuplicates([]domain.CandidateCase{
		candidate("https://a", "본문 하나", "소속명탕", "반신불수"),
		candidate("https://b", "본문 둘", "소속명탕", "반신불수"),
	})
	require.Len(t, dups, 1)
	assert.Equal(t, domain.DuplicateKey, dups[0].Reason)
}

func TestFieldKeyAbstainsWithOnePart(t *testing.T) {
	t.Parallel()

	assert.Empty(t, FieldKey(candidate("", "", "소속명탕", "")))

	c := candidate("", "", "소속명탕", "")
	c.Patient.Age = intPtr(40)
	assert.Equal(t, "소속명탕|40", FieldKey(c))

	d := New(clock)
	unique, dups := d.FilterDuplicates([]domain.CandidateCase{
		candidate("https://a", "본문 하나", "소속명탕", ""),
		candidate("https://b", "본문 둘", "소속명탕", ""),
	})
	assert.Len(t, unique, 2)
	assert.Empty(t, dups)
}

func TestFilterDuplicatesPreservesOrder(t *testing.T) {
	t.Parallel()

	d := New(clock)
	in := []domain.CandidateCase{
		candidate("https://1", "one", "", ""),
		candidate("https://2", "two", "", ""),
		candidate("https://1", "three", "", ""),
		candidate("https://3", "four", "", ""),
	}
	unique, dups := d.FilterDuplicates(in)
	assert.Equal(t, []domain.CandidateCase{in[0], in[1], in[3]}, unique)
	require.Len(t, dups, 1)
	assert.Equal(t, in[2], dups[0].Case)
}

func TestSeedAndClone(t *testing.T) {
	t.Parallel()

	live := New(clock)
	live.Seed([]domain.CandidateCase{candidate("https://stored", "stored text", "", "")})

	run := live.Clone()
	unique, dups := run.FilterDuplicates([]domain.CandidateCase{
		candidate("https://stored", "new text", "", ""),
		candidate("https://fresh", "fresh text", "", ""),
	})
	assert.Len(t, unique, 1)
	assert.Len(t, dups, 1)

	assert.Equal(t, Stats{IndexedURLs: 1, IndexedHashes: 1}, live.Stats())
	assert.Equal(t, Stats{IndexedURLs: 2, IndexedHashes: 2}, run.Stats())
}
