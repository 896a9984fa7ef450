package usecase

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"CaseCollector/internal/domain"
)

func TestBuildDigestMessage(t *testing.T) {
	t.Parallel()

	summary := domain.RunSummary{
		ID:              "COL-20240301-090000-abcd1234",
		Sources:         []string{"kci", "pubmed"},
		Status:          domain.RunCompleted,
		Statistics:      domain.RunStats{ArticlesSearched: 10, ArticlesFetched: 8, CasesAdded: 3, CasesAutoApproved: 1},
		DurationSeconds: 12.34,
	}
	for i := range 7 {
		summary.Errors = append(summary.Errors, fmt.Sprintf("error %d", i))
	}

	msg := buildDigestMessage(summary)

	assert.True(t, strings.HasPrefix(msg, "*Case collection COL-20240301-090000-abcd1234*: completed\n"))
	assert.Contains(t, msg, "Sources: kci, pubmed\n")
	assert.Contains(t, msg, "Articles: 10 searched, 8 fetched, 0 failed\n")
	assert.Contains(t, msg, "Added: 3 (auto-approved 1)\n")
	assert.Contains(t, msg, "- error 4\n")
	assert.NotContains(t, msg, "- error 5\n")
	assert.Contains(t, msg, "- ... and 2 more\n")
}
