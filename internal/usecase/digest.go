package usecase

import (
	"fmt"
	"strings"

	"CaseCollector/internal/domain"
)

const maxDigestErrors = 5

func buildDigestMessage(summary domain.RunSummary) string {
	st := summary.Statistics

	var b strings.Builder
	fmt.Fprintf(&b, "*Case collection %s*: %s\n", summary.ID, summary.Status)
	fmt.Fprintf(&b, "Sources: %s\n", strings.Join(summary.Sources, ", "))
	fmt.Fprintf(&b, "Articles: %d searched, %d fetched, %d failed\n", st.ArticlesSearched, st.ArticlesFetched, st.FetchFailures)
	fmt.Fprintf(&b, "Cases: %d extracted, %d valid, %d duplicate\n", st.CasesExtracted, st.CasesValid, st.CasesDuplicate)
	fmt.Fprintf(&b, "Added: %d (auto-approved %d)\n", st.CasesAdded, st.CasesAutoApproved)
	fmt.Fprintf(&b, "Duration: %.1fs\n", summary.DurationSeconds)

	if len(summary.Errors) > 0 {
		b.WriteString("Errors:\n")
		for i, msg := range summary.Errors {
			if i == maxDigestErrors {
				fmt.Fprintf(&b, "- ... and %d more\n", len(summary.Errors)-maxDigestErrors)
				break
			}
			fmt.Fprintf(&b, "- %s\n", msg)
		}
	}

	return b.String()
}
