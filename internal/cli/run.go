package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"CaseCollector/internal/app"
	"CaseCollector/internal/config"
	"CaseCollector/internal/domain"
)

type runOptions struct {
	sources     []string
	keywords    []string
	maxArticles int
	asJSON      bool
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	ro := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one collection pass and print its summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("max-articles") && (ro.maxArticles < config.MinMaxArticles || ro.maxArticles > config.MaxMaxArticles) {
				return fmt.Errorf("--max-articles must be in [%d,%d]", config.MinMaxArticles, config.MaxMaxArticles)
			}
			return opts.withApp(cmd, func(a *app.Application) error {
				summary := a.Collector().Run(cmd.Context(), domain.RunRequest{
					Sources:     ro.sources,
					Keywords:    ro.keywords,
					MaxArticles: ro.maxArticles,
				})
				if ro.asJSON {
					if err := printJSON(cmd.OutOrStdout(), summary); err != nil {
						return err
					}
				} else {
					printSummary(cmd.OutOrStdout(), summary)
				}
				if summary.Status == domain.RunFailed {
					return fmt.Errorf("run %s failed", summary.ID)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&ro.sources, "source", nil, "Source to query (repeatable; defaults to collector.sources)")
	cmd.Flags().StringSliceVar(&ro.keywords, "keyword", nil, "Search keyword (repeatable; defaults to collector.keywords)")
	cmd.Flags().IntVar(&ro.maxArticles, "max-articles", 0, "Maximum articles fetched per source (defaults to collector.maxArticles)")
	cmd.Flags().BoolVar(&ro.asJSON, "json", false, "Print the summary as JSON")
	return cmd
}

func printSummary(w io.Writer, s domain.RunSummary) {
	st := s.Statistics
	fmt.Fprintf(w, "Run %s: %s (%.1fs)\n", s.ID, s.Status, s.DurationSeconds)
	fmt.Fprintf(w, "Sources: %s\n", strings.Join(s.Sources, ", "))
	fmt.Fprintf(w, "Articles: %d searched, %d fetched, %d failed\n", st.ArticlesSearched, st.ArticlesFetched, st.FetchFailures)
	fmt.Fprintf(w, "Cases: %d extracted, %d valid, %d duplicate\n", st.CasesExtracted, st.CasesValid, st.CasesDuplicate)
	fmt.Fprintf(w, "Added: %d (%d auto-approved)\n", st.CasesAdded, st.CasesAutoApproved)
	for _, e := range s.Errors {
		fmt.Fprintf(w, "Error: %s\n", e)
	}
}
