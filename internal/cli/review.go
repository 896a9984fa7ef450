package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"CaseCollector/internal/app"
	"CaseCollector/internal/textutil"
)

const titleWidth = 40

func newPendingCmd(opts *rootOptions) *cobra.Command {
	var limit, offset int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List cases awaiting review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(a *app.Application) error {
				cases, total, err := a.Collector().ListPending(cmd.Context(), limit, offset)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), map[string]any{"cases": cases, "total": total})
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tCONFIDENCE\tSOURCE\tTITLE")
				for _, c := range cases {
					fmt.Fprintf(tw, "%s\t%.2f\t%s\t%s\n", c.ID, c.ConfidenceScore, c.Provenance.SourceName, textutil.Truncate(c.Title, titleWidth))
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d of %d pending cases\n", len(cases), total)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum cases to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Cases to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print cases as JSON")
	return cmd
}

func newApproveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "approve [case-id...]",
		Short: "Move pending cases to the approved collection",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app.Application) error {
				n, err := a.Collector().Approve(cmd.Context(), args)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d cases approved\n", n)
				return nil
			})
		},
	}
}

func newRejectCmd(opts *rootOptions) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject [case-id...]",
		Short: "Move pending cases to the rejected collection",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app.Application) error {
				n, err := a.Collector().Reject(cmd.Context(), args, reason)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d cases rejected\n", n)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Rejection reason stored with each case")
	return cmd
}

func newAutoApproveCmd(opts *rootOptions) *cobra.Command {
	var threshold float64
	cmd := &cobra.Command{
		Use:   "auto-approve",
		Short: "Approve every pending case at or above the confidence threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(a *app.Application) error {
				n, applied, err := a.Collector().AutoApprove(cmd.Context(), threshold)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d cases auto-approved (threshold %.2f)\n", n, applied)
				return nil
			})
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Confidence threshold (0 uses collector.autoApproveThreshold)")
	return cmd
}
