package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobsignal/internal/analysis"
)

type scanOptions struct {
	title     string
	location  string
	timeRange string
	owned     []string
}

// newScanCmd creates the 'scan' subcommand, a one-shot analysis that prints
// the same JSON body POST /analyze-jobs returns.
func newScanCmd() *cobra.Command {
	opts := &scanOptions{}
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one analysis and print the report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScanCommand(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.title, "title", "", "job title to search for (required)")
	cmd.Flags().StringVar(&opts.location, "location", "", "location filter, e.g. \"Remote\"")
	cmd.Flags().StringVar(&opts.timeRange, "range", "7d", "posting window: 1d, 3d, 7d, 14d or 30d")
	cmd.Flags().StringSliceVar(&opts.owned, "owned", nil, "certifications already held")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func runScanCommand(cmd *cobra.Command, opts *scanOptions) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	resp, err := analyzerOf(appInstance).Analyze(cmd.Context(), analysis.Request{
		JobTitle:   opts.title,
		Location:   opts.location,
		TimeRange:  opts.timeRange,
		OwnedCerts: opts.owned,
	})
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	appInstance.Logger().Info("scan finished",
		zap.Bool("success", resp.Success),
		zap.Int("jobs_analyzed", resp.JobsAnalyzed),
	)

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}
