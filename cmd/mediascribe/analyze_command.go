package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mediascribe/internal/analysis"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var (
		jsonOutput bool
		provider   string
	)

	cmd := &cobra.Command{
		Use:   "analyze <path-or-url> [more...]",
		Short: "Transcribe and identify one or more media files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}
			analyzer, cleanup, err := ctx.buildAnalyzer(logger, strings.TrimSpace(provider))
			if err != nil {
				return err
			}
			defer cleanup()

			var reports []*analysis.Report
			for _, source := range args {
				report, err := analyzer.Analyze(cmd.Context(), analysis.Request{Source: source})
				if err != nil {
					return fmt.Errorf("analyze %s: %w", source, err)
				}
				reports = append(reports, report)
			}

			if jsonOutput {
				if len(reports) == 1 {
					return writeJSON(cmd, reports[0])
				}
				return writeJSON(cmd, reports)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, report := range reports {
				printReport(cmd, report, colorize)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the report as JSON")
	cmd.Flags().StringVar(&provider, "provider", "", "Speech provider override (auto, google, openai)")
	return cmd
}

func printReport(cmd *cobra.Command, report *analysis.Report, colorize bool) {
	out := cmd.OutOrStdout()
	for _, line := range renderSectionHeader(report.Source, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "  media type: %s, duration: %.1fs\n", report.MediaType, report.Duration)
	if report.RunID != "" {
		fmt.Fprintf(out, "  run: %s\n", report.RunID)
	}

	if report.Transcript != nil {
		fmt.Fprintf(out, "  provider: %s\n", displayName(string(report.Transcript.Provider)))
		fmt.Fprintln(out)
		fmt.Fprintln(out, report.Transcript.FullText)
		fmt.Fprintln(out)
	}

	if len(report.Speakers) > 0 {
		rows := make([][]string, 0, len(report.Speakers))
		for _, speaker := range report.Speakers {
			status := "known"
			if speaker.NewSpeaker {
				status = "new"
			}
			rows = append(rows, []string{
				fmt.Sprintf("%d", speaker.SpeakerTag),
				speaker.SpeakerID,
				fmt.Sprintf("%.2f", speaker.Similarity),
				status,
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Tag", "Speaker", "Similarity", "Status"},
			rows, 0, 2))
	}

	if report.Captions != nil && len(report.Captions.Entries) > 0 {
		rows := make([][]string, 0, len(report.Captions.Entries))
		for _, entry := range report.Captions.Entries {
			rows = append(rows, []string{
				fmt.Sprintf("%.1fs", entry.Timestamp),
				truncate(entry.Text, 60),
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Time", "On-screen text"},
			rows, 0))
	}

	if len(report.Objects) > 0 || len(report.Labels) > 0 {
		var parts []string
		for _, object := range report.Objects {
			parts = append(parts, object.Name)
		}
		for _, label := range report.Labels {
			parts = append(parts, label.Description)
		}
		fmt.Fprintf(out, "  detected: %s\n", strings.Join(parts, ", "))
	}

	for _, warning := range report.Warnings {
		fmt.Fprintln(out, renderWarning(warning, colorize))
	}
}
