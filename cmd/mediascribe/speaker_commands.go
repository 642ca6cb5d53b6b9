package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mediascribe/internal/logging"
	"mediascribe/internal/speakers"
)

func newSpeakersCommand(ctx *commandContext) *cobra.Command {
	speakersCmd := &cobra.Command{
		Use:   "speakers",
		Short: "Inspect and manage known speaker identities",
	}

	speakersCmd.AddCommand(newSpeakersListCommand(ctx))
	speakersCmd.AddCommand(newSpeakersShowCommand(ctx))
	speakersCmd.AddCommand(newSpeakersForgetCommand(ctx))

	return speakersCmd
}

func (c *commandContext) withSpeakerStore(fn func(*speakers.Store) error) error {
	store, err := c.openSpeakerStore(logging.NewNop())
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func newSpeakersListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List known speakers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSpeakerStore(func(store *speakers.Store) error {
				records := store.List()
				if jsonOutput {
					return writeJSON(cmd, records)
				}
				if len(records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No known speakers yet.")
					return nil
				}
				rows := make([][]string, 0, len(records))
				for _, record := range records {
					name := record.DisplayName
					if name == "" {
						name = "-"
					}
					rows = append(rows, []string{
						record.ID,
						name,
						fmt.Sprintf("%d", record.EncounterCount),
						record.LastSeen.Format(time.RFC3339),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Name", "Encounters", "Last seen"},
					rows, 2))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit speakers as JSON")
	return cmd
}

func newSpeakersShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <speaker-id>",
		Short: "Show one speaker's fingerprint and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSpeakerStore(func(store *speakers.Store) error {
				record, ok := store.Get(args[0])
				if !ok {
					return fmt.Errorf("speaker %q not found", args[0])
				}
				if jsonOutput {
					return writeJSON(cmd, record)
				}
				out := cmd.OutOrStdout()
				for _, line := range renderSectionHeader("Speaker "+record.ID, shouldColorize(out)) {
					fmt.Fprintln(out, line)
				}
				fp := record.Fingerprint
				rows := [][]string{
					{"Pitch", displayName(fp.Pitch)},
					{"Tempo", displayName(fp.Tempo)},
					{"Clarity", displayName(fp.Clarity)},
					{"Volume", displayName(fp.Volume)},
					{"Words per minute", fmt.Sprintf("%.1f", fp.WordsPerMinute)},
					{"Avg word length", fmt.Sprintf("%.2f", fp.AvgWordLength)},
					{"Vocabulary diversity", fmt.Sprintf("%.3f", fp.VocabularyDiversity)},
					{"Formality", displayName(fp.Formality)},
					{"Pace", displayName(fp.Pace)},
					{"Encounters", fmt.Sprintf("%d", record.EncounterCount)},
					{"First seen", record.FirstSeen.Format(time.RFC3339)},
					{"Last seen", record.LastSeen.Format(time.RFC3339)},
				}
				fmt.Fprintln(out, renderTable([]string{"Attribute", "Value"}, rows))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the speaker as JSON")
	return cmd
}

func newSpeakersForgetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <speaker-id>",
		Short: "Remove a speaker identity from the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSpeakerStore(func(store *speakers.Store) error {
				if err := store.Forget(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Forgot speaker %s\n", args[0])
				return nil
			})
		},
	}
}
