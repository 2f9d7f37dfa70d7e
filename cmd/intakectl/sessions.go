package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"intake.app/console/internal/core"
	"intake.app/console/internal/store"
)

func sessionsCMD() *cobra.Command {
	var dashboard bool

	var sessions = &cobra.Command{
		Use:   "sessions",
		Short: "List intake sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			console, err := open(ctx)
			if err != nil {
				return err
			}
			defer console.Close()

			if dashboard {
				printDashboard(cmd.OutOrStdout(), console.Conversations.Dashboard(ctx))
				return nil
			}
			list := console.Conversations.ListSessions(ctx)
			if list.Error != "" {
				return fmt.Errorf("%s", list.Error)
			}
			printSessions(cmd.OutOrStdout(), list.Sessions)
			return nil
		},
	}
	sessions.Flags().BoolVar(&dashboard, "dashboard", false, "show the dashboard counters instead")

	return sessions
}

func printSessions(out io.Writer, sessions []store.Session) {
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions yet.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tTITLE\tCREATED\tENDED")
	for _, s := range sessions {
		title, ended := core.DefaultTitle, "-"
		if s.Title != nil {
			title = *s.Title
		}
		if s.EndedAt != nil {
			ended = *s.EndedAt
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.SessionID, title, s.CreatedAt, ended)
	}
	tw.Flush()
}

func printDashboard(out io.Writer, d core.Dashboard) {
	if d.Error != "" {
		fmt.Fprintf(out, "! %s\n", d.Error)
	}
	fmt.Fprintf(out, "Total sessions:    %d\n", d.TotalSessions)
	fmt.Fprintf(out, "Projects routed:   %d\n", d.ProjectsRouted)
	if d.TopDepartment != "" {
		fmt.Fprintf(out, "Top department:    %s (%d)\n", d.TopDepartment, d.TopDepartmentCount)
	}
	fmt.Fprintf(out, "Awaiting summary:  %d\n", d.AwaitingSummary)
	if len(d.RecentSessions) > 0 {
		fmt.Fprintln(out, "\nRecent:")
		printSessions(out, d.RecentSessions)
	}
}

func transcriptCMD() *cobra.Command {
	var save bool

	var transcript = &cobra.Command{
		Use:   "transcript <session-id>",
		Short: "Print the finalized transcript of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			console, err := open(ctx)
			if err != nil {
				return err
			}
			defer console.Close()

			if save {
				if err := console.Conversations.SaveTranscript(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Transcript save requested.")
			}
			entries, err := console.Reviews.Transcript(ctx, args[0])
			if err != nil {
				return err
			}
			printTranscript(cmd.OutOrStdout(), entries)
			return nil
		},
	}
	transcript.Flags().BoolVar(&save, "save", false, "ask the backend to save the transcript first")

	return transcript
}

func printTranscript(out io.Writer, entries []store.TranscriptEntry) {
	for _, e := range entries {
		who := "AI: "
		if e.Role == "user" {
			who = "You:"
		}
		fmt.Fprintf(out, "%s %s\n", who, e.Message)
	}
}
