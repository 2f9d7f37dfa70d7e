package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"intake.app/console/internal/core"
)

func reviewCMD() *cobra.Command {
	var generate, regenerate bool
	var on, comment, deleteID string

	var review = &cobra.Command{
		Use:   "review <session-id>",
		Short: "Show, comment on and regenerate a session summary",
		Example: "  intakectl review 1700000000000 --generate\n" +
			"  intakectl review 1700000000000 --on \"checkout flow\" --comment \"clarify this\"\n" +
			"  intakectl review 1700000000000 --regenerate",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			console, err := open(ctx)
			if err != nil {
				return err
			}
			defer console.Close()

			rv := console.Reviews.Review(ctx, args[0])
			if generate || !rv.View().HasSummary {
				if err := rv.Generate(ctx); err != nil {
					return fmt.Errorf("summary generation failed: %w", err)
				}
			}
			if err := applyReviewEdits(rv, on, comment, deleteID); err != nil {
				return err
			}
			if regenerate {
				if err := rv.Regenerate(ctx); err != nil {
					return fmt.Errorf("regeneration failed: %w", err)
				}
			}
			printReview(cmd.OutOrStdout(), rv)
			return nil
		},
	}
	review.Flags().BoolVar(&generate, "generate", false, "generate a fresh summary, dropping comments")
	review.Flags().BoolVar(&regenerate, "regenerate", false, "regenerate the summary from the comments")
	review.Flags().StringVar(&on, "on", "", "summary text to comment on")
	review.Flags().StringVar(&comment, "comment", "", "comment for the --on text")
	review.Flags().StringVar(&deleteID, "delete", "", "id of a comment to delete")
	review.MarkFlagsRequiredTogether("on", "comment")

	return review
}

func applyReviewEdits(rv *core.Review, on, comment, deleteID string) error {
	if deleteID != "" {
		if err := rv.DeleteComment(deleteID); err != nil {
			return fmt.Errorf("delete %s: %w", deleteID, err)
		}
	}
	if on == "" {
		return nil
	}
	p, err := rv.Select(core.Selection{Text: on, InContainer: true})
	if err != nil {
		return err
	}
	if p == nil {
		return errors.New("the --on text does not appear in the summary")
	}
	if _, err := rv.AddComment(comment); err != nil {
		rv.ClearSelection()
		return err
	}
	return nil
}

// printReview marks commented spans with [brackets] and lists the comments
// under the summary.
func printReview(out io.Writer, rv *core.Review) {
	v := rv.View()
	if !v.HasSummary {
		fmt.Fprintln(out, "No summary yet.")
		return
	}
	var b strings.Builder
	for _, s := range rv.Segments() {
		if s.CommentID == "" {
			b.WriteString(s.Text)
			continue
		}
		b.WriteString("[")
		b.WriteString(s.Text)
		b.WriteString("]")
	}
	fmt.Fprintln(out, b.String())
	if len(v.Comments) == 0 {
		return
	}
	fmt.Fprintln(out, "\nComments:")
	for _, c := range v.Comments {
		fmt.Fprintf(out, "  %s  %q [%d,%d): %s\n", c.ID, c.HighlightedText, c.StartOffset, c.EndOffset, c.Comment)
	}
}

func tagCMD() *cobra.Command {
	var departments []string
	var notes string
	var send bool

	var tag = &cobra.Command{
		Use:   "tag <session-id>",
		Short: "Tag a reviewed project with departments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			console, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer console.Close()

			rt, err := console.Reviews.Routing(args[0])
			if err != nil {
				return err
			}
			if err := applyTagging(rt, departments, notes, cmd.Flags().Changed("notes")); err != nil {
				return err
			}
			if send {
				if _, err := rt.Send(); err != nil {
					return err
				}
			}
			printRouting(cmd.OutOrStdout(), rt.View())
			return nil
		},
	}
	tag.Flags().StringSliceVarP(&departments, "dept", "d", nil, "department to toggle (repeatable)")
	tag.Flags().StringVar(&notes, "notes", "", "routing notes")
	tag.Flags().BoolVar(&send, "send", false, "record the routing")

	return tag
}

func applyTagging(rt *core.Routing, departments []string, notes string, setNotes bool) error {
	for _, d := range departments {
		if _, err := rt.Toggle(d); err != nil {
			return fmt.Errorf("%s: %w", d, err)
		}
	}
	if setNotes {
		rt.SetNotes(notes)
	}
	return nil
}

func printRouting(out io.Writer, v core.RoutingView) {
	for _, d := range v.Departments {
		mark := " "
		if d.Selected {
			mark = "x"
		}
		fmt.Fprintf(out, "[%s] %s\n", mark, d.Name)
	}
	if v.Notes != "" {
		fmt.Fprintf(out, "Notes: %s\n", v.Notes)
	}
	if v.Sent != nil {
		fmt.Fprintf(out, "Routed %s\n", v.Sent.RoutedAt.Format("2006-01-02 15:04"))
	}
}
