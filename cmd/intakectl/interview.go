package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"intake.app/console/internal/core"
	"intake.app/console/internal/store"
)

func interviewCMD() *cobra.Command {
	var sessionID string

	var interview = &cobra.Command{
		Use:   "interview",
		Short: "Answer intake questions in the terminal",
		Long: "Starts a new intake session, or resumes one with --session.\n" +
			"Type :done to finish and upload the transcript, :quit to save and leave it open.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			console, err := open(ctx)
			if err != nil {
				return err
			}
			defer console.Close()

			conv := console.Conversations.Start(ctx, sessionID)
			return runInterview(ctx, console.Conversations, conv, os.Stdin, cmd.OutOrStdout())
		},
	}
	interview.Flags().StringVarP(&sessionID, "session", "s", core.NewSessionID, "session id to resume")

	return interview
}

// answerer is the slice of the conversation service the interview uses.
type answerer interface {
	SelectOption(ctx context.Context, conv *core.Conversation, msgID, option string) error
	SubmitOther(ctx context.Context, conv *core.Conversation, msgID, text string) error
	SubmitText(ctx context.Context, conv *core.Conversation, msgID, text string) error
	SubmitSections(ctx context.Context, conv *core.Conversation, msgID string, answers []string) error
	Complete(ctx context.Context, conv *core.Conversation) error
}

const (
	cmdDone = ":done"
	cmdQuit = ":quit"
)

type prompter struct {
	sc  *bufio.Scanner
	out io.Writer
}

// read returns the next trimmed line; ok is false at end of input.
func (p *prompter) read(prompt string) (string, bool) {
	fmt.Fprint(p.out, prompt)
	if !p.sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(p.sc.Text()), true
}

func runInterview(ctx context.Context, svc answerer, conv *core.Conversation, in io.Reader, out io.Writer) error {
	p := &prompter{sc: bufio.NewScanner(in), out: out}
	fmt.Fprintf(out, "Session %s\n\n", conv.SessionID())

	v := conv.View()
	for _, m := range v.Messages {
		printMessage(out, m)
	}
	shown := len(v.Messages)

	for {
		v = conv.View()
		for _, m := range v.Messages[shown:] {
			if m.Sender == store.SenderAssistant {
				printMessage(out, m)
			}
		}
		shown = len(v.Messages)

		if !v.Awaiting {
			if v.LastError != "" {
				fmt.Fprintf(out, "The interview stopped: %s\n", v.LastError)
			}
			break
		}
		var current store.Message
		for _, m := range v.Messages {
			if m.ID == v.CurrentID {
				current = m
			}
		}

		line, err := ask(ctx, p, svc, conv, current)
		if line == cmdQuit {
			if err := conv.Flush(ctx); err != nil {
				fmt.Fprintf(out, "Some messages were not saved: %v\n", err)
			}
			conv.Close()
			fmt.Fprintf(out, "Saved. Resume with: intakectl interview --session %s\n", conv.SessionID())
			return nil
		}
		if line == cmdDone {
			break
		}
		if err != nil {
			fmt.Fprintf(out, "! %v\n", err)
		}
	}

	if err := svc.Complete(ctx, conv); err != nil {
		fmt.Fprintf(out, "Transcript upload failed: %v\n", err)
		return nil
	}
	if title := conv.Title(); title != core.DefaultTitle {
		fmt.Fprintf(out, "Finished %q (session %s)\n", title, conv.SessionID())
	}
	return nil
}

// ask answers the current question from the next input line. It returns
// cmdDone at end of input.
func ask(ctx context.Context, p *prompter, svc answerer, conv *core.Conversation, m store.Message) (string, error) {
	switch in := m.Input.(type) {
	case store.OptionsInput:
		printOptions(p.out, "  ", in.Options)
		line, ok := p.read("> ")
		if !ok {
			return cmdDone, nil
		}
		if isCommand(line) {
			return line, nil
		}
		option := resolveOption(in.Options, line)
		if option != store.OtherOption {
			return line, svc.SelectOption(ctx, conv, m.ID, option)
		}
		if err := svc.SelectOption(ctx, conv, m.ID, option); err != nil {
			return line, err
		}
		text, ok := p.read("Your answer: ")
		if !ok {
			return cmdDone, nil
		}
		if isCommand(text) {
			return text, nil
		}
		return text, svc.SubmitOther(ctx, conv, m.ID, text)

	case store.MixedInput:
		answers := make([]string, len(in.Sections))
		for i, s := range in.Sections {
			fmt.Fprintf(p.out, "  [%d/%d] %s\n", i+1, len(in.Sections), s.Question)
			if s.Kind == store.KindOptions {
				printOptions(p.out, "    ", s.Options)
			}
			line, ok := p.read("  > ")
			if !ok {
				return cmdDone, nil
			}
			if isCommand(line) {
				return line, nil
			}
			if s.Kind == store.KindOptions {
				line = resolveOption(s.Options, line)
			}
			answers[i] = line
		}
		return "", svc.SubmitSections(ctx, conv, m.ID, answers)

	default:
		line, ok := p.read("> ")
		if !ok {
			return cmdDone, nil
		}
		if isCommand(line) {
			return line, nil
		}
		return line, svc.SubmitText(ctx, conv, m.ID, line)
	}
}

func isCommand(line string) bool {
	return line == cmdDone || line == cmdQuit
}

// resolveOption accepts a 1-based option number or the option text in any case.
func resolveOption(options []string, line string) string {
	if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(options) {
		return options[n-1]
	}
	for _, o := range options {
		if strings.EqualFold(o, line) {
			return o
		}
	}
	return line
}

func printOptions(out io.Writer, indent string, options []string) {
	for i, o := range options {
		fmt.Fprintf(out, "%s%d) %s\n", indent, i+1, o)
	}
}

func printMessage(out io.Writer, m store.Message) {
	if m.Sender == store.SenderRespondent {
		fmt.Fprintf(out, "You: %s\n", m.Text)
		return
	}
	fmt.Fprintf(out, "AI:  %s\n", m.Text)
	if m.CustomResponse != "" && m.ID == core.SeedMessageID {
		fmt.Fprintf(out, "You: %s\n", m.CustomResponse)
	}
}
