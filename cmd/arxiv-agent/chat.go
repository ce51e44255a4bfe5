// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pdiddy/arxiv-agent/internal/chat"
	"github.com/pdiddy/arxiv-agent/pkg/types"
)

var chatCmd = &cobra.Command{
	Use:   "chat <paper-id> [question]",
	Short: "Ask questions about a stored paper",
	Long: `Chat answers questions about one stored paper. With a question argument
it answers once and exits; otherwise it reads questions from stdin, one
per line with line editing, keeping the conversation history until EOF
or "exit".`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	o, err := newOrchestrator(cmd.Context(), s)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	paperID := args[0]
	if len(args) == 2 {
		renderTurn(out, o.Stream(cmd.Context(), chat.Request{PaperID: paperID, Message: args[1]}))
		return nil
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cyan("you> "),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		Stdin:             io.NopCloser(cmd.InOrStdin()),
		Stdout:            out,
	})
	if err != nil {
		return fmt.Errorf("starting readline: %w", err)
	}
	defer rl.Close()

	var history []types.ChatTurn
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		question := strings.TrimSpace(line)
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			return nil
		}

		answer := renderTurn(out, o.Stream(cmd.Context(), chat.Request{
			PaperID: paperID,
			Message: question,
			History: history,
		}))
		history = append(history,
			types.ChatTurn{Role: types.RoleUser, Content: question},
			types.ChatTurn{Role: types.RoleAssistant, Content: answer})
	}
}

// renderTurn prints a turn as it streams and returns the model's answer
// text without notices or error fragments.
func renderTurn(w io.Writer, events <-chan types.StreamEvent) string {
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	var answer strings.Builder
	for ev := range events {
		switch ev.Kind {
		case types.EventNotice:
			if ev.Tool != nil && ev.Tool.Phase == types.ToolEnd {
				fmt.Fprint(w, gray(fmt.Sprintf("[%s done]\n", ev.Tool.ToolName)))
				continue
			}
			fmt.Fprint(w, yellow(ev.Text))
		case types.EventError:
			fmt.Fprint(w, red(ev.Text))
		default:
			answer.WriteString(ev.Text)
			fmt.Fprint(w, ev.Text)
		}
	}
	fmt.Fprintln(w)
	return answer.String()
}
