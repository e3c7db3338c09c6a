package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quickrupee/voicebot/backend/internal/service/eligibility"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Answer the screening questions interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		script, classifier, err := cfg.Eligibility.NewScreener()
		if err != nil {
			return err
		}
		return runChat(cmd.InOrStdin(), cmd.OutOrStdout(), eligibility.NewEngine(script, classifier))
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

// runChat 逐行读取回答直到对话结束或输入耗尽。
func runChat(in io.Reader, out io.Writer, engine *eligibility.Engine) error {
	fmt.Fprintf(out, "Bot: %s\n", engine.Start())
	first := engine.Process("")
	fmt.Fprintf(out, "Bot: %s\n", first.Message)

	scanner := bufio.NewScanner(in)
	for !engine.IsComplete() {
		fmt.Fprint(out, "You: ")
		if !scanner.Scan() {
			break
		}
		res := engine.Process(strings.TrimSpace(scanner.Text()))
		fmt.Fprintf(out, "Bot: %s\n", res.Message)
		if res.ShouldEnd {
			fmt.Fprintf(out, "[%s] eligible=%t\n", res.Step, res.IsEligible != nil && *res.IsEligible)
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if !engine.IsComplete() {
		fmt.Fprintf(out, "\n[abandoned at %s]\n", engine.CurrentStep())
	}
	return nil
}
