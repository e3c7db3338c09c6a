package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/quickrupee/voicebot/backend/internal/service/eligibility"
)

var scenarioCmd = &cobra.Command{
	Use:   "scenario <answer>...",
	Short: "Replay a list of answers through the screening script",
	Example: `  screenertester scenario yes yes yes
  screenertester scenario maybe no --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		script, classifier, err := cfg.Eligibility.NewScreener()
		if err != nil {
			return err
		}

		eval := eligibility.Evaluate(script, classifier, args)
		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(eval)
		}
		printEvaluation(cmd.OutOrStdout(), eval)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scenarioCmd)
	scenarioCmd.Flags().Bool("json", false, "Print the evaluation as JSON")
}

func printEvaluation(out io.Writer, eval eligibility.Evaluation) {
	fmt.Fprintf(out, "Bot: %s\n", eval.Greeting)
	for _, turn := range eval.Turns {
		if turn.Input != "" {
			fmt.Fprintf(out, "You: %s\n", turn.Input)
		}
		marker := ""
		if !turn.Result.IsValid {
			marker = " (re-prompt)"
		}
		fmt.Fprintf(out, "Bot: %s%s\n", turn.Result.Message, marker)
	}

	switch {
	case !eval.Complete:
		fmt.Fprintf(out, "Result: incomplete at %s\n", eval.Final.Step)
	case eval.Outcome != nil && *eval.Outcome:
		fmt.Fprintln(out, "Result: eligible")
	default:
		fmt.Fprintf(out, "Result: not eligible (%s)\n", eval.Final.RejectionReason)
	}
}
