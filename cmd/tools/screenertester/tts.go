package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/quickrupee/voicebot/backend/internal/model/screening"
)

var ttsCmd = &cobra.Command{
	Use:   "tts",
	Short: "Render one prompt to an MP3 file",
	Example: `  screenertester tts --prompt ask_salary --out salary.mp3
  screenertester tts --text "Hello there" --out hello.mp3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt, _ := cmd.Flags().GetString("prompt")
		text, _ := cmd.Flags().GetString("text")
		outPath, _ := cmd.Flags().GetString("out")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		if (prompt == "") == (text == "") {
			return fmt.Errorf("exactly one of --prompt or --text is required")
		}

		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		script, _, err := cfg.Eligibility.NewScreener()
		if err != nil {
			return err
		}

		if prompt != "" {
			text = script.Prompt(screening.Step(prompt))
			if text == "" {
				return fmt.Errorf("no prompt for step %q", prompt)
			}
		}
		if outPath == "" {
			outPath = fmt.Sprintf("tts-%d.mp3", time.Now().Unix())
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		cache, closeFn, err := newPromptCache(ctx, cfg, script.Vocabulary(), logger)
		if err != nil {
			return err
		}
		defer closeFn()

		audio, err := cache.GetOrRender(ctx, text)
		if err != nil {
			return err
		}
		if err := os.WriteFile(outPath, audio, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes to %s (cached=%t)\n", len(audio), outPath, cache.Cacheable(text))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ttsCmd)
	ttsCmd.Flags().String("prompt", "", "Script step to render, e.g. greeting or ask_city")
	ttsCmd.Flags().String("text", "", "Arbitrary text to render")
	ttsCmd.Flags().String("out", "", "Output file (default tts-<unix>.mp3)")
	ttsCmd.Flags().Duration("timeout", 45*time.Second, "Request timeout")
}
