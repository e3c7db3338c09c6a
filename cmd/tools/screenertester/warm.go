package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var warmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Render every script prompt into the configured cache backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		timeout, _ := cmd.Flags().GetDuration("timeout")

		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		script, _, err := cfg.Eligibility.NewScreener()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		cache, closeFn, err := newPromptCache(ctx, cfg, script.Vocabulary(), logger)
		if err != nil {
			return err
		}
		defer closeFn()

		start := time.Now()
		rendered, err := cache.Warm(ctx, cfg.Cache.WarmupConcurrency)
		if err != nil {
			return fmt.Errorf("warmed %d prompts before failing: %w", rendered, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d prompts ready in %s backend (%s)\n",
			cache.Len(ctx), cfg.Cache.Backend, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(warmCmd)
	warmCmd.Flags().Duration("timeout", 2*time.Minute, "Overall timeout")
}
