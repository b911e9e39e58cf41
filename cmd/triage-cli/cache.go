package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/mikey/inbox-triage/internal/core"
	"github.com/mikey/inbox-triage/internal/di"
	"github.com/spf13/cobra"
)

var errCacheDisabled = errors.New("cache is disabled (cache.enabled=false)")

func newCacheCmd(flags *di.CLIFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or invalidate cached analyses",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <threadId>",
		Short: "Print the cached analysis of a thread and whether it is fresh",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return invoke(flags, func(cache *core.AnalysisCache) error {
				if cache == nil {
					return errCacheDisabled
				}
				entry, fresh, err := cache.Get(context.Background(), args[0])
				if err != nil {
					return err
				}
				if entry == nil {
					return fmt.Errorf("no cached analysis for thread %s", args[0])
				}
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"threadId":  entry.Key,
					"fresh":     fresh,
					"timestamp": entry.Timestamp,
					"ttl":       entry.TTL.String(),
					"result":    entry.Result,
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <threadId>",
		Short: "Remove the cached analysis of a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return invoke(flags, func(cache *core.AnalysisCache) error {
				if cache == nil {
					return errCacheDisabled
				}
				if err := cache.Delete(context.Background(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	})

	return cmd
}
