package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove stale entries from the inbox that no filter accepts, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, closer, err := loadRuntime()
		if err != nil {
			return err
		}
		defer closeLog(closer)

		eng, _, err := buildEngine(cfg, logger)
		if err != nil {
			return err
		}
		defer eng.Stop()
		ctx, cancel := cmdContext()
		defer cancel()

		removed, err := eng.Purge(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d stale entries from %s\n", removed, cfg.Watch.Dir)
		return nil
	},
}
