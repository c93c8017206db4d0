package main

import (
	"fmt"

	"github.com/chtzvt/dropslurp/internal/logging"
	"github.com/chtzvt/dropslurp/internal/storage"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the storage root and every configured folder",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, closer, err := loadRuntime()
		if err != nil {
			return err
		}
		defer closeLog(closer)

		files := storage.New(cfg.Storage.Root, logging.Component(logger, "storage"))
		if err := files.Init(cfg.Folders()...); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), files.Root())
		for _, f := range cfg.Folders() {
			dir, err := files.Dir(f)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
		}
		return nil
	},
}
