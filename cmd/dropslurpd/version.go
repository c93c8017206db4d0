package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	gitCommit = ""
	buildDate = ""
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print dropslurpd version",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "dropslurpd version: %s\n", version)
		if gitCommit != "" {
			fmt.Fprintf(out, "git commit: %s\n", gitCommit)
		}
		if buildDate != "" {
			fmt.Fprintf(out, "build date: %s\n", buildDate)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
