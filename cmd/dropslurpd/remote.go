package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chtzvt/dropslurp/internal/api"
	"github.com/chtzvt/dropslurp/internal/engine"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	apiURL     string
	apiToken   string
	outputJSON bool
	timeout    time.Duration
)

func init() {
	remote := []*cobra.Command{pushCmd(), fetchCmd(), statusCmd(), scanCmd()}
	for _, c := range remote {
		c.Flags().StringVar(&apiURL, "api-url", os.Getenv("DROPSLURP_API_URL"), "API URL (or $DROPSLURP_API_URL)")
		c.Flags().StringVar(&apiToken, "api-token", os.Getenv("DROPSLURP_API_TOKEN"), "API token (or $DROPSLURP_API_TOKEN)")
		c.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "API request timeout")
		c.PreRunE = func(cmd *cobra.Command, args []string) error {
			if apiURL == "" || apiToken == "" {
				return fmt.Errorf("--api-url and --api-token are required")
			}
			return nil
		}
		rootCmd.AddCommand(c)
	}
}

func cliClient() *api.Client {
	c := api.NewClient(apiURL, apiToken)
	c.Client.Timeout = timeout
	return c
}

func pushCmd() *cobra.Command {
	var (
		dir    string
		name   string
		unique bool
	)
	cmd := &cobra.Command{
		Use:   "push <file>",
		Short: "Upload a local file into a folder of a running daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			if name == "" {
				name = filepath.Base(args[0])
			}
			res, err := cliClient().Upload(context.Background(), dir, name, f, unique)
			if err != nil {
				return err
			}
			outResult(cmd.OutOrStdout(), res, func(v any) {
				r := v.(*api.UploadResult)
				fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s (%s)\n", r.Path, humanize.Bytes(uint64(r.Size)))
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "inbox", "Destination folder under the storage root")
	cmd.Flags().StringVar(&name, "name", "", "Stored file name (default: local base name)")
	cmd.Flags().BoolVar(&unique, "unique", false, "Insert a UUID into the stored name")
	return cmd
}

func fetchCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "fetch <dir> <name>",
		Short: "Download a file from a folder of a running daemon",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = args[1]
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			n, err := cliClient().Download(context.Background(), args[0], args[1], f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				os.Remove(out)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s)\n", out, humanize.Bytes(uint64(n)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "Output file (default: remote name)")
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show engine metrics of a running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := cliClient().Metrics(context.Background())
			if err != nil {
				return err
			}
			outResult(cmd.OutOrStdout(), snap, func(v any) {
				printMetricsTable(cmd.OutOrStdout(), *v.(*engine.Snapshot))
			})
			return nil
		},
	}
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output as JSON")
	return cmd
}

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Ask a running daemon to scan its inbox now",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cliClient().Scan(context.Background()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Scan requested")
			return nil
		},
	}
}
