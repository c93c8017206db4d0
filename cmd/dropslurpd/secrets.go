package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/chtzvt/dropslurp/cmd/dropslurpd/config"
	"github.com/chtzvt/dropslurp/internal/secrets"
	"github.com/spf13/cobra"
)

func init() {
	secretsCmd := &cobra.Command{Use: "secrets", Short: "Local sealed secret store"}
	secretsCmd.AddCommand(
		secretsGenKeyCmd(),
		secretsListCmd(),
		secretsSetCmd(),
		secretsGetCmd(),
		secretsDeleteCmd(),
	)
	rootCmd.AddCommand(secretsCmd)
}

func localStore() (*secrets.Store, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	return requireSecrets(cfg.Secrets)
}

func secretsGenKeyCmd() *cobra.Command {
	genKeyCmd := &cobra.Command{
		Use:   "genkey",
		Short: "Generate a new base64-encoded store key",
		RunE: func(cmd *cobra.Command, args []string) error {
			keyFile, _ := cmd.Flags().GetString("key-file")

			key, err := secrets.GenerateKey()
			if err != nil {
				return fmt.Errorf("failed to generate key: %w", err)
			}
			encoded := secrets.EncodeKey(key) + "\n"
			if keyFile == "" {
				fmt.Fprint(cmd.OutOrStdout(), encoded)
				return nil
			}
			if err := os.WriteFile(keyFile, []byte(encoded), 0o600); err != nil {
				return fmt.Errorf("failed to write key file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Store key written to %s\n", keyFile)
			return nil
		},
	}
	genKeyCmd.Flags().String("key-file", "", "Write the key to this file instead of stdout")
	return genKeyCmd
}

func secretsListCmd() *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List secret names",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := localStore()
			if err != nil {
				return err
			}
			names, err := store.List(context.Background(), prefix)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			outResult(w, names, func(v any) { printSecretsTable(w, v.([]string)) })
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Prefix filter")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output as JSON")
	return cmd
}

func secretsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <name>",
		Short: "Add or update a secret (reads value from stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := localStore()
			if err != nil {
				return err
			}
			val, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			if err := store.Set(context.Background(), args[0], val); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Secret %q set\n", args[0])
			return nil
		},
	}
}

func secretsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Print a secret value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := localStore()
			if err != nil {
				return err
			}
			val, err := store.Get(context.Background(), args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(val)
			return err
		},
	}
}

func secretsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := localStore()
			if err != nil {
				return err
			}
			if err := store.Delete(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Secret %q deleted\n", args[0])
			return nil
		},
	}
}
