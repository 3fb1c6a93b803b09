package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/taskradar/internal/apperr"
	"github.com/nhle/taskradar/internal/credential"
)

// Keyring writes, swapped in tests.
var (
	setCredential    = credential.Set
	deleteCredential = credential.Delete
)

func newCredentialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage secrets stored in the system keyring",
	}
	cmd.AddCommand(newCredentialsSetCmd(), newCredentialsDeleteCmd())
	return cmd
}

func newCredentialsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key>",
		Short: "Store a secret read from stdin",
		Long:  "Store a secret read from stdin. Keys: " + strings.Join(credential.Keys, ", "),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if err := checkKey(key); err != nil {
				return err
			}

			value, err := readSecret(cmd.InOrStdin())
			if err != nil {
				return err
			}
			if value == "" {
				return apperr.Validation("set credential", "empty value for %s", key)
			}

			if err := setCredential(key, value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s\n", key)
			return nil
		},
	}
}

func newCredentialsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Remove a secret from the system keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if err := checkKey(key); err != nil {
				return err
			}
			if err := deleteCredential(key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", key)
			return nil
		},
	}
}

func checkKey(key string) error {
	if !credential.Known(key) {
		return apperr.Validation("credentials", "unknown key %q (want one of %s)",
			key, strings.Join(credential.Keys, ", "))
	}
	return nil
}

// readSecret returns the first line of r without its line ending.
func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
