package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	sqliteadapter "github.com/ericfisherdev/buildstatus/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/buildstatus/internal/config"
	"github.com/ericfisherdev/buildstatus/internal/domain/model"
	"github.com/ericfisherdev/buildstatus/internal/domain/port/driven"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage stored GitHub access tokens",
		Long: `Tokens are stored encrypted with BUILDSTATUS_SECRET_KEY and scoped to an
owner ("octo") or a single repository ("octo/widgets"). The most specific
scope wins when a status request is served.`,
	}

	var value string
	set := &cobra.Command{
		Use:   "set SCOPE",
		Short: "Store the token for SCOPE, reading it from stdin unless --value is given",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := model.ValidateScope(args[0]); err != nil {
				return err
			}
			token := value
			if token == "" {
				var err error
				if token, err = readToken(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			return withStore(cmd.Context(), func(store driven.CredentialStore) error {
				if err := store.Set(cmd.Context(), args[0], token); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stored token for %s\n", args[0])
				return nil
			})
		},
	}
	set.Flags().StringVar(&value, "value", "", "token value (visible in shell history; prefer stdin)")

	del := &cobra.Command{
		Use:   "delete SCOPE",
		Short: "Remove the token stored for SCOPE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := model.ValidateScope(args[0]); err != nil {
				return err
			}
			return withStore(cmd.Context(), func(store driven.CredentialStore) error {
				if err := store.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted token for %s\n", args[0])
				return nil
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored token scopes with masked values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), func(store driven.CredentialStore) error {
				creds, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "SCOPE\tTOKEN\tUPDATED")
				for _, c := range creds {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Scope, maskToken(c.Value), c.UpdatedAt.Format("2006-01-02 15:04:05"))
				}
				return tw.Flush()
			})
		},
	}

	cmd.AddCommand(set, del, list)
	return cmd
}

// withStore opens the token store for the duration of fn.
func withStore(ctx context.Context, fn func(driven.CredentialStore) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	storage, err := config.LoadStorage()
	if err != nil {
		return err
	}
	if storage.SecretKey == nil {
		return driven.ErrEncryptionKeyNotSet
	}

	db, err := sqliteadapter.NewDB(ctx, storage.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	return fn(sqliteadapter.NewCredentialRepo(db, storage.SecretKey))
}

func readToken(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return "", errors.New("read token: no input")
	}
	token := strings.TrimSpace(scanner.Text())
	if token == "" {
		return "", errors.New("read token: empty value")
	}
	return token, nil
}

func maskToken(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return "****" + token[len(token)-4:]
}
