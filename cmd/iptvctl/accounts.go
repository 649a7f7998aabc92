package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rpattn/iptvsync/internal/domain"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newAccountsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Read and delete stored accounts",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List accounts, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := c.openStore(cmd.Context())
				if err != nil {
					return err
				}
				defer store.Close()

				accounts, err := store.Accounts.List(cmd.Context())
				if err != nil {
					return err
				}
				return printAccounts(cmd.OutOrStdout(), accounts...)
			},
		},
		&cobra.Command{
			Use:   "get <id>",
			Short: "Show one account by id",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid account id: %w", err)
				}
				store, err := c.openStore(cmd.Context())
				if err != nil {
					return err
				}
				defer store.Close()

				account, err := store.Accounts.GetByID(cmd.Context(), id)
				if err != nil {
					return notFound(err, args[0])
				}
				return printAccounts(cmd.OutOrStdout(), account)
			},
		},
		&cobra.Command{
			Use:   "find <username>",
			Short: "Show one account by username",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := c.openStore(cmd.Context())
				if err != nil {
					return err
				}
				defer store.Close()

				account, err := store.Accounts.GetByUserName(cmd.Context(), args[0])
				if err != nil {
					return notFound(err, args[0])
				}
				return printAccounts(cmd.OutOrStdout(), account)
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete one account by id",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid account id: %w", err)
				}
				store, err := c.openStore(cmd.Context())
				if err != nil {
					return err
				}
				defer store.Close()

				deleted, err := store.Accounts.Delete(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !deleted {
					return notFound(domain.ErrNotFound, args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
				return nil
			},
		},
		&cobra.Command{
			Use:   "count",
			Short: "Print the number of stored accounts",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := c.openStore(cmd.Context())
				if err != nil {
					return err
				}
				defer store.Close()

				count, err := store.Accounts.Count(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), count)
				return nil
			},
		},
	)
	return cmd
}

func notFound(err error, key string) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("account %s not found", key)
	}
	return err
}

func printAccounts(w io.Writer, accounts ...domain.Account) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tUSERNAME\tEMAIL\tIP\tMAC\tACCOUNT\tCREATED")
	for _, a := range accounts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ID, a.Name, a.UserName, a.Email, a.IP, a.MAC, a.AccountNumber,
			a.CreatedAt.UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}
