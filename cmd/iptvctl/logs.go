package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newLogsCmd(c *cli) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "logs <fileId>",
		Short: "Show skipped and failed rows recorded for an upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.Logs.ListByFile(cmd.Context(), args[0], limit, offset)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no ingestion log entries for %s\n", args[0])
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ROW\tFIELD\tREASON\tAT")
			for _, entry := range entries {
				row := "-"
				if entry.RowNumber != nil {
					row = strconv.Itoa(*entry.RowNumber)
				}
				field := string(entry.Field)
				if field == "" {
					field = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", row, field, entry.Reason, entry.CreatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 200, "maximum entries to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "entries to skip")
	return cmd
}
