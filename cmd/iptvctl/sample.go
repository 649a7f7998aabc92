package main

import (
	"fmt"

	"github.com/rpattn/iptvsync/internal/ingestion"
	"github.com/rpattn/iptvsync/internal/storage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSampleCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "sample [path]",
		Short: "Write a sample account workbook under the uploads root",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "sample-iptv-users.xlsx"
			if len(args) == 1 {
				path = args[0]
			}

			files := storage.NewOSFileStore(c.cfg.Pipeline.UploadsRoot)
			out, err := files.Create(path)
			if err != nil {
				return err
			}
			written, err := ingestion.WriteSampleWorkbook(out)
			if closeErr := out.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return err
			}

			c.logger.Debug("sample workbook written", zap.String("path", path), zap.Int("rows", written))
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d accounts to sheet %q in %s\n", written, ingestion.SampleSheet, path)
			return nil
		},
	}
}
