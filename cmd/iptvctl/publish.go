package main

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/rpattn/iptvsync/internal/bus"
	"github.com/rpattn/iptvsync/internal/domain"
	"github.com/rpattn/iptvsync/internal/events"
	"github.com/rpattn/iptvsync/internal/storage"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var spreadsheetTypes = map[string]string{
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".xls":  "application/vnd.ms-excel",
	".xlsm": "application/vnd.ms-excel.sheet.macroEnabled.12",
}

func newPublishCmd(c *cli) *cobra.Command {
	var mimeType, uploadedBy string

	cmd := &cobra.Command{
		Use:   "publish <path>",
		Short: "Announce a file under the uploads root on the upload topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]

			files := storage.NewOSFileStore(c.cfg.Pipeline.UploadsRoot)
			info, err := files.Stat(path)
			if err != nil {
				return err
			}
			if mimeType == "" {
				mimeType = detectMimeType(path)
			}

			event := domain.UploadEvent{
				FileID:     uuid.NewString(),
				FileName:   filepath.Base(path),
				FilePath:   path,
				FileSize:   info.Size(),
				MimeType:   mimeType,
				UploadedBy: uploadedBy,
				UploadedAt: time.Now().UTC(),
			}

			conn := bus.NewConnection(c.cfg.Bus, c.logger)
			if err := conn.Connect(ctx); err != nil {
				return err
			}
			defer func() { _ = conn.Close() }()

			publisher := bus.NewPublisher(conn, c.cfg.UploadPublisher(), c.logger)
			defer func() { _ = publisher.Close() }()

			if err := events.NewUploadPublisher(publisher).Publish(ctx, event); err != nil {
				return err
			}

			c.logger.Debug("upload event published", zap.String("file_id", event.FileID))
			fmt.Fprintf(cmd.OutOrStdout(), "published upload %s (%s, %d bytes)\n", event.FileID, event.FileName, event.FileSize)
			return nil
		},
	}
	cmd.Flags().StringVar(&mimeType, "mime", "", "MIME type to announce (default: from extension)")
	cmd.Flags().StringVar(&uploadedBy, "uploaded-by", "iptvctl", "uploader recorded in the event")
	return cmd
}

func detectMimeType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := spreadsheetTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
