package notify

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/rpattn/iptvsync/internal/domain"
)

// Message is a rendered email.
type Message struct {
	From       string
	Recipients []string
	Subject    string
	Body       string
}

var accountCreatedBody = template.Must(template.New("account_created").Parse(
	`IPTV Account Successfully Created
  - User ID: {{.SubjectID}}
  - Name: {{.Name}}
  - Email: {{if .Email}}{{.Email}}{{else}}Not provided{{end}}
  - Created At: {{.ProcessedAt.Format "2006-01-02 15:04:05 MST"}}
This is an automated notification from the File Management System.
`))

var processingErrorBody = template.Must(template.New("processing_error").Parse(
	`IPTV Account Import Failed
  - File ID: {{.SubjectID}}
  - File: {{.Name}}
  - Error: {{.Error}}
  - Failed At: {{.ProcessedAt.Format "2006-01-02 15:04:05 MST"}}
No accounts were created from this upload.
This is an automated notification from the File Management System.
`))

// Render builds the admin email for a notification event.
func Render(event domain.NotificationEvent, from, admin string) (Message, error) {
	var (
		subject string
		tmpl    *template.Template
	)
	switch event.Type {
	case domain.NotificationAccountCreated:
		subject = "IPTV Account Created - Welcome " + event.Name
		tmpl = accountCreatedBody
	case domain.NotificationProcessingError:
		subject = "IPTV Account Import Failed - " + event.Name
		tmpl = processingErrorBody
	default:
		return Message{}, fmt.Errorf("no email template for notification type %q", event.Type)
	}

	event.ProcessedAt = event.ProcessedAt.In(time.UTC)
	var body bytes.Buffer
	if err := tmpl.Execute(&body, event); err != nil {
		return Message{}, fmt.Errorf("failed to render %s email: %w", event.Type, err)
	}

	return Message{
		From:       from,
		Recipients: []string{admin},
		Subject:    subject,
		Body:       body.String(),
	}, nil
}
