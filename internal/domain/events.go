package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// NotificationType distinguishes the events published on the notification topic.
type NotificationType string

const (
	NotificationAccountCreated  NotificationType = "account_created"
	NotificationProcessingError NotificationType = "processing_error"
)

// Event is the closed set of payloads carried on the bus: UploadEvent or
// NotificationEvent.
type Event interface {
	eventName() string
}

// UploadEvent is published by the upload collaborator once a file is on disk.
type UploadEvent struct {
	FileID     string    `json:"fileId"`
	FileName   string    `json:"fileName"`
	FilePath   string    `json:"filePath"`
	FileSize   int64     `json:"fileSize"`
	MimeType   string    `json:"mimeType"`
	UploadedBy string    `json:"uploadedBy"`
	UploadedAt time.Time `json:"uploadedAt"`
}

func (UploadEvent) eventName() string { return "upload" }

// UnmarshalJSON decodes fileSize and uploadedAt leniently: they are
// informational, so a value in an unexpected form decodes to zero instead of
// rejecting the upload. fileSize may be a number or a numeric string;
// uploadedAt may be an RFC 3339 string or epoch milliseconds.
func (e *UploadEvent) UnmarshalJSON(data []byte) error {
	var raw struct {
		FileID     string          `json:"fileId"`
		FileName   string          `json:"fileName"`
		FilePath   string          `json:"filePath"`
		FileSize   json.RawMessage `json:"fileSize"`
		MimeType   string          `json:"mimeType"`
		UploadedBy string          `json:"uploadedBy"`
		UploadedAt json.RawMessage `json:"uploadedAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.FileID = raw.FileID
	e.FileName = raw.FileName
	e.FilePath = raw.FilePath
	e.FileSize = lenientSize(raw.FileSize)
	e.MimeType = raw.MimeType
	e.UploadedBy = raw.UploadedBy
	e.UploadedAt = lenientTime(raw.UploadedAt)
	return nil
}

func lenientSize(raw json.RawMessage) int64 {
	var number json.Number
	if err := json.Unmarshal(raw, &number); err != nil {
		var text string
		if json.Unmarshal(raw, &text) != nil {
			return 0
		}
		number = json.Number(strings.TrimSpace(text))
	}
	if n, err := number.Int64(); err == nil {
		return n
	}
	if f, err := number.Float64(); err == nil && f >= 0 {
		return int64(f)
	}
	return 0
}

func lenientTime(raw json.RawMessage) time.Time {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(text))
		if err != nil {
			return time.Time{}
		}
		return t
	}
	var millis int64
	if err := json.Unmarshal(raw, &millis); err == nil && millis > 0 {
		return time.UnixMilli(millis).UTC()
	}
	return time.Time{}
}

// Validate checks the fields the pipeline cannot work without.
func (e UploadEvent) Validate() error {
	var missing []string
	if strings.TrimSpace(e.FileID) == "" {
		missing = append(missing, "fileId")
	}
	if strings.TrimSpace(e.FileName) == "" {
		missing = append(missing, "fileName")
	}
	if strings.TrimSpace(e.FilePath) == "" {
		missing = append(missing, "filePath")
	}
	if len(missing) > 0 {
		return &StructuralError{Reason: "missing required fields: " + strings.Join(missing, ", ")}
	}
	return nil
}

// NotificationEvent is published once per created account, or once per upload
// that failed as a whole.
type NotificationEvent struct {
	Type        NotificationType `json:"type"`
	SubjectID   string           `json:"userId"`
	Name        string           `json:"name"`
	Email       string           `json:"email,omitempty"`
	Error       string           `json:"error,omitempty"`
	ProcessedAt time.Time        `json:"processedAt"`
}

func (NotificationEvent) eventName() string { return "notification" }

// AccountCreated builds the notification for a freshly persisted account.
func AccountCreated(account Account, at time.Time) NotificationEvent {
	return NotificationEvent{
		Type:        NotificationAccountCreated,
		SubjectID:   account.ID.String(),
		Name:        account.Name,
		Email:       account.Email,
		ProcessedAt: at.UTC(),
	}
}

// ProcessingFailed builds the notification for an upload that failed as a whole.
func ProcessingFailed(upload UploadEvent, cause error, at time.Time) NotificationEvent {
	return NotificationEvent{
		Type:        NotificationProcessingError,
		SubjectID:   upload.FileID,
		Name:        upload.FileName,
		Error:       cause.Error(),
		ProcessedAt: at.UTC(),
	}
}

// Validate checks the fields the email consumer relies on.
func (e NotificationEvent) Validate() error {
	var missing []string
	if strings.TrimSpace(e.SubjectID) == "" {
		missing = append(missing, "userId")
	}
	if strings.TrimSpace(e.Name) == "" {
		missing = append(missing, "name")
	}
	if e.ProcessedAt.IsZero() {
		missing = append(missing, "processedAt")
	}
	switch e.Type {
	case NotificationAccountCreated:
		if strings.TrimSpace(e.Email) == "" {
			missing = append(missing, "email")
		}
	case NotificationProcessingError:
		if strings.TrimSpace(e.Error) == "" {
			missing = append(missing, "error")
		}
	default:
		return &StructuralError{Reason: fmt.Sprintf("unknown notification type %q", e.Type)}
	}
	if len(missing) > 0 {
		return &StructuralError{Reason: "missing required fields: " + strings.Join(missing, ", ")}
	}
	return nil
}

// UnmarshalJSON accepts subjectId as an alias of userId.
func (e *NotificationEvent) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type        NotificationType `json:"type"`
		UserID      string           `json:"userId"`
		SubjectID   string           `json:"subjectId"`
		Name        string           `json:"name"`
		Email       string           `json:"email"`
		Error       string           `json:"error"`
		ProcessedAt time.Time        `json:"processedAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Type = raw.Type
	e.SubjectID = raw.UserID
	if e.SubjectID == "" {
		e.SubjectID = raw.SubjectID
	}
	e.Name = raw.Name
	e.Email = raw.Email
	e.Error = raw.Error
	e.ProcessedAt = raw.ProcessedAt
	return nil
}

// DecodeEvent decodes a bus payload into its concrete event type. Payloads
// that are empty, not JSON objects, or of an unknown shape are rejected with a
// StructuralError, as are events missing required fields.
func DecodeEvent(payload []byte) (Event, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, &StructuralError{Reason: "empty payload"}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, &StructuralError{Reason: "payload is not a JSON object", Err: err}
	}

	if _, ok := fields["type"]; ok {
		event, err := DecodeNotificationEvent(payload)
		if err != nil {
			return nil, err
		}
		return event, nil
	}
	if _, ok := fields["fileId"]; ok {
		event, err := DecodeUploadEvent(payload)
		if err != nil {
			return nil, err
		}
		return event, nil
	}
	return nil, &StructuralError{Reason: "unknown event shape"}
}

// DecodeUploadEvent decodes and validates an upload event.
func DecodeUploadEvent(payload []byte) (UploadEvent, error) {
	var event UploadEvent
	if len(bytes.TrimSpace(payload)) == 0 {
		return event, &StructuralError{Reason: "empty payload"}
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return event, &StructuralError{Reason: "malformed upload event", Err: err}
	}
	if err := event.Validate(); err != nil {
		return event, err
	}
	return event, nil
}

// DecodeNotificationEvent decodes and validates a notification event.
func DecodeNotificationEvent(payload []byte) (NotificationEvent, error) {
	var event NotificationEvent
	if len(bytes.TrimSpace(payload)) == 0 {
		return event, &StructuralError{Reason: "empty payload"}
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return event, &StructuralError{Reason: "malformed notification event", Err: err}
	}
	if err := event.Validate(); err != nil {
		return event, err
	}
	return event, nil
}
