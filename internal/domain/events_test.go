package domain

import (
	"errors"
	"testing"
	"time"
)

func TestDecodeEventUpload(t *testing.T) {
	payload := []byte(`{"fileId":"f-1","fileName":"accounts.xlsx","filePath":"uploads/f-1.xlsx","fileSize":2048,"mimeType":"application/vnd.ms-excel","uploadedBy":"admin","uploadedAt":"2025-03-01T12:00:00Z"}`)

	event, err := DecodeEvent(payload)
	if err != nil {
		t.Fatalf("decode returned error: %v", err)
	}
	upload, ok := event.(UploadEvent)
	if !ok {
		t.Fatalf("expected UploadEvent, got %T", event)
	}
	if upload.FileID != "f-1" || upload.FileSize != 2048 || upload.UploadedBy != "admin" {
		t.Fatalf("unexpected upload: %+v", upload)
	}
	if !upload.UploadedAt.Equal(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected uploadedAt: %v", upload.UploadedAt)
	}
}

func TestDecodeUploadEventToleratesOptionalFieldDrift(t *testing.T) {
	cases := map[string]struct {
		payload string
		size    int64
		at      time.Time
	}{
		"blank uploadedAt":     {`{"fileId":"f","fileName":"a.xlsx","filePath":"p","fileSize":10,"uploadedAt":""}`, 10, time.Time{}},
		"quoted fileSize":      {`{"fileId":"f","fileName":"a.xlsx","filePath":"p","fileSize":"1024"}`, 1024, time.Time{}},
		"garbage fileSize":     {`{"fileId":"f","fileName":"a.xlsx","filePath":"p","fileSize":"big"}`, 0, time.Time{}},
		"null fields":          {`{"fileId":"f","fileName":"a.xlsx","filePath":"p","fileSize":null,"uploadedAt":null}`, 0, time.Time{}},
		"epoch millis":         {`{"fileId":"f","fileName":"a.xlsx","filePath":"p","uploadedAt":1740830400000}`, 0, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
		"unparseable datetime": {`{"fileId":"f","fileName":"a.xlsx","filePath":"p","uploadedAt":"yesterday"}`, 0, time.Time{}},
	}

	for name, tc := range cases {
		upload, err := DecodeUploadEvent([]byte(tc.payload))
		if err != nil {
			t.Fatalf("%s: decode returned error: %v", name, err)
		}
		if upload.FileSize != tc.size {
			t.Fatalf("%s: expected size %d, got %d", name, tc.size, upload.FileSize)
		}
		if !upload.UploadedAt.Equal(tc.at) {
			t.Fatalf("%s: expected uploadedAt %v, got %v", name, tc.at, upload.UploadedAt)
		}
	}
}

func TestDecodeEventNotificationAcceptsSubjectIDAlias(t *testing.T) {
	payload := []byte(`{"type":"processing_error","subjectId":"f-1","name":"accounts.xlsx","error":"boom","processedAt":"2025-03-01T12:00:00Z"}`)

	event, err := DecodeEvent(payload)
	if err != nil {
		t.Fatalf("decode returned error: %v", err)
	}
	notification, ok := event.(NotificationEvent)
	if !ok {
		t.Fatalf("expected NotificationEvent, got %T", event)
	}
	if notification.SubjectID != "f-1" || notification.Error != "boom" {
		t.Fatalf("unexpected notification: %+v", notification)
	}
}

func TestDecodeEventRejectsStructuralProblems(t *testing.T) {
	tests := map[string]string{
		"empty":                     "",
		"whitespace":                "   ",
		"not json":                  "{oops",
		"array":                     `["fileId"]`,
		"unknown shape":             `{"hello":"world"}`,
		"missing file path":         `{"fileId":"f","fileName":"a.xlsx"}`,
		"blank file name":           `{"fileId":"f","fileName":"  ","filePath":"p"}`,
		"wrong field type":          `{"fileId":7,"fileName":"a.xlsx","filePath":"p"}`,
		"unknown notification type": `{"type":"other","userId":"u","name":"n","processedAt":"2025-03-01T12:00:00Z"}`,
		"created without email":     `{"type":"account_created","userId":"u","name":"n","processedAt":"2025-03-01T12:00:00Z"}`,
		"error without message":     `{"type":"processing_error","userId":"u","name":"n","processedAt":"2025-03-01T12:00:00Z"}`,
		"missing processedAt":       `{"type":"account_created","userId":"u","name":"n","email":"e@x.com"}`,
	}

	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			event, err := DecodeEvent([]byte(payload))
			if event != nil {
				t.Fatalf("expected nil event, got %#v", event)
			}
			var structural *StructuralError
			if !errors.As(err, &structural) {
				t.Fatalf("expected StructuralError, got %v", err)
			}
		})
	}
}

func TestProcessingFailed(t *testing.T) {
	upload := UploadEvent{FileID: "f-1", FileName: "a.xlsx", FilePath: "a.xlsx"}
	event := ProcessingFailed(upload, ErrEmptyBatch, time.Now())

	if err := event.Validate(); err != nil {
		t.Fatalf("expected valid event, got %v", err)
	}
	if event.SubjectID != "f-1" || event.Error != "no accounts created" {
		t.Fatalf("unexpected event: %+v", event)
	}
}
