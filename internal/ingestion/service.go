package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rpattn/iptvsync/internal/domain"
	"github.com/rpattn/iptvsync/internal/observability"
	"github.com/rpattn/iptvsync/internal/repository"
	"github.com/rpattn/iptvsync/internal/storage"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const consumerName = "uploads"

// Outcome classifies how one upload message ended.
type Outcome string

const (
	// OutcomeProcessed means at least one account was created.
	OutcomeProcessed Outcome = "processed"
	// OutcomeSkipped means the upload is not a spreadsheet.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeRejected means the payload was not a valid upload event.
	OutcomeRejected Outcome = "rejected"
	// OutcomeFailed means the upload could not be processed.
	OutcomeFailed Outcome = "failed"
)

// Notifier publishes notification events.
type Notifier interface {
	Publish(ctx context.Context, event domain.NotificationEvent) error
}

// Result summarizes the handling of one upload message.
type Result struct {
	Outcome   Outcome
	Upload    domain.UploadEvent
	Parse     ParseResult
	Batch     domain.BatchResult
	Published int
	// PublishErrors holds one *domain.PublishError per lost notification.
	PublishErrors []error
	// Err is set for rejected and failed messages.
	Err error
}

// Options tunes optional service behaviour.
type Options struct {
	// NotifyErrors publishes a processing_error event when an upload fails.
	NotifyErrors bool
	// RecordLog writes skipped and failed rows to the ingestion log.
	RecordLog bool
	Metrics   *observability.Metrics
	Tracer    trace.Tracer
	Now       func() time.Time
}

// Service turns upload events into accounts and account notifications.
type Service struct {
	files     storage.FileReader
	parser    *Parser
	processor *Processor
	logRepo   repository.IngestionLogRepository
	notifier  Notifier
	logger    *zap.Logger
	opts      Options
}

// NewService creates a new ingestion service.
func NewService(
	files storage.FileReader,
	processor *Processor,
	logRepo repository.IngestionLogRepository,
	notifier Notifier,
	logger *zap.Logger,
	opts Options,
) *Service {
	if opts.Metrics == nil {
		opts.Metrics = observability.NewMetrics()
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		files:     files,
		parser:    NewParser(),
		processor: processor,
		logRepo:   logRepo,
		notifier:  notifier,
		logger:    logger,
		opts:      opts,
	}
}

// HandleDelivery adapts HandleMessage to the bus subscriber. Failed uploads
// return an error so the delivery is rejected; everything else is acked.
func (s *Service) HandleDelivery(ctx context.Context, delivery amqp.Delivery) error {
	result := s.HandleMessage(ctx, delivery.Body)
	if result.Outcome == OutcomeFailed {
		return result.Err
	}
	return nil
}

// HandleMessage processes one raw upload event payload.
func (s *Service) HandleMessage(ctx context.Context, payload []byte) Result {
	started := s.opts.Now()
	ctx, span := s.opts.Tracer.Start(ctx, "ingestion.HandleMessage")
	defer span.End()

	result := s.handle(ctx, payload)

	span.SetAttributes(
		attribute.String("file.id", result.Upload.FileID),
		attribute.String("outcome", string(result.Outcome)),
		attribute.Int("accounts.created", len(result.Batch.Successful)),
	)
	if result.Outcome == OutcomeFailed {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, result.Err.Error())
	}

	s.opts.Metrics.Messages.WithLabelValues(consumerName, string(result.Outcome)).Inc()
	s.opts.Metrics.MessageDuration.WithLabelValues(consumerName).Observe(s.opts.Now().Sub(started).Seconds())
	return result
}

func (s *Service) handle(ctx context.Context, payload []byte) Result {
	event, err := domain.DecodeEvent(payload)
	if err != nil {
		s.logger.Warn("discarding invalid upload event", zap.Error(err))
		return Result{Outcome: OutcomeRejected, Err: err}
	}
	upload, ok := event.(domain.UploadEvent)
	if !ok {
		err := &domain.StructuralError{Reason: "expected an upload event"}
		s.logger.Warn("discarding invalid upload event", zap.Error(err))
		return Result{Outcome: OutcomeRejected, Err: err}
	}
	return s.HandleUpload(ctx, upload)
}

// HandleUpload runs the pipeline for a decoded upload event.
func (s *Service) HandleUpload(ctx context.Context, upload domain.UploadEvent) Result {
	result := Result{Upload: upload}
	logger := s.logger.With(zap.String("file_id", upload.FileID), zap.String("file_name", upload.FileName))

	if !IsSpreadsheet(upload.FileName, upload.MimeType) {
		logger.Debug("skipping non-spreadsheet upload", zap.String("mime_type", upload.MimeType))
		result.Outcome = OutcomeSkipped
		return result
	}

	logger.Info("processing upload", zap.String("file_path", upload.FilePath), zap.Int64("file_size", upload.FileSize))
	if upload.UploadedAt.IsZero() {
		logger.Warn("upload event has no usable uploadedAt")
	}

	if _, err := s.files.Stat(upload.FilePath); err != nil {
		return s.fail(ctx, logger, result, err)
	}
	data, err := s.files.ReadFile(upload.FilePath)
	if err != nil {
		return s.fail(ctx, logger, result, err)
	}

	parsed, err := s.parser.Parse(data)
	if err != nil {
		return s.fail(ctx, logger, result, fmt.Errorf("failed to parse spreadsheet: %w", err))
	}
	result.Parse = parsed
	s.opts.Metrics.RowsParsed.Add(float64(len(parsed.Rows)))
	for _, skipped := range parsed.Skipped {
		s.opts.Metrics.RowsSkipped.WithLabelValues(skipped.Reason).Inc()
		logger.Warn("skipped row", zap.Int("row", skipped.RowIndex), zap.String("reason", skipped.Reason))
		s.recordRow(ctx, upload, skipped.RowIndex, "", skipped.Reason)
	}

	batch := s.processor.Process(ctx, parsed.Rows)
	result.Batch = batch
	s.opts.Metrics.AccountsCreated.Add(float64(len(batch.Successful)))
	for _, failed := range batch.Failed {
		row := parsed.RowNumbers[failed.Index]
		field := failed.ConflictingField
		if field == "" {
			field = domain.FieldUnknown
		}
		s.opts.Metrics.RowFailures.WithLabelValues(string(field)).Inc()
		logger.Warn("row not persisted",
			zap.Int("row", row),
			zap.String("user_name", failed.Candidate.UserName),
			zap.String("reason", failed.Reason),
			zap.String("conflicting_field", string(failed.ConflictingField)),
		)
		s.recordRow(ctx, upload, row, failed.ConflictingField, failed.Reason)
	}

	if batch.Empty() {
		err := fmt.Errorf("%w: %d rows parsed, %d skipped, %d failed",
			domain.ErrEmptyBatch, len(parsed.Rows), len(parsed.Skipped), len(batch.Failed))
		return s.fail(ctx, logger, result, err)
	}

	for _, account := range batch.Successful {
		event := domain.AccountCreated(account, s.opts.Now())
		if err := s.notifier.Publish(ctx, event); err != nil {
			s.opts.Metrics.NotificationsFailed.WithLabelValues(string(event.Type)).Inc()
			logger.Error("failed to publish account notification",
				zap.String("account_id", event.SubjectID),
				zap.Error(err),
			)
			result.PublishErrors = append(result.PublishErrors, asPublishError(event.SubjectID, err))
			continue
		}
		s.opts.Metrics.NotificationsSent.WithLabelValues(string(event.Type)).Inc()
		result.Published++
	}

	logger.Info("upload processed",
		zap.Int("created", len(batch.Successful)),
		zap.Int("failed", len(batch.Failed)),
		zap.Int("skipped", len(parsed.Skipped)),
		zap.Int("published", result.Published),
	)
	result.Outcome = OutcomeProcessed
	return result
}

func (s *Service) fail(ctx context.Context, logger *zap.Logger, result Result, err error) Result {
	logger.Error("upload processing failed", zap.Error(err))
	result.Outcome = OutcomeFailed
	result.Err = err

	s.record(ctx, domain.IngestionLogEntry{
		FileID:   result.Upload.FileID,
		FileName: result.Upload.FileName,
		Reason:   err.Error(),
	})

	if s.opts.NotifyErrors {
		event := domain.ProcessingFailed(result.Upload, err, s.opts.Now())
		if pubErr := s.notifier.Publish(ctx, event); pubErr != nil {
			s.opts.Metrics.NotificationsFailed.WithLabelValues(string(event.Type)).Inc()
			logger.Error("failed to publish processing error notification", zap.Error(pubErr))
			result.PublishErrors = append(result.PublishErrors, asPublishError(event.SubjectID, pubErr))
		} else {
			s.opts.Metrics.NotificationsSent.WithLabelValues(string(event.Type)).Inc()
			result.Published++
		}
	}
	return result
}

func (s *Service) recordRow(ctx context.Context, upload domain.UploadEvent, row int, field domain.UniqueField, reason string) {
	s.record(ctx, domain.IngestionLogEntry{
		FileID:    upload.FileID,
		FileName:  upload.FileName,
		RowNumber: &row,
		Field:     field,
		Reason:    reason,
	})
}

func (s *Service) record(ctx context.Context, entry domain.IngestionLogEntry) {
	if !s.opts.RecordLog || s.logRepo == nil {
		return
	}
	if err := s.logRepo.Record(ctx, entry); err != nil {
		s.logger.Warn("failed to record ingestion log", zap.String("file_id", entry.FileID), zap.Error(err))
	}
}

func asPublishError(subjectID string, err error) error {
	var pubErr *domain.PublishError
	if errors.As(err, &pubErr) {
		return pubErr
	}
	return &domain.PublishError{SubjectID: subjectID, Err: err}
}
