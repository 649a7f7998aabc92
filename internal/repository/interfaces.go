package repository

import (
	"context"

	"github.com/rpattn/iptvsync/internal/domain"

	"github.com/google/uuid"
)

// AccountRepository defines the interface for account persistence.
//
// user_name, email, mac and account_number are unique across all accounts and
// the backing store enforces that with unique indexes, so Create is the final
// arbiter when two writers pass FindConflict with the same values.
type AccountRepository interface {
	// FindConflict returns an existing account sharing any unique field with
	// the candidate, or nil when there is none.
	FindConflict(ctx context.Context, candidate domain.Candidate) (*domain.Account, error)
	// Create persists the candidate. It returns *domain.ValidationError for
	// incomplete input and *domain.ConflictError for a unique violation.
	Create(ctx context.Context, candidate domain.Candidate) (domain.Account, error)
	List(ctx context.Context) ([]domain.Account, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Account, error)
	GetByUserName(ctx context.Context, userName string) (domain.Account, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	Count(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

// IngestionLogRepository stores row level ingestion issues for observability.
type IngestionLogRepository interface {
	Record(ctx context.Context, entry domain.IngestionLogEntry) error
	ListByFile(ctx context.Context, fileID string, limit int, offset int) ([]domain.IngestionLogEntry, error)
}

// GetExistingField reports which unique field of candidate the existing
// account holds, checking userName, email, mac and accountNumber in that order.
func GetExistingField(existing domain.Account, candidate domain.Candidate) domain.UniqueField {
	for _, field := range domain.UniqueFields {
		value := candidate.Value(field)
		if value != "" && existing.Value(field) == value {
			return field
		}
	}
	return domain.FieldUnknown
}

func validateCandidate(candidate domain.Candidate) error {
	if missing := candidate.MissingFields(); len(missing) > 0 {
		return &domain.ValidationError{Fields: missing, Message: "required field is empty"}
	}
	return nil
}
