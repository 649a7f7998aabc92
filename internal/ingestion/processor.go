package ingestion

import (
	"context"
	"errors"

	"github.com/rpattn/iptvsync/internal/domain"
	"github.com/rpattn/iptvsync/internal/repository"

	"go.uber.org/zap"
)

// ReasonAlreadyExists is the failure reason for rows colliding with an
// account that existed before the row was checked.
const ReasonAlreadyExists = "already exists"

// Processor reconciles parsed candidates against the account repository.
type Processor struct {
	accounts repository.AccountRepository
	logger   *zap.Logger
}

// NewProcessor creates a new batch processor.
func NewProcessor(accounts repository.AccountRepository, logger *zap.Logger) *Processor {
	return &Processor{accounts: accounts, logger: logger}
}

// Process handles rows one at a time in order. A failing row never aborts the
// batch; judging an empty Successful list is left to the caller.
func (p *Processor) Process(ctx context.Context, rows []domain.Candidate) domain.BatchResult {
	result := domain.BatchResult{
		Successful: []domain.Account{},
		Failed:     []domain.RowFailure{},
	}

	for i, row := range rows {
		existing, err := p.accounts.FindConflict(ctx, row)
		if err != nil {
			result.Failed = append(result.Failed, failure(i, row, err))
			continue
		}
		if existing != nil {
			result.Failed = append(result.Failed, domain.RowFailure{
				Index:            i,
				Candidate:        row,
				Reason:           ReasonAlreadyExists,
				ConflictingField: repository.GetExistingField(*existing, row),
			})
			continue
		}

		account, err := p.accounts.Create(ctx, row)
		if err != nil {
			p.logger.Warn("failed to create account",
				zap.Int("index", i),
				zap.String("user_name", row.UserName),
				zap.Error(err),
			)
			result.Failed = append(result.Failed, failure(i, row, err))
			continue
		}
		result.Successful = append(result.Successful, account)
	}

	return result
}

func failure(index int, row domain.Candidate, err error) domain.RowFailure {
	f := domain.RowFailure{Index: index, Candidate: row, Reason: err.Error()}
	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		f.ConflictingField = conflict.Field
	}
	return f
}
