package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/rpattn/iptvsync/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// gormAccountRepository implements AccountRepository on the embedded sqlite
// store. The *gorm.DB must be opened with TranslateError so unique index
// violations surface as gorm.ErrDuplicatedKey.
type gormAccountRepository struct {
	db *gorm.DB
}

// NewGormAccountRepository creates an account repository backed by gorm.
func NewGormAccountRepository(db *gorm.DB) AccountRepository {
	return &gormAccountRepository{db: db}
}

func (r *gormAccountRepository) FindConflict(ctx context.Context, candidate domain.Candidate) (*domain.Account, error) {
	var records []accountRecord
	err := r.db.WithContext(ctx).
		Where("user_name = ? OR email = ? OR mac = ? OR account_number = ?",
			candidate.UserName, candidate.Email, candidate.MAC, candidate.AccountNumber).
		Limit(1).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to look up conflicting account: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	account, err := records[0].toDomain()
	if err != nil {
		return nil, fmt.Errorf("failed to decode account: %w", err)
	}
	return &account, nil
}

func (r *gormAccountRepository) Create(ctx context.Context, candidate domain.Candidate) (domain.Account, error) {
	if err := validateCandidate(candidate); err != nil {
		return domain.Account{}, err
	}

	account := domain.NewAccount(candidate)
	record := newAccountRecord(account)
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.Account{}, r.conflictFor(ctx, candidate)
		}
		return domain.Account{}, fmt.Errorf("failed to create account: %w", err)
	}

	return account, nil
}

// conflictFor builds the ConflictError for a rejected insert. sqlite does not
// name the violated index in a structured way, so the holder is looked up.
func (r *gormAccountRepository) conflictFor(ctx context.Context, candidate domain.Candidate) error {
	conflict := &domain.ConflictError{Field: domain.FieldUnknown}
	existing, err := r.FindConflict(ctx, candidate)
	if err != nil || existing == nil {
		return conflict
	}
	conflict.Field = GetExistingField(*existing, candidate)
	conflict.Value = candidate.Value(conflict.Field)
	conflict.ExistingID = existing.ID
	return conflict
}

func (r *gormAccountRepository) List(ctx context.Context) ([]domain.Account, error) {
	var records []accountRecord
	if err := r.db.WithContext(ctx).Order("created_at desc").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	accounts := make([]domain.Account, 0, len(records))
	for _, record := range records {
		account, err := record.toDomain()
		if err != nil {
			return nil, fmt.Errorf("failed to decode account: %w", err)
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func (r *gormAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Account, error) {
	return r.first(ctx, "id = ?", id.String())
}

func (r *gormAccountRepository) GetByUserName(ctx context.Context, userName string) (domain.Account, error) {
	return r.first(ctx, "user_name = ?", userName)
}

func (r *gormAccountRepository) first(ctx context.Context, query string, arg any) (domain.Account, error) {
	var record accountRecord
	err := r.db.WithContext(ctx).Where(query, arg).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Account{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Account{}, fmt.Errorf("failed to get account: %w", err)
	}
	return record.toDomain()
}

func (r *gormAccountRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&accountRecord{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete account: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *gormAccountRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&accountRecord{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return count, nil
}

func (r *gormAccountRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
