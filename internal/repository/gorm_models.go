package repository

import (
	"time"

	"github.com/rpattn/iptvsync/internal/domain"

	"github.com/google/uuid"
)

type accountRecord struct {
	ID            string    `gorm:"primaryKey;size:36"`
	Name          string    `gorm:"not null"`
	UserName      string    `gorm:"column:user_name;not null;uniqueIndex:accounts_user_name_key"`
	Email         string    `gorm:"not null;uniqueIndex:accounts_email_key"`
	IP            string    `gorm:"column:ip;not null"`
	MAC           string    `gorm:"column:mac;not null;uniqueIndex:accounts_mac_key"`
	AccountNumber string    `gorm:"column:account_number;not null;uniqueIndex:accounts_account_number_key"`
	CreatedAt     time.Time `gorm:"index"`
	UpdatedAt     time.Time
}

func (accountRecord) TableName() string { return "accounts" }

type ingestionLogRecord struct {
	ID        string `gorm:"primaryKey;size:36"`
	FileID    string `gorm:"index;not null"`
	FileName  string `gorm:"not null"`
	RowNumber *int
	Field     string `gorm:"size:32"`
	Reason    string `gorm:"type:text;not null"`
	CreatedAt time.Time
}

func (ingestionLogRecord) TableName() string { return "ingestion_logs" }

// SQLiteModels lists the tables AutoMigrate creates for the embedded store.
func SQLiteModels() []any {
	return []any{&accountRecord{}, &ingestionLogRecord{}}
}

func newAccountRecord(account domain.Account) accountRecord {
	return accountRecord{
		ID:            account.ID.String(),
		Name:          account.Name,
		UserName:      account.UserName,
		Email:         account.Email,
		IP:            account.IP,
		MAC:           account.MAC,
		AccountNumber: account.AccountNumber,
		CreatedAt:     account.CreatedAt,
		UpdatedAt:     account.UpdatedAt,
	}
}

func (r accountRecord) toDomain() (domain.Account, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return domain.Account{}, err
	}
	return domain.Account{
		ID: id,
		Candidate: domain.Candidate{
			Name:          r.Name,
			UserName:      r.UserName,
			Email:         r.Email,
			IP:            r.IP,
			MAC:           r.MAC,
			AccountNumber: r.AccountNumber,
		},
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}, nil
}
