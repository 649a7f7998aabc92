package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/rpattn/iptvsync/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// constraintFields maps the unique constraints created by the migrations to
// the field they guard.
var constraintFields = map[string]domain.UniqueField{
	"accounts_user_name_key":      domain.FieldUserName,
	"accounts_email_key":          domain.FieldEmail,
	"accounts_mac_key":            domain.FieldMAC,
	"accounts_account_number_key": domain.FieldAccountNumber,
}

// conflictFromPgError turns a unique violation into a *domain.ConflictError
// naming the guarded field. Any other error yields nil.
func conflictFromPgError(err error, candidate domain.Candidate) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return nil
	}
	field, ok := constraintFields[pgErr.ConstraintName]
	if !ok {
		field = domain.FieldUnknown
	}
	return &domain.ConflictError{Field: field, Value: candidate.Value(field)}
}

const accountColumns = `id, name, user_name, email, ip, mac, account_number, created_at, updated_at`

// accountRepository implements AccountRepository on Postgres.
type accountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new account repository backed by pgxpool.
func NewAccountRepository(pool *pgxpool.Pool) AccountRepository {
	return &accountRepository{pool: pool}
}

func (r *accountRepository) FindConflict(ctx context.Context, candidate domain.Candidate) (*domain.Account, error) {
	row := r.pool.QueryRow(
		ctx,
		`SELECT `+accountColumns+`
		 FROM accounts
		 WHERE user_name = $1 OR email = $2 OR mac = $3 OR account_number = $4
		 LIMIT 1`,
		candidate.UserName,
		candidate.Email,
		candidate.MAC,
		candidate.AccountNumber,
	)
	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up conflicting account: %w", err)
	}
	return &account, nil
}

func (r *accountRepository) Create(ctx context.Context, candidate domain.Candidate) (domain.Account, error) {
	if err := validateCandidate(candidate); err != nil {
		return domain.Account{}, err
	}

	account := domain.NewAccount(candidate)
	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO accounts (`+accountColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		account.ID,
		account.Name,
		account.UserName,
		account.Email,
		account.IP,
		account.MAC,
		account.AccountNumber,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if conflict := conflictFromPgError(err, candidate); conflict != nil {
			return domain.Account{}, conflict
		}
		return domain.Account{}, fmt.Errorf("failed to create account: %w", err)
	}

	return account, nil
}

func (r *accountRepository) List(ctx context.Context) ([]domain.Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []domain.Account{}
	for rows.Next() {
		account, scanErr := scanAccount(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan account: %w", scanErr)
		}
		accounts = append(accounts, account)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", rowsErr)
	}

	return accounts, nil
}

func (r *accountRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Account{}, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

func (r *accountRepository) GetByUserName(ctx context.Context, userName string) (domain.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE user_name = $1`, userName)
	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Account{}, fmt.Errorf("failed to get account by user name: %w", err)
	}
	return account, nil
}

func (r *accountRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete account: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *accountRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return count, nil
}

func (r *accountRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanAccount(row pgx.Row) (domain.Account, error) {
	var account domain.Account
	err := row.Scan(
		&account.ID,
		&account.Name,
		&account.UserName,
		&account.Email,
		&account.IP,
		&account.MAC,
		&account.AccountNumber,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	return account, err
}
