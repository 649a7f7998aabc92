package ingestion

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/rpattn/iptvsync/internal/domain"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

var header = SampleHeader

func buildWorkbook(t *testing.T, rows ...[]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	for i, row := range append([][]string{header}, rows...) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

// memAccountRepo is an in-memory AccountRepository enforcing the same unique
// fields as the real stores.
type memAccountRepo struct {
	mu       sync.Mutex
	accounts []domain.Account
	// beforeCreate runs inside Create before the uniqueness check, simulating
	// a concurrent writer.
	beforeCreate func(domain.Candidate)
	findErr      error
}

func (r *memAccountRepo) FindConflict(_ context.Context, c domain.Candidate) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, a := range r.accounts {
		if a.UserName == c.UserName || a.Email == c.Email || a.MAC == c.MAC || a.AccountNumber == c.AccountNumber {
			found := a
			return &found, nil
		}
	}
	return nil, nil
}

func (r *memAccountRepo) Create(_ context.Context, c domain.Candidate) (domain.Account, error) {
	if r.beforeCreate != nil {
		hook := r.beforeCreate
		r.beforeCreate = nil
		hook(c)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		for _, field := range domain.UniqueFields {
			if a.Value(field) == c.Value(field) {
				return domain.Account{}, &domain.ConflictError{Field: field, Value: c.Value(field), ExistingID: a.ID}
			}
		}
	}
	account := domain.NewAccount(c)
	r.accounts = append(r.accounts, account)
	return account, nil
}

func (r *memAccountRepo) insert(c domain.Candidate) domain.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	account := domain.NewAccount(c)
	r.accounts = append(r.accounts, account)
	return account
}

func (r *memAccountRepo) List(context.Context) ([]domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]domain.Account(nil), r.accounts...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memAccountRepo) GetByID(_ context.Context, id uuid.UUID) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return domain.Account{}, domain.ErrNotFound
}

func (r *memAccountRepo) GetByUserName(_ context.Context, userName string) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.UserName == userName {
			return a, nil
		}
	}
	return domain.Account{}, domain.ErrNotFound
}

func (r *memAccountRepo) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, a := range r.accounts {
		if a.ID == id {
			r.accounts = append(r.accounts[:i], r.accounts[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r *memAccountRepo) Count(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.accounts)), nil
}

func (r *memAccountRepo) Ping(context.Context) error { return nil }

type stubLogRepo struct {
	entries []domain.IngestionLogEntry
	err     error
}

func (s *stubLogRepo) Record(_ context.Context, entry domain.IngestionLogEntry) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *stubLogRepo) ListByFile(_ context.Context, fileID string, _ int, _ int) ([]domain.IngestionLogEntry, error) {
	var out []domain.IngestionLogEntry
	for _, e := range s.entries {
		if e.FileID == fileID {
			out = append(out, e)
		}
	}
	return out, nil
}

type stubNotifier struct {
	events []domain.NotificationEvent
	failOn map[string]bool
}

func (n *stubNotifier) Publish(_ context.Context, event domain.NotificationEvent) error {
	if n.failOn[event.SubjectID] || n.failOn[string(event.Type)] {
		return &domain.PublishError{SubjectID: event.SubjectID, Err: errors.New("broker unavailable")}
	}
	n.events = append(n.events, event)
	return nil
}

func newTestProcessor(repo *memAccountRepo) *Processor {
	return NewProcessor(repo, zap.NewNop())
}
