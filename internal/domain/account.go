package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// UniqueField names one of the account columns that must be globally unique.
type UniqueField string

const (
	FieldUserName      UniqueField = "userName"
	FieldEmail         UniqueField = "email"
	FieldMAC           UniqueField = "mac"
	FieldAccountNumber UniqueField = "accountNumber"
	FieldUnknown       UniqueField = "unknown"
)

// UniqueFields lists the unique columns in conflict-reporting priority order.
var UniqueFields = []UniqueField{FieldUserName, FieldEmail, FieldMAC, FieldAccountNumber}

// Candidate is a spreadsheet row that passed parsing but is not yet persisted.
type Candidate struct {
	Name          string `json:"name"`
	UserName      string `json:"user_name"`
	Email         string `json:"email"`
	IP            string `json:"ip"`
	MAC           string `json:"mac"`
	AccountNumber string `json:"account_number"`
}

// NewCandidate builds a candidate from raw cell values applying the documented
// normalization: trimmed values, lowercased email, uppercased mac.
func NewCandidate(name, userName, email, ip, mac, accountNumber string) Candidate {
	return Candidate{
		Name:          strings.TrimSpace(name),
		UserName:      strings.TrimSpace(userName),
		Email:         strings.ToLower(strings.TrimSpace(email)),
		IP:            strings.TrimSpace(ip),
		MAC:           strings.ToUpper(strings.TrimSpace(mac)),
		AccountNumber: strings.TrimSpace(accountNumber),
	}
}

// Value returns the candidate's value for a unique field.
func (c Candidate) Value(field UniqueField) string {
	switch field {
	case FieldUserName:
		return c.UserName
	case FieldEmail:
		return c.Email
	case FieldMAC:
		return c.MAC
	case FieldAccountNumber:
		return c.AccountNumber
	default:
		return ""
	}
}

// MissingFields reports which of the six columns are empty.
func (c Candidate) MissingFields() []string {
	var missing []string
	for _, pair := range []struct {
		name  string
		value string
	}{
		{"name", c.Name},
		{"userName", c.UserName},
		{"email", c.Email},
		{"ip", c.IP},
		{"mac", c.MAC},
		{"accountNumber", c.AccountNumber},
	} {
		if pair.value == "" {
			missing = append(missing, pair.name)
		}
	}
	return missing
}

// Account is a persisted candidate.
type Account struct {
	ID uuid.UUID `json:"id"`
	Candidate
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAccount stamps a candidate with a fresh id and timestamps.
func NewAccount(c Candidate) Account {
	now := time.Now().UTC()
	return Account{
		ID:        uuid.New(),
		Candidate: c,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RowFailure records why a candidate was not persisted. Index is the
// candidate's position in the processed batch.
type RowFailure struct {
	Index            int         `json:"index"`
	Candidate        Candidate   `json:"candidate"`
	Reason           string      `json:"reason"`
	ConflictingField UniqueField `json:"conflicting_field,omitempty"`
}

// BatchResult is the outcome of reconciling one parsed batch.
type BatchResult struct {
	Successful []Account    `json:"successful"`
	Failed     []RowFailure `json:"failed"`
}

// Empty reports whether no row was persisted.
func (r BatchResult) Empty() bool {
	return len(r.Successful) == 0
}
