package ingestion

import (
	"regexp"

	"github.com/rpattn/iptvsync/internal/domain"
)

const notSpaceOrAt = `[^\s\x0B\p{Z}\x{FEFF}@]`

var (
	// RE2 \s is ASCII only; the vertical tab, \p{Z} and U+FEFF complete the
	// Unicode whitespace set, so an embedded U+00A0 is rejected.
	emailPattern = regexp.MustCompile(`^` + notSpaceOrAt + `+@` + notSpaceOrAt + `+\.` + notSpaceOrAt + `+$`)
	// Shape only, octets are not range checked.
	ipPattern  = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`)
	macPattern = regexp.MustCompile(`(?i)^([0-9A-F]{2}[:-]){5}[0-9A-F]{2}$`)
)

// validCandidate reports whether every column is present and the email, ip
// and mac columns are well formed.
func validCandidate(c domain.Candidate) bool {
	if len(c.MissingFields()) > 0 {
		return false
	}
	return emailPattern.MatchString(c.Email) &&
		ipPattern.MatchString(c.IP) &&
		macPattern.MatchString(c.MAC)
}
