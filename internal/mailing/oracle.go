package mailing

import (
	"context"
	"net/mail"
	"sort"
	"strings"

	"github.com/ignite/mailflow/internal/domain"
	"github.com/ignite/mailflow/internal/service/reconcile"
)

// roleLocalParts are mailbox names that deliver but rarely belong to a
// person; they bounce-trap often enough to be flagged risky.
var roleLocalParts = map[string]bool{
	"abuse":      true,
	"admin":      true,
	"info":       true,
	"noreply":    true,
	"no-reply":   true,
	"postmaster": true,
	"sales":      true,
	"support":    true,
	"webmaster":  true,
}

// SyntaxOracle is the default address validator used when no external
// deliverability provider is configured. It canonicalizes the address and
// scores on syntax alone, so anything parseable is let through for the
// threshold to decide.
type SyntaxOracle struct{}

// NewSyntaxOracle creates the default oracle.
func NewSyntaxOracle() *SyntaxOracle { return &SyntaxOracle{} }

// Score canonicalizes the row's email and classifies it. Source columns
// carry arbitrary upload headers, so the address is located by content: a
// column named "email" wins, otherwise the first value (in sorted column
// order) that parses as an address.
func (o *SyntaxOracle) Score(ctx context.Context, row domain.ImportRow) (reconcile.OracleResult, error) {
	email := findEmail(row.Payload)
	if email == "" {
		return reconcile.OracleResult{Score: 0, Classification: domain.ClassificationInvalid}, nil
	}

	local := email[:strings.LastIndex(email, "@")]
	if roleLocalParts[local] {
		return reconcile.OracleResult{
			Score:          60,
			CanonicalEmail: email,
			Classification: domain.ClassificationRisky,
		}, nil
	}

	return reconcile.OracleResult{
		Score:          95,
		CanonicalEmail: email,
		Classification: domain.ClassificationValid,
	}, nil
}

func findEmail(payload map[string]string) string {
	if v, ok := payload["email"]; ok {
		if e := canonicalize(v); e != "" {
			return e
		}
	}

	cols := make([]string, 0, len(payload))
	for col := range payload {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		if e := canonicalize(payload[col]); e != "" {
			return e
		}
	}
	return ""
}

// canonicalize returns the lowercased address, or "" when the value does
// not parse as a bare email.
func canonicalize(raw string) string {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" || !strings.Contains(email, "@") {
		return ""
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ""
	}
	return email
}
