package validator

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// ParseRecipients splits a comma or semicolon separated address list and
// checks every entry. Duplicates are dropped, order is kept.
func ParseRecipients(raw string) ([]string, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';'
	})

	seen := make(map[string]struct{}, len(fields))
	var out []string
	for _, f := range fields {
		addr := strings.TrimSpace(f)
		if addr == "" {
			continue
		}
		if err := validate.Var(addr, "email"); err != nil {
			return nil, errors.Newf("invalid email address %q", addr)
		}
		key := strings.ToLower(addr)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, addr)
	}

	if len(out) == 0 {
		return nil, errors.New("no recipients")
	}
	return out, nil
}
