// Package match links shared source contacts to target contacts by
// normalized phone number, with a name tie-break when several targets share
// a number.
package match

import (
	"strings"

	"github.com/blueoctober14/RightImpact/internal/model"
)

// NormalizePhone reduces a raw phone number to its 10-digit US form.
// Every non-digit is stripped and an 11-digit number with a leading 1 loses
// the country code. Anything that does not end up as exactly 10 digits is
// rejected.
func NormalizePhone(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return "", false
	}
	return digits, true
}

// ContactPhones returns the distinct valid phone numbers of c in field
// order. Invalid and blank numbers are dropped.
func ContactPhones(c *model.SourceContact) []string {
	var phones []string
	seen := make(map[string]struct{}, 3)
	for _, raw := range c.Phones() {
		p, ok := NormalizePhone(raw)
		if !ok {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		phones = append(phones, p)
	}
	return phones
}
