package match

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/blueoctober14/RightImpact/internal/model"
)

var foldName = cases.Lower(language.Und)

func normalizeName(s string) string {
	return foldName.String(strings.TrimSpace(s))
}

// Disambiguate narrows several phone candidates using the source contact's
// name. The tiers apply in strict order and the first non-empty one wins:
//
//  1. first and last name both equal (only when a last name is given)
//  2. first name equal
//  3. no narrowing; the input is returned as is
//
// Comparison is case-insensitive after trimming. With zero or one candidate,
// or a blank first name, the input is returned unchanged.
func Disambiguate(candidates []model.TargetContactSnapshot, firstName, lastName string) []model.TargetContactSnapshot {
	if len(candidates) <= 1 {
		return candidates
	}
	first := normalizeName(firstName)
	if first == "" {
		return candidates
	}
	last := normalizeName(lastName)

	if last != "" {
		var full []model.TargetContactSnapshot
		for _, c := range candidates {
			if normalizeName(c.FirstName) == first && normalizeName(c.LastName) == last {
				full = append(full, c)
			}
		}
		if len(full) > 0 {
			return full
		}
	}

	var byFirst []model.TargetContactSnapshot
	for _, c := range candidates {
		if normalizeName(c.FirstName) == first {
			byFirst = append(byFirst, c)
		}
	}
	if len(byFirst) > 0 {
		return byFirst
	}
	return candidates
}
