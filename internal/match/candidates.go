package match

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/blueoctober14/RightImpact/internal/model"
	"github.com/blueoctober14/RightImpact/internal/store"
)

// Finder looks up target contacts in one list whose stored phone fields
// equal any of a set of normalized numbers.
type Finder struct{}

// SearchSet expands normalized phones to the values compared against the
// stored columns: each number as-is and with a leading 1.
func SearchSet(phones []string) []string {
	set := make([]string, 0, len(phones)*2)
	for _, p := range phones {
		set = append(set, p, "1"+p)
	}
	return set
}

// Find returns detached snapshots of every target contact in listID that
// carries one of phones in any of its six phone fields. An empty phone set
// returns nothing without querying.
func (Finder) Find(ctx context.Context, q store.Queries, phones []string, listID int64) ([]model.TargetContactSnapshot, error) {
	if len(phones) == 0 {
		return nil, nil
	}
	found, err := q.FindTargetContactsByPhone(ctx, listID, SearchSet(phones))
	if err != nil {
		return nil, eris.Wrapf(err, "match: find candidates in list %d", listID)
	}
	return found, nil
}
