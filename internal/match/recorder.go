package match

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/blueoctober14/RightImpact/internal/model"
	"github.com/blueoctober14/RightImpact/internal/store"
)

// ConfidenceFor grades a match by how many distinct normalized phones the
// source contact had: one phone is high, more is medium.
func ConfidenceFor(phoneCount int) model.Confidence {
	if phoneCount == 1 {
		return model.ConfidenceHigh
	}
	return model.ConfidenceMedium
}

// Recorder writes a resolved match and flips the matched flags on both
// sides. It never commits; the caller owns the transaction behind q.
type Recorder struct{}

// Record links sourceID to target. The outcome is OutcomeRecorded with the
// new match, OutcomeDuplicate when the pair is already linked, or
// OutcomeTargetMissing when the target row no longer exists. Only
// OutcomeRecorded has side effects.
func (Recorder) Record(ctx context.Context, q store.Queries, sourceID int64, target model.TargetContactSnapshot, phoneCount int) (*model.ContactMatch, Outcome, error) {
	log := zap.L().With(
		zap.Int64("source_contact_id", sourceID),
		zap.Int64("target_contact_id", target.ID),
		zap.Int64("target_list_id", target.ListID),
	)

	current, err := q.GetTargetContact(ctx, target.ID)
	if err != nil {
		return nil, "", eris.Wrap(err, "match: reload target contact")
	}
	if current == nil {
		log.Warn("match: target contact disappeared before recording")
		return nil, OutcomeTargetMissing, nil
	}

	exists, err := q.MatchExists(ctx, sourceID, target.ID)
	if err != nil {
		return nil, "", eris.Wrap(err, "match: check existing match")
	}
	if exists {
		log.Debug("match: pair already recorded")
		return nil, OutcomeDuplicate, nil
	}

	confidence := ConfidenceFor(phoneCount)
	score := confidence.Score()
	m := &model.ContactMatch{
		SourceContactID: sourceID,
		TargetContactID: target.ID,
		TargetListID:    target.ListID,
		Confidence:      confidence,
		Score:           &score,
	}
	inserted, err := q.InsertMatch(ctx, m)
	if err != nil {
		return nil, "", eris.Wrap(err, "match: insert match")
	}
	if !inserted {
		// Lost a race with a concurrent unit on the same pair.
		log.Debug("match: pair recorded concurrently")
		return nil, OutcomeDuplicate, nil
	}

	if err := q.MarkTargetMatched(ctx, target.ID, confidence, score); err != nil {
		return nil, "", eris.Wrap(err, "match: mark target matched")
	}
	if err := q.MarkSourceMatched(ctx, sourceID); err != nil {
		return nil, "", eris.Wrap(err, "match: mark source matched")
	}

	log.Info("match: recorded", zap.String("confidence", string(confidence)), zap.Int64("match_id", m.ID))
	return m, OutcomeRecorded, nil
}
