package match

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/blueoctober14/RightImpact/internal/metrics"
	"github.com/blueoctober14/RightImpact/internal/model"
	"github.com/blueoctober14/RightImpact/internal/store"
)

// Outcome is the result of matching one contact, either against one list or
// as a whole.
type Outcome string

const (
	// Contact-level outcomes.
	OutcomeContactNotFound Outcome = "contact_not_found"
	OutcomeNoPhones        Outcome = "no_phones"
	OutcomeNoLists         Outcome = "no_lists"
	OutcomeProcessed       Outcome = "processed"

	// Per-list outcomes.
	OutcomeNoMatch       Outcome = "no_match"
	OutcomeAmbiguous     Outcome = "ambiguous"
	OutcomeRecorded      Outcome = "recorded"
	OutcomeDuplicate     Outcome = "duplicate"
	OutcomeTargetMissing Outcome = "target_missing"
)

// ListOutcome describes what happened for one target list.
type ListOutcome struct {
	TargetListID int64   `json:"target_list_id"`
	Candidates   int     `json:"candidates"`
	Outcome      Outcome `json:"outcome"`
	MatchID      int64   `json:"match_id,omitempty"`
}

// ContactResult is the result of MatchContactToLists.
type ContactResult struct {
	SourceContactID int64                `json:"source_contact_id"`
	Found           bool                 `json:"found"`
	Outcome         Outcome              `json:"outcome"`
	Phones          []string             `json:"phones,omitempty"`
	Lists           []ListOutcome        `json:"lists,omitempty"`
	Matches         []model.ContactMatch `json:"matches"`
}

// Options tunes a Matcher.
type Options struct {
	// Concurrency bounds parallel units within a batch. Values below 1 mean 1.
	Concurrency int
	// UnitTimeout bounds one single-contact unit. Zero disables.
	UnitTimeout time.Duration
	// Metrics is optional.
	Metrics *metrics.Metrics
}

// Matcher runs the matching pipeline: normalize phones, find candidates per
// list, disambiguate by name and record unique matches. Each source contact
// is one unit of work in one transaction.
type Matcher struct {
	store    store.Store
	finder   Finder
	recorder Recorder
	opts     Options
}

// New creates a Matcher over st.
func New(st store.Store, opts Options) *Matcher {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Matcher{store: st, opts: opts}
}

// MatchContactToLists matches one source contact against one list, or all
// lists when listID is nil. A missing contact, a contact without usable
// phones or a missing list yield an empty result and no error. Storage
// failures roll the whole unit back and are returned without a retry;
// re-running the unit is up to the caller.
func (m *Matcher) MatchContactToLists(ctx context.Context, sourceID int64, listID *int64) (*ContactResult, error) {
	if m.opts.UnitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.UnitTimeout)
		defer cancel()
	}

	start := time.Now()
	res := &ContactResult{SourceContactID: sourceID, Matches: []model.ContactMatch{}}
	err := m.store.RunInTx(ctx, func(q store.Queries) error {
		return m.matchInTx(ctx, q, sourceID, listID, res)
	})
	m.opts.Metrics.ObserveUnit(time.Since(start), err)
	if err != nil {
		return nil, eris.Wrapf(err, "match: source contact %d", sourceID)
	}

	for _, lo := range res.Lists {
		m.opts.Metrics.ObserveListOutcome(string(lo.Outcome))
	}
	m.opts.Metrics.AddMatches(len(res.Matches))
	return res, nil
}

func (m *Matcher) matchInTx(ctx context.Context, q store.Queries, sourceID int64, listID *int64, res *ContactResult) error {
	log := zap.L().With(zap.Int64("source_contact_id", sourceID))

	contact, err := q.GetSourceContact(ctx, sourceID)
	if err != nil {
		return err
	}
	if contact == nil {
		log.Warn("match: source contact not found")
		res.Outcome = OutcomeContactNotFound
		return nil
	}
	res.Found = true

	phones := ContactPhones(contact)
	res.Phones = phones
	if len(phones) == 0 {
		log.Info("match: no valid phone numbers")
		res.Outcome = OutcomeNoPhones
		return nil
	}

	lists, err := m.resolveLists(ctx, q, listID)
	if err != nil {
		return err
	}
	if len(lists) == 0 {
		log.Info("match: no target lists to check", zap.Any("target_list_id", listID))
		res.Outcome = OutcomeNoLists
		return nil
	}

	res.Outcome = OutcomeProcessed
	for _, list := range lists {
		llog := log.With(zap.Int64("target_list_id", list.ID))
		lo := ListOutcome{TargetListID: list.ID}

		candidates, err := m.finder.Find(ctx, q, phones, list.ID)
		if err != nil {
			return err
		}
		lo.Candidates = len(candidates)
		if len(candidates) > 1 {
			candidates = Disambiguate(candidates, contact.FirstName, contact.LastName)
		}

		switch len(candidates) {
		case 0:
			lo.Outcome = OutcomeNoMatch
		case 1:
			cm, outcome, err := m.recorder.Record(ctx, q, sourceID, candidates[0], len(phones))
			if err != nil {
				return err
			}
			lo.Outcome = outcome
			if cm != nil {
				lo.MatchID = cm.ID
				res.Matches = append(res.Matches, *cm)
			}
		default:
			llog.Info("match: ambiguous candidates left after name tie-break",
				zap.Int("candidates", lo.Candidates),
				zap.Int("remaining", len(candidates)),
			)
			lo.Outcome = OutcomeAmbiguous
		}
		res.Lists = append(res.Lists, lo)
	}

	log.Info("match: contact processed",
		zap.Int("phones", len(phones)),
		zap.Int("lists", len(lists)),
		zap.Int("matches", len(res.Matches)),
	)
	return nil
}

func (m *Matcher) resolveLists(ctx context.Context, q store.Queries, listID *int64) ([]model.TargetList, error) {
	if listID == nil {
		return q.ListTargetLists(ctx)
	}
	l, err := q.GetTargetList(ctx, *listID)
	if err != nil || l == nil {
		return nil, err
	}
	return []model.TargetList{*l}, nil
}

// MatchNewSourceContacts matches each contact against listIDs, or against
// all lists when listIDs is empty. Failures are logged and collected; the
// batch always runs to completion. A contact counts as processed only when
// every one of its pairings succeeded.
func (m *Matcher) MatchNewSourceContacts(ctx context.Context, sourceIDs []int64, listIDs []int64) *model.BatchSummary {
	log := zap.L().With(zap.Int("contacts", len(sourceIDs)), zap.Int64s("target_list_ids", listIDs))
	log.Info("match: batch started")

	summary := &model.BatchSummary{
		TotalContacts: len(sourceIDs),
		TargetListIDs: listIDs,
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(m.opts.Concurrency)

	for _, id := range sourceIDs {
		id := id
		g.Go(func() error {
			matches, errs := m.matchAcrossLists(ctx, id, listIDs)

			mu.Lock()
			defer mu.Unlock()
			summary.MatchesCreated += matches
			if len(errs) == 0 {
				summary.ProcessedContacts++
			}
			summary.Errors = append(summary.Errors, errs...)
			return nil
		})
	}
	_ = g.Wait()

	summary.Success = len(summary.Errors) == 0
	log.Info("match: batch complete",
		zap.Int("processed", summary.ProcessedContacts),
		zap.Int("matches_created", summary.MatchesCreated),
		zap.Int("errors", len(summary.Errors)),
	)
	return summary
}

// matchAcrossLists runs one contact against each list in turn, or once
// against all lists when listIDs is empty.
func (m *Matcher) matchAcrossLists(ctx context.Context, sourceID int64, listIDs []int64) (int, []string) {
	if len(listIDs) == 0 {
		res, err := m.MatchContactToLists(ctx, sourceID, nil)
		if err != nil {
			zap.L().Error("match: contact failed", zap.Int64("source_contact_id", sourceID), zap.Error(err))
			return 0, []string{fmt.Sprintf("error processing source contact %d: %v", sourceID, err)}
		}
		return len(res.Matches), nil
	}

	var matches int
	var errs []string
	for _, listID := range listIDs {
		res, err := m.MatchContactToLists(ctx, sourceID, &listID)
		if err != nil {
			zap.L().Error("match: contact failed for list",
				zap.Int64("source_contact_id", sourceID),
				zap.Int64("target_list_id", listID),
				zap.Error(err),
			)
			errs = append(errs, fmt.Sprintf("error matching source contact %d to list %d: %v", sourceID, listID, err))
			continue
		}
		matches += len(res.Matches)
	}
	return matches, errs
}

// MatchNewTargetList matches every source contact that has no match in
// listID yet against that list only. A missing list is a successful no-op.
func (m *Matcher) MatchNewTargetList(ctx context.Context, listID int64) *model.BatchSummary {
	log := zap.L().With(zap.Int64("target_list_id", listID))

	list, err := m.store.GetTargetList(ctx, listID)
	if err != nil {
		log.Error("match: load target list", zap.Error(err))
		return &model.BatchSummary{TargetListIDs: []int64{listID}, Errors: []string{err.Error()}}
	}
	if list == nil {
		log.Warn("match: target list not found")
		return &model.BatchSummary{
			TargetListIDs: []int64{listID},
			Success:       true,
			Message:       fmt.Sprintf("target list %d not found", listID),
		}
	}

	ids, err := m.store.SourceContactIDsWithoutListMatch(ctx, listID)
	if err != nil {
		log.Error("match: select unmatched source contacts", zap.Error(err))
		return &model.BatchSummary{TargetListIDs: []int64{listID}, Errors: []string{err.Error()}}
	}

	summary := m.MatchNewSourceContacts(ctx, ids, []int64{listID})
	summary.Message = fmt.Sprintf("matched %d of %d source contacts against list %q, %d new matches",
		summary.ProcessedContacts, summary.TotalContacts, list.Name, summary.MatchesCreated)
	return summary
}

// UnmatchedSourceContacts returns the ids of source contacts with no match
// in any list, optionally restricted to contacts shared by userIDs.
func (m *Matcher) UnmatchedSourceContacts(ctx context.Context, userIDs []int64) ([]int64, error) {
	ids, err := m.store.UnmatchedSourceContactIDs(ctx, userIDs)
	return ids, eris.Wrap(err, "match: select unmatched source contacts")
}

// MatchUnmatchedContacts selects every source contact with no match yet and
// runs them as a batch.
func (m *Matcher) MatchUnmatchedContacts(ctx context.Context, userIDs, listIDs []int64) *model.BatchSummary {
	ids, err := m.UnmatchedSourceContacts(ctx, userIDs)
	if err != nil {
		zap.L().Error("match: select new contacts", zap.Error(err))
		return &model.BatchSummary{TargetListIDs: listIDs, Errors: []string{err.Error()}}
	}
	return m.MatchNewSourceContacts(ctx, ids, listIDs)
}
