package store

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/blueoctober14/RightImpact/internal/model"
)

// ErrNotFound is returned by writes that target a row which does not exist.
// Reads return nil, nil instead.
var ErrNotFound = eris.New("not found")

// Column lists shared by both backends. Nullable text columns are coalesced
// so they scan into plain strings.
const (
	sourceContactColumns = `id, user_id,
		COALESCE(first_name, ''), COALESCE(last_name, ''),
		COALESCE(mobile1, ''), COALESCE(mobile2, ''), COALESCE(mobile3, ''),
		COALESCE(email, ''), COALESCE(address, ''), COALESCE(city, ''),
		COALESCE(state, ''), COALESCE(zip, ''), COALESCE(company, ''),
		matched, created_at, updated_at`

	targetListColumns = `id, name, COALESCE(description, ''), status,
		total_contacts, imported_contacts, failed_contacts, created_at, updated_at`

	targetContactColumns = `id, list_id, voter_id, first_name, last_name, zip_code,
		COALESCE(cell_1, ''), COALESCE(cell_2, ''), COALESCE(cell_3, ''),
		COALESCE(landline_1, ''), COALESCE(landline_2, ''), COALESCE(landline_3, ''),
		COALESCE(email, ''), is_matched, COALESCE(match_confidence, ''), match_score,
		created_at, updated_at`

	snapshotColumns = `id, list_id, voter_id, first_name, last_name,
		COALESCE(cell_1, ''), COALESCE(cell_2, ''), COALESCE(cell_3, ''),
		COALESCE(landline_1, ''), COALESCE(landline_2, ''), COALESCE(landline_3, ''),
		COALESCE(email, ''), is_matched, COALESCE(match_confidence, ''), match_score`

	matchDetailColumns = `m.id, m.target_contact_id, t.voter_id, m.target_list_id,
		COALESCE(l.name, ''), m.match_confidence, m.created_at`

	jobColumns = `id, kind, status, params, summary, COALESCE(error, ''),
		created_at, started_at, completed_at`
)

type scannable interface {
	Scan(dest ...any) error
}

func scanSourceContact(row scannable) (*model.SourceContact, error) {
	c := &model.SourceContact{}
	err := row.Scan(&c.ID, &c.UserID,
		&c.FirstName, &c.LastName,
		&c.Mobile1, &c.Mobile2, &c.Mobile3,
		&c.Email, &c.Address, &c.City,
		&c.State, &c.Zip, &c.Company,
		&c.Matched, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func scanTargetList(row scannable) (*model.TargetList, error) {
	l := &model.TargetList{}
	var status string
	err := row.Scan(&l.ID, &l.Name, &l.Description, &status,
		&l.TotalContacts, &l.ImportedContacts, &l.FailedContacts, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.Status = model.ListStatus(status)
	return l, nil
}

func scanTargetContact(row scannable) (*model.TargetContact, error) {
	c := &model.TargetContact{}
	var confidence string
	err := row.Scan(&c.ID, &c.ListID, &c.VoterID, &c.FirstName, &c.LastName, &c.ZipCode,
		&c.Cell1, &c.Cell2, &c.Cell3,
		&c.Landline1, &c.Landline2, &c.Landline3,
		&c.Email, &c.IsMatched, &confidence, &c.MatchScore,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.MatchConfidence = model.Confidence(confidence)
	return c, nil
}

func scanSnapshot(row scannable) (model.TargetContactSnapshot, error) {
	var s model.TargetContactSnapshot
	var confidence string
	err := row.Scan(&s.ID, &s.ListID, &s.VoterID, &s.FirstName, &s.LastName,
		&s.Cell1, &s.Cell2, &s.Cell3,
		&s.Landline1, &s.Landline2, &s.Landline3,
		&s.Email, &s.IsMatched, &confidence, &s.MatchScore,
	)
	s.MatchConfidence = model.Confidence(confidence)
	return s, err
}

func scanMatchDetail(row scannable) (model.MatchDetail, error) {
	var d model.MatchDetail
	var confidence string
	err := row.Scan(&d.ID, &d.TargetContactID, &d.VoterID, &d.TargetListID,
		&d.TargetListName, &confidence, &d.CreatedAt)
	d.Confidence = model.Confidence(confidence)
	return d, err
}

func scanJob(row scannable) (*model.Job, error) {
	j := &model.Job{}
	var kind, status string
	var params, summary []byte
	err := row.Scan(&j.ID, &kind, &status, &params, &summary, &j.Error,
		&j.CreatedAt, &j.StartedAt, &j.CompletedAt)
	if err != nil {
		return nil, err
	}
	j.Kind = model.JobKind(kind)
	j.Status = model.JobStatus(status)
	if len(params) > 0 {
		if err := json.Unmarshal(params, &j.Params); err != nil {
			return nil, eris.Wrapf(err, "unmarshal params for job %s", j.ID)
		}
	}
	if len(summary) > 0 {
		j.Summary = &model.BatchSummary{}
		if err := json.Unmarshal(summary, j.Summary); err != nil {
			return nil, eris.Wrapf(err, "unmarshal summary for job %s", j.ID)
		}
	}
	return j, nil
}

// nullIfEmpty maps "" to NULL for nullable text columns.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// scoreArg maps a nil score to NULL.
func scoreArg(score *float64) any {
	if score == nil {
		return nil
	}
	return *score
}

// targetImportColumns are the columns written by ImportTargetContacts.
var targetImportColumns = []string{
	"list_id", "voter_id", "first_name", "last_name", "zip_code",
	"cell_1", "cell_2", "cell_3", "landline_1", "landline_2", "landline_3",
	"email", "created_at", "updated_at",
}

func targetImportRow(listID int64, c *model.TargetContact, now time.Time) []any {
	return []any{
		listID, c.VoterID, c.FirstName, c.LastName, c.ZipCode,
		nullIfEmpty(c.Cell1), nullIfEmpty(c.Cell2), nullIfEmpty(c.Cell3),
		nullIfEmpty(c.Landline1), nullIfEmpty(c.Landline2), nullIfEmpty(c.Landline3),
		nullIfEmpty(c.Email), now, now,
	}
}
