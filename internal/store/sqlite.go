package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/blueoctober14/RightImpact/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	sqliteQueries
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
// The pool is limited to one connection so writers queue instead of failing
// with SQLITE_BUSY.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{sqliteQueries: sqliteQueries{q: db}, db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS shared_contacts (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    INTEGER,
	first_name TEXT,
	last_name  TEXT,
	mobile1    TEXT,
	mobile2    TEXT,
	mobile3    TEXT,
	email      TEXT,
	address    TEXT,
	city       TEXT,
	state      TEXT,
	zip        TEXT,
	company    TEXT,
	matched    BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS target_lists (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	name              TEXT NOT NULL,
	description       TEXT,
	status            TEXT NOT NULL DEFAULT 'pending',
	total_contacts    INTEGER NOT NULL DEFAULT 0,
	imported_contacts INTEGER NOT NULL DEFAULT 0,
	failed_contacts   INTEGER NOT NULL DEFAULT 0,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS target_contacts (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	list_id          INTEGER NOT NULL REFERENCES target_lists(id) ON DELETE CASCADE,
	voter_id         TEXT NOT NULL,
	first_name       TEXT NOT NULL,
	last_name        TEXT NOT NULL,
	zip_code         TEXT NOT NULL,
	cell_1           TEXT,
	cell_2           TEXT,
	cell_3           TEXT,
	landline_1       TEXT,
	landline_2       TEXT,
	landline_3       TEXT,
	email            TEXT,
	is_matched       BOOLEAN NOT NULL DEFAULT 0,
	match_confidence TEXT,
	match_score      REAL,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS contact_matches (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	shared_contact_id INTEGER NOT NULL REFERENCES shared_contacts(id) ON DELETE CASCADE,
	target_contact_id INTEGER NOT NULL REFERENCES target_contacts(id) ON DELETE CASCADE,
	target_list_id    INTEGER NOT NULL REFERENCES target_lists(id) ON DELETE CASCADE,
	match_score       REAL,
	match_confidence  TEXT NOT NULL,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (shared_contact_id, target_contact_id)
);

CREATE TABLE IF NOT EXISTS match_jobs (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'queued',
	params       TEXT NOT NULL DEFAULT '{}',
	summary      TEXT,
	error        TEXT,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	started_at   DATETIME,
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_shared_contacts_user_id ON shared_contacts(user_id);
CREATE INDEX IF NOT EXISTS idx_target_contacts_list_id ON target_contacts(list_id);
CREATE INDEX IF NOT EXISTS idx_target_contacts_voter_id ON target_contacts(voter_id);
CREATE INDEX IF NOT EXISTS idx_contact_matches_list ON contact_matches(target_list_id, shared_contact_id);
CREATE INDEX IF NOT EXISTS idx_contact_matches_target ON contact_matches(target_contact_id);
CREATE INDEX IF NOT EXISTS idx_match_jobs_created_at ON match_jobs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RunInTx runs fn inside a single transaction.
func (s *SQLiteStore) RunInTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(sqliteQueries{q: tx}); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

// sqlExecer is satisfied by both *sql.DB and *sql.Tx.
type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqliteQueries implements Queries over either the database or a transaction.
type sqliteQueries struct {
	q sqlExecer
}

func (p sqliteQueries) GetSourceContact(ctx context.Context, id int64) (*model.SourceContact, error) {
	row := p.q.QueryRowContext(ctx,
		`SELECT `+sourceContactColumns+` FROM shared_contacts WHERE id = ?`, id)
	c, err := scanSourceContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get source contact %d", id)
	}
	return c, nil
}

func (p sqliteQueries) MarkSourceMatched(ctx context.Context, id int64) error {
	res, err := p.q.ExecContext(ctx,
		`UPDATE shared_contacts SET matched = 1, updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark source contact %d matched", id)
	}
	return checkRowsAffected(res, "source contact", id)
}

func (p sqliteQueries) UnmatchedSourceContactIDs(ctx context.Context, userIDs []int64) ([]int64, error) {
	query := `SELECT s.id FROM shared_contacts s
		WHERE NOT EXISTS (SELECT 1 FROM contact_matches m WHERE m.shared_contact_id = s.id)`
	var args []any
	if len(userIDs) > 0 {
		query += ` AND s.user_id IN (` + placeholders(len(userIDs)) + `)`
		for _, id := range userIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY s.id`
	return p.queryIDs(ctx, "unmatched source contacts", query, args...)
}

func (p sqliteQueries) SourceContactIDsWithoutListMatch(ctx context.Context, listID int64) ([]int64, error) {
	return p.queryIDs(ctx, "source contacts without list match",
		`SELECT s.id FROM shared_contacts s
		WHERE NOT EXISTS (
			SELECT 1 FROM contact_matches m
			WHERE m.shared_contact_id = s.id AND m.target_list_id = ?
		)
		ORDER BY s.id`, listID)
}

func (p sqliteQueries) GetTargetList(ctx context.Context, id int64) (*model.TargetList, error) {
	row := p.q.QueryRowContext(ctx,
		`SELECT `+targetListColumns+` FROM target_lists WHERE id = ?`, id)
	l, err := scanTargetList(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get target list %d", id)
	}
	return l, nil
}

func (p sqliteQueries) ListTargetLists(ctx context.Context) ([]model.TargetList, error) {
	rows, err := p.q.QueryContext(ctx, `SELECT `+targetListColumns+` FROM target_lists ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list target lists")
	}
	defer rows.Close()

	var lists []model.TargetList
	for rows.Next() {
		l, err := scanTargetList(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan target list")
		}
		lists = append(lists, *l)
	}
	return lists, eris.Wrap(rows.Err(), "sqlite: iterate target lists")
}

var phoneColumns = []string{"cell_1", "cell_2", "cell_3", "landline_1", "landline_2", "landline_3"}

func (p sqliteQueries) FindTargetContactsByPhone(ctx context.Context, listID int64, phones []string) ([]model.TargetContactSnapshot, error) {
	if len(phones) == 0 {
		return nil, nil
	}

	in := placeholders(len(phones))
	clauses := make([]string, 0, len(phoneColumns))
	args := []any{listID}
	for _, col := range phoneColumns {
		clauses = append(clauses, col+` IN (`+in+`)`)
		for _, ph := range phones {
			args = append(args, ph)
		}
	}

	rows, err := p.q.QueryContext(ctx,
		`SELECT `+snapshotColumns+` FROM target_contacts
		WHERE list_id = ? AND (`+strings.Join(clauses, " OR ")+`)`, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find target contacts in list %d", listID)
	}
	defer rows.Close()

	var out []model.TargetContactSnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan target contact")
		}
		out = append(out, s)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate target contacts")
}

func (p sqliteQueries) GetTargetContact(ctx context.Context, id int64) (*model.TargetContact, error) {
	row := p.q.QueryRowContext(ctx,
		`SELECT `+targetContactColumns+` FROM target_contacts WHERE id = ?`, id)
	c, err := scanTargetContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get target contact %d", id)
	}
	return c, nil
}

func (p sqliteQueries) MarkTargetMatched(ctx context.Context, id int64, confidence model.Confidence, score float64) error {
	res, err := p.q.ExecContext(ctx,
		`UPDATE target_contacts
		SET is_matched = 1, match_confidence = ?, match_score = ?, updated_at = ?
		WHERE id = ?`,
		string(confidence), score, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark target contact %d matched", id)
	}
	return checkRowsAffected(res, "target contact", id)
}

func (p sqliteQueries) InsertMatch(ctx context.Context, m *model.ContactMatch) (bool, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	res, err := p.q.ExecContext(ctx,
		`INSERT INTO contact_matches
			(shared_contact_id, target_contact_id, target_list_id, match_score, match_confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (shared_contact_id, target_contact_id) DO NOTHING`,
		m.SourceContactID, m.TargetContactID, m.TargetListID, scoreArg(m.Score), string(m.Confidence), m.CreatedAt)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert match %d->%d", m.SourceContactID, m.TargetContactID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return false, nil
	}
	m.ID, err = res.LastInsertId()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: last insert id")
	}
	return true, nil
}

func (p sqliteQueries) MatchExists(ctx context.Context, sourceID, targetID int64) (bool, error) {
	var exists bool
	err := p.q.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM contact_matches WHERE shared_contact_id = ? AND target_contact_id = ?
		)`, sourceID, targetID).Scan(&exists)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: match exists %d->%d", sourceID, targetID)
	}
	return exists, nil
}

func (p sqliteQueries) GetMatchesForContact(ctx context.Context, sourceID int64) ([]model.MatchDetail, error) {
	rows, err := p.q.QueryContext(ctx,
		`SELECT `+matchDetailColumns+`
		FROM contact_matches m
		JOIN target_contacts t ON t.id = m.target_contact_id
		LEFT JOIN target_lists l ON l.id = m.target_list_id
		WHERE m.shared_contact_id = ?
		ORDER BY m.id`, sourceID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get matches for contact %d", sourceID)
	}
	defer rows.Close()

	out := []model.MatchDetail{}
	for rows.Next() {
		d, err := scanMatchDetail(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan match detail")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate match details")
}

func (p sqliteQueries) queryIDs(ctx context.Context, what, query string, args ...any) ([]int64, error) {
	rows, err := p.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query %s", what)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan %s", what)
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrapf(rows.Err(), "sqlite: iterate %s", what)
}

// --- Jobs ---

func (s *SQLiteStore) CreateJob(ctx context.Context, job *model.Job) error {
	params, err := json.Marshal(job.Params)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal job params")
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.Status == "" {
		job.Status = model.JobStatusQueued
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO match_jobs (id, kind, status, params, created_at) VALUES (?, ?, ?, ?, ?)`,
		job.ID, string(job.Kind), string(job.Status), string(params), job.CreatedAt)
	return eris.Wrapf(err, "sqlite: create job %s", job.ID)
}

func (s *SQLiteStore) StartJob(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE match_jobs SET status = ?, started_at = ? WHERE id = ?`,
		string(model.JobStatusRunning), time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: start job %s", id)
	}
	return checkRowsAffected(res, "job", id)
}

func (s *SQLiteStore) CompleteJob(ctx context.Context, id string, summary *model.BatchSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal job summary")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE match_jobs SET status = ?, summary = ?, completed_at = ? WHERE id = ?`,
		string(model.JobStatusComplete), string(data), time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete job %s", id)
	}
	return checkRowsAffected(res, "job", id)
}

func (s *SQLiteStore) FailJob(ctx context.Context, id string, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE match_jobs SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		string(model.JobStatusFailed), errMsg, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail job %s", id)
	}
	return checkRowsAffected(res, "job", id)
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM match_jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get job %s", id)
	}
	return j, nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context, limit int) ([]model.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM match_jobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job")
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: iterate jobs")
}

// --- Seeding ---

func (s *SQLiteStore) CreateSourceContact(ctx context.Context, c *model.SourceContact) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO shared_contacts
			(user_id, first_name, last_name, mobile1, mobile2, mobile3,
			 email, address, city, state, zip, company, matched, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.UserID, c.FirstName, c.LastName,
		nullIfEmpty(c.Mobile1), nullIfEmpty(c.Mobile2), nullIfEmpty(c.Mobile3),
		nullIfEmpty(c.Email), nullIfEmpty(c.Address), nullIfEmpty(c.City),
		nullIfEmpty(c.State), nullIfEmpty(c.Zip), nullIfEmpty(c.Company), c.Matched, now, now)
	if err != nil {
		return eris.Wrap(err, "sqlite: create source contact")
	}
	c.ID, err = res.LastInsertId()
	c.CreatedAt, c.UpdatedAt = now, now
	return eris.Wrap(err, "sqlite: source contact id")
}

func (s *SQLiteStore) CreateTargetList(ctx context.Context, l *model.TargetList) error {
	if l.Status == "" {
		l.Status = model.ListStatusPending
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO target_lists
			(name, description, status, total_contacts, imported_contacts, failed_contacts, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.Name, nullIfEmpty(l.Description), string(l.Status),
		l.TotalContacts, l.ImportedContacts, l.FailedContacts, now, now)
	if err != nil {
		return eris.Wrap(err, "sqlite: create target list")
	}
	l.ID, err = res.LastInsertId()
	l.CreatedAt, l.UpdatedAt = now, now
	return eris.Wrap(err, "sqlite: target list id")
}

func (s *SQLiteStore) CreateTargetContact(ctx context.Context, c *model.TargetContact) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO target_contacts
			(list_id, voter_id, first_name, last_name, zip_code,
			 cell_1, cell_2, cell_3, landline_1, landline_2, landline_3, email, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ListID, c.VoterID, c.FirstName, c.LastName, c.ZipCode,
		nullIfEmpty(c.Cell1), nullIfEmpty(c.Cell2), nullIfEmpty(c.Cell3),
		nullIfEmpty(c.Landline1), nullIfEmpty(c.Landline2), nullIfEmpty(c.Landline3),
		nullIfEmpty(c.Email), now, now)
	if err != nil {
		return eris.Wrap(err, "sqlite: create target contact")
	}
	c.ID, err = res.LastInsertId()
	c.CreatedAt, c.UpdatedAt = now, now
	return eris.Wrap(err, "sqlite: target contact id")
}

// ImportTargetContacts inserts contacts into listID in one transaction and
// refreshes the list counters.
func (s *SQLiteStore) ImportTargetContacts(ctx context.Context, listID int64, contacts []model.TargetContact) (int, error) {
	if len(contacts) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin import tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO target_contacts (`+strings.Join(targetImportColumns, ", ")+`)
		VALUES (`+placeholders(len(targetImportColumns))+`)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare import")
	}
	defer stmt.Close() //nolint:errcheck

	for i := range contacts {
		if _, err := stmt.ExecContext(ctx, targetImportRow(listID, &contacts[i], now)...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: import target contact %s", contacts[i].VoterID)
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE target_lists SET
			total_contacts = (SELECT COUNT(*) FROM target_contacts WHERE list_id = ?),
			imported_contacts = imported_contacts + ?,
			updated_at = ?
		WHERE id = ?`, listID, len(contacts), now, listID)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: update counters for list %d", listID)
	}
	if err := checkRowsAffected(res, "target list", listID); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit import tx")
	}
	return len(contacts), nil
}

// --- Bulk removal ---

func (s *SQLiteStore) DeleteTargetContactsByVoterIDs(ctx context.Context, voterIDs []string, listID *int64) (int, error) {
	if len(voterIDs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin delete tx")
	}
	defer tx.Rollback() //nolint:errcheck

	query := `SELECT id, list_id FROM target_contacts WHERE voter_id IN (` + placeholders(len(voterIDs)) + `)`
	args := make([]any, 0, len(voterIDs)+1)
	for _, v := range voterIDs {
		args = append(args, v)
	}
	if listID != nil {
		query += ` AND list_id = ?`
		args = append(args, *listID)
	}
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: select target contacts for delete")
	}
	var targetIDs []int64
	listSet := make(map[int64]struct{})
	for rows.Next() {
		var id, lid int64
		if err := rows.Scan(&id, &lid); err != nil {
			rows.Close()
			return 0, eris.Wrap(err, "sqlite: scan target contact for delete")
		}
		targetIDs = append(targetIDs, id)
		listSet[lid] = struct{}{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, eris.Wrap(err, "sqlite: iterate target contacts for delete")
	}
	if len(targetIDs) == 0 {
		return 0, nil
	}

	in := placeholders(len(targetIDs))
	idArgs := int64Args(targetIDs)
	txq := sqliteQueries{q: tx}
	sourceIDs, err := txq.queryIDs(ctx, "sources of deleted targets",
		`SELECT DISTINCT shared_contact_id FROM contact_matches WHERE target_contact_id IN (`+in+`)`, idArgs...)
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM contact_matches WHERE target_contact_id IN (`+in+`)`, idArgs...); err != nil {
		return 0, eris.Wrap(err, "sqlite: delete matches")
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM target_contacts WHERE id IN (`+in+`)`, idArgs...)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete target contacts")
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}

	now := time.Now().UTC()
	for lid := range listSet {
		if _, err := tx.ExecContext(ctx,
			`UPDATE target_lists
			SET total_contacts = (SELECT COUNT(*) FROM target_contacts WHERE list_id = ?), updated_at = ?
			WHERE id = ?`, lid, now, lid); err != nil {
			return 0, eris.Wrapf(err, "sqlite: recount target list %d", lid)
		}
	}

	if len(sourceIDs) > 0 {
		args := append([]any{now}, int64Args(sourceIDs)...)
		if _, err := tx.ExecContext(ctx,
			`UPDATE shared_contacts SET matched = 0, updated_at = ?
			WHERE id IN (`+placeholders(len(sourceIDs))+`)
			  AND NOT EXISTS (SELECT 1 FROM contact_matches m WHERE m.shared_contact_id = shared_contacts.id)`,
			args...); err != nil {
			return 0, eris.Wrap(err, "sqlite: reset source matched flags")
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit delete tx")
	}

	zap.L().Info("deleted target contacts",
		zap.Int64("deleted", deleted),
		zap.Int("lists", len(listSet)),
		zap.Int("source_contacts", len(sourceIDs)),
	)
	return int(deleted), nil
}

// checkRowsAffected returns ErrNotFound if the result affected zero rows.
func checkRowsAffected(res sql.Result, entity string, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %v", entity, id)
	}
	return nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
