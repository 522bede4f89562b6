package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/blueoctober14/RightImpact/internal/db"
	"github.com/blueoctober14/RightImpact/internal/model"
	"github.com/blueoctober14/RightImpact/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pgQueries
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool. The initial
// ping is retried while the error looks transient.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig, retry resilience.RetryConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}

	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("postgres", "ping")
	}
	if err := resilience.Do(ctx, retry, pool.Ping); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pgQueries: pgQueries{q: pool}, pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. The caller owns the pool's
// lifecycle.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pgQueries: pgQueries{q: pool}, pool: pool}
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS shared_contacts (
	id         BIGSERIAL PRIMARY KEY,
	user_id    BIGINT,
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
	matched    BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS target_lists (
	id                BIGSERIAL PRIMARY KEY,
	name              TEXT NOT NULL,
	description       TEXT,
	status            TEXT NOT NULL DEFAULT 'pending',
	total_contacts    INTEGER NOT NULL DEFAULT 0,
	imported_contacts INTEGER NOT NULL DEFAULT 0,
	failed_contacts   INTEGER NOT NULL DEFAULT 0,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS target_contacts (
	id               BIGSERIAL PRIMARY KEY,
	list_id          BIGINT NOT NULL REFERENCES target_lists(id) ON DELETE CASCADE,
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
	is_matched       BOOLEAN NOT NULL DEFAULT false,
	match_confidence TEXT,
	match_score      DOUBLE PRECISION,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS contact_matches (
	id                BIGSERIAL PRIMARY KEY,
	shared_contact_id BIGINT NOT NULL REFERENCES shared_contacts(id) ON DELETE CASCADE,
	target_contact_id BIGINT NOT NULL REFERENCES target_contacts(id) ON DELETE CASCADE,
	target_list_id    BIGINT NOT NULL REFERENCES target_lists(id) ON DELETE CASCADE,
	match_score       DOUBLE PRECISION,
	match_confidence  TEXT NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (shared_contact_id, target_contact_id)
);

CREATE TABLE IF NOT EXISTS match_jobs (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'queued',
	params       JSONB NOT NULL DEFAULT '{}',
	summary      JSONB,
	error        TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	started_at   TIMESTAMPTZ,
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_shared_contacts_user_id ON shared_contacts(user_id);
CREATE INDEX IF NOT EXISTS idx_target_contacts_list_id ON target_contacts(list_id);
CREATE INDEX IF NOT EXISTS idx_target_contacts_voter_id ON target_contacts(voter_id);
CREATE INDEX IF NOT EXISTS idx_target_contacts_cell_1 ON target_contacts(list_id, cell_1);
CREATE INDEX IF NOT EXISTS idx_target_contacts_cell_2 ON target_contacts(list_id, cell_2);
CREATE INDEX IF NOT EXISTS idx_target_contacts_cell_3 ON target_contacts(list_id, cell_3);
CREATE INDEX IF NOT EXISTS idx_target_contacts_landline_1 ON target_contacts(list_id, landline_1);
CREATE INDEX IF NOT EXISTS idx_target_contacts_landline_2 ON target_contacts(list_id, landline_2);
CREATE INDEX IF NOT EXISTS idx_target_contacts_landline_3 ON target_contacts(list_id, landline_3);
CREATE INDEX IF NOT EXISTS idx_contact_matches_list ON contact_matches(target_list_id, shared_contact_id);
CREATE INDEX IF NOT EXISTS idx_contact_matches_target ON contact_matches(target_contact_id);
CREATE INDEX IF NOT EXISTS idx_match_jobs_created_at ON match_jobs(created_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// RunInTx runs fn inside a single transaction.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(pgQueries{q: tx}); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit tx")
}

// pgQueries implements Queries over either the pool or an open transaction.
type pgQueries struct {
	q db.Querier
}

func (p pgQueries) GetSourceContact(ctx context.Context, id int64) (*model.SourceContact, error) {
	row := p.q.QueryRow(ctx,
		`SELECT `+sourceContactColumns+` FROM shared_contacts WHERE id = $1`, id)
	c, err := scanSourceContact(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get source contact %d", id)
	}
	return c, nil
}

func (p pgQueries) MarkSourceMatched(ctx context.Context, id int64) error {
	tag, err := p.q.Exec(ctx,
		`UPDATE shared_contacts SET matched = true, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark source contact %d matched", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: source contact %d", id)
	}
	return nil
}

func (p pgQueries) UnmatchedSourceContactIDs(ctx context.Context, userIDs []int64) ([]int64, error) {
	query := `SELECT s.id FROM shared_contacts s
		WHERE NOT EXISTS (SELECT 1 FROM contact_matches m WHERE m.shared_contact_id = s.id)`
	var args []any
	if len(userIDs) > 0 {
		query += ` AND s.user_id = ANY($1)`
		args = append(args, userIDs)
	}
	query += ` ORDER BY s.id`
	return p.queryIDs(ctx, "unmatched source contacts", query, args...)
}

func (p pgQueries) SourceContactIDsWithoutListMatch(ctx context.Context, listID int64) ([]int64, error) {
	return p.queryIDs(ctx, "source contacts without list match",
		`SELECT s.id FROM shared_contacts s
		WHERE NOT EXISTS (
			SELECT 1 FROM contact_matches m
			WHERE m.shared_contact_id = s.id AND m.target_list_id = $1
		)
		ORDER BY s.id`, listID)
}

func (p pgQueries) GetTargetList(ctx context.Context, id int64) (*model.TargetList, error) {
	row := p.q.QueryRow(ctx,
		`SELECT `+targetListColumns+` FROM target_lists WHERE id = $1`, id)
	l, err := scanTargetList(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get target list %d", id)
	}
	return l, nil
}

func (p pgQueries) ListTargetLists(ctx context.Context) ([]model.TargetList, error) {
	rows, err := p.q.Query(ctx, `SELECT `+targetListColumns+` FROM target_lists ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list target lists")
	}
	defer rows.Close()

	var lists []model.TargetList
	for rows.Next() {
		l, err := scanTargetList(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan target list")
		}
		lists = append(lists, *l)
	}
	return lists, eris.Wrap(rows.Err(), "postgres: iterate target lists")
}

func (p pgQueries) FindTargetContactsByPhone(ctx context.Context, listID int64, phones []string) ([]model.TargetContactSnapshot, error) {
	if len(phones) == 0 {
		return nil, nil
	}
	rows, err := p.q.Query(ctx,
		`SELECT `+snapshotColumns+` FROM target_contacts
		WHERE list_id = $1
		  AND (cell_1 = ANY($2) OR cell_2 = ANY($2) OR cell_3 = ANY($2)
		    OR landline_1 = ANY($2) OR landline_2 = ANY($2) OR landline_3 = ANY($2))`,
		listID, phones)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find target contacts in list %d", listID)
	}
	defer rows.Close()

	var out []model.TargetContactSnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan target contact")
		}
		out = append(out, s)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate target contacts")
}

func (p pgQueries) GetTargetContact(ctx context.Context, id int64) (*model.TargetContact, error) {
	row := p.q.QueryRow(ctx,
		`SELECT `+targetContactColumns+` FROM target_contacts WHERE id = $1`, id)
	c, err := scanTargetContact(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get target contact %d", id)
	}
	return c, nil
}

func (p pgQueries) MarkTargetMatched(ctx context.Context, id int64, confidence model.Confidence, score float64) error {
	tag, err := p.q.Exec(ctx,
		`UPDATE target_contacts
		SET is_matched = true, match_confidence = $2, match_score = $3, updated_at = now()
		WHERE id = $1`,
		id, string(confidence), score)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark target contact %d matched", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: target contact %d", id)
	}
	return nil
}

// InsertMatch inserts m and fills its ID and CreatedAt. It reports false
// when the (source, target) pair already exists.
func (p pgQueries) InsertMatch(ctx context.Context, m *model.ContactMatch) (bool, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	err := p.q.QueryRow(ctx,
		`INSERT INTO contact_matches
			(shared_contact_id, target_contact_id, target_list_id, match_score, match_confidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (shared_contact_id, target_contact_id) DO NOTHING
		RETURNING id`,
		m.SourceContactID, m.TargetContactID, m.TargetListID, scoreArg(m.Score), string(m.Confidence), m.CreatedAt,
	).Scan(&m.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "postgres: insert match %d->%d", m.SourceContactID, m.TargetContactID)
	}
	return true, nil
}

func (p pgQueries) MatchExists(ctx context.Context, sourceID, targetID int64) (bool, error) {
	var exists bool
	err := p.q.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM contact_matches WHERE shared_contact_id = $1 AND target_contact_id = $2
		)`, sourceID, targetID).Scan(&exists)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: match exists %d->%d", sourceID, targetID)
	}
	return exists, nil
}

func (p pgQueries) GetMatchesForContact(ctx context.Context, sourceID int64) ([]model.MatchDetail, error) {
	rows, err := p.q.Query(ctx,
		`SELECT `+matchDetailColumns+`
		FROM contact_matches m
		JOIN target_contacts t ON t.id = m.target_contact_id
		LEFT JOIN target_lists l ON l.id = m.target_list_id
		WHERE m.shared_contact_id = $1
		ORDER BY m.id`, sourceID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get matches for contact %d", sourceID)
	}
	defer rows.Close()

	out := []model.MatchDetail{}
	for rows.Next() {
		d, err := scanMatchDetail(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan match detail")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate match details")
}

func (p pgQueries) queryIDs(ctx context.Context, what, query string, args ...any) ([]int64, error) {
	rows, err := p.q.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query %s", what)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrapf(err, "postgres: scan %s", what)
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrapf(rows.Err(), "postgres: iterate %s", what)
}

// --- Jobs ---

func (s *PostgresStore) CreateJob(ctx context.Context, job *model.Job) error {
	params, err := json.Marshal(job.Params)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal job params")
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.Status == "" {
		job.Status = model.JobStatusQueued
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO match_jobs (id, kind, status, params, created_at) VALUES ($1, $2, $3, $4, $5)`,
		job.ID, string(job.Kind), string(job.Status), params, job.CreatedAt)
	return eris.Wrapf(err, "postgres: create job %s", job.ID)
}

func (s *PostgresStore) StartJob(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE match_jobs SET status = $1, started_at = $2 WHERE id = $3`,
		string(model.JobStatusRunning), time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: start job %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: job %s", id)
	}
	return nil
}

func (s *PostgresStore) CompleteJob(ctx context.Context, id string, summary *model.BatchSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal job summary")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE match_jobs SET status = $1, summary = $2, completed_at = $3 WHERE id = $4`,
		string(model.JobStatusComplete), data, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete job %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: job %s", id)
	}
	return nil
}

func (s *PostgresStore) FailJob(ctx context.Context, id string, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE match_jobs SET status = $1, error = $2, completed_at = $3 WHERE id = $4`,
		string(model.JobStatusFailed), errMsg, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail job %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: job %s", id)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM match_jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get job %s", id)
	}
	return j, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, limit int) ([]model.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM match_jobs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: iterate jobs")
}

// --- Seeding ---

func (s *PostgresStore) CreateSourceContact(ctx context.Context, c *model.SourceContact) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO shared_contacts
			(user_id, first_name, last_name, mobile1, mobile2, mobile3,
			 email, address, city, state, zip, company, matched)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`,
		c.UserID, c.FirstName, c.LastName,
		nullIfEmpty(c.Mobile1), nullIfEmpty(c.Mobile2), nullIfEmpty(c.Mobile3),
		nullIfEmpty(c.Email), nullIfEmpty(c.Address), nullIfEmpty(c.City),
		nullIfEmpty(c.State), nullIfEmpty(c.Zip), nullIfEmpty(c.Company), c.Matched,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return eris.Wrap(err, "postgres: create source contact")
}

func (s *PostgresStore) CreateTargetList(ctx context.Context, l *model.TargetList) error {
	if l.Status == "" {
		l.Status = model.ListStatusPending
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO target_lists
			(name, description, status, total_contacts, imported_contacts, failed_contacts)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		l.Name, nullIfEmpty(l.Description), string(l.Status),
		l.TotalContacts, l.ImportedContacts, l.FailedContacts,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	return eris.Wrap(err, "postgres: create target list")
}

func (s *PostgresStore) CreateTargetContact(ctx context.Context, c *model.TargetContact) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO target_contacts
			(list_id, voter_id, first_name, last_name, zip_code,
			 cell_1, cell_2, cell_3, landline_1, landline_2, landline_3, email)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`,
		c.ListID, c.VoterID, c.FirstName, c.LastName, c.ZipCode,
		nullIfEmpty(c.Cell1), nullIfEmpty(c.Cell2), nullIfEmpty(c.Cell3),
		nullIfEmpty(c.Landline1), nullIfEmpty(c.Landline2), nullIfEmpty(c.Landline3),
		nullIfEmpty(c.Email),
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return eris.Wrap(err, "postgres: create target contact")
}

// ImportTargetContacts bulk-loads contacts into listID with COPY and
// refreshes the list counters in the same transaction.
func (s *PostgresStore) ImportTargetContacts(ctx context.Context, listID int64, contacts []model.TargetContact) (int, error) {
	if len(contacts) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	rows := make([][]any, 0, len(contacts))
	for i := range contacts {
		rows = append(rows, targetImportRow(listID, &contacts[i], now))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin import tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	n, err := db.CopyFrom(ctx, tx, "target_contacts", targetImportColumns, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: import target contacts into list %d", listID)
	}
	tag, err := tx.Exec(ctx,
		`UPDATE target_lists SET
			total_contacts = (SELECT COUNT(*) FROM target_contacts WHERE list_id = $1),
			imported_contacts = imported_contacts + $2,
			updated_at = $3
		WHERE id = $1`, listID, n, now)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: update counters for list %d", listID)
	}
	if tag.RowsAffected() == 0 {
		return 0, eris.Wrapf(ErrNotFound, "target list %d", listID)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit import tx")
	}

	zap.L().Info("postgres: imported target contacts", zap.Int64("target_list_id", listID), zap.Int64("rows", n))
	return int(n), nil
}

// --- Bulk removal ---

func (s *PostgresStore) DeleteTargetContactsByVoterIDs(ctx context.Context, voterIDs []string, listID *int64) (int, error) {
	if len(voterIDs) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin delete tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `SELECT id, list_id FROM target_contacts WHERE voter_id = ANY($1)`
	args := []any{voterIDs}
	if listID != nil {
		query += ` AND list_id = $2`
		args = append(args, *listID)
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: select target contacts for delete")
	}
	var targetIDs []int64
	listSet := make(map[int64]struct{})
	for rows.Next() {
		var id, lid int64
		if err := rows.Scan(&id, &lid); err != nil {
			rows.Close()
			return 0, eris.Wrap(err, "postgres: scan target contact for delete")
		}
		targetIDs = append(targetIDs, id)
		listSet[lid] = struct{}{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, eris.Wrap(err, "postgres: iterate target contacts for delete")
	}
	if len(targetIDs) == 0 {
		return 0, nil
	}

	txq := pgQueries{q: tx}
	sourceIDs, err := txq.queryIDs(ctx, "sources of deleted targets",
		`SELECT DISTINCT shared_contact_id FROM contact_matches WHERE target_contact_id = ANY($1)`, targetIDs)
	if err != nil {
		return 0, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM contact_matches WHERE target_contact_id = ANY($1)`, targetIDs); err != nil {
		return 0, eris.Wrap(err, "postgres: delete matches")
	}
	tag, err := tx.Exec(ctx, `DELETE FROM target_contacts WHERE id = ANY($1)`, targetIDs)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete target contacts")
	}

	for lid := range listSet {
		if _, err := tx.Exec(ctx,
			`UPDATE target_lists
			SET total_contacts = (SELECT COUNT(*) FROM target_contacts WHERE list_id = $1), updated_at = now()
			WHERE id = $1`, lid); err != nil {
			return 0, eris.Wrapf(err, "postgres: recount target list %d", lid)
		}
	}

	if len(sourceIDs) > 0 {
		if _, err := tx.Exec(ctx,
			`UPDATE shared_contacts s SET matched = false, updated_at = now()
			WHERE s.id = ANY($1)
			  AND NOT EXISTS (SELECT 1 FROM contact_matches m WHERE m.shared_contact_id = s.id)`,
			sourceIDs); err != nil {
			return 0, eris.Wrap(err, "postgres: reset source matched flags")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit delete tx")
	}

	deleted := int(tag.RowsAffected())
	zap.L().Info("deleted target contacts",
		zap.Int("deleted", deleted),
		zap.Int("lists", len(listSet)),
		zap.Int("source_contacts", len(sourceIDs)),
	)
	return deleted, nil
}
