package knowledge

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/bom-matcher/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore. pgxmock pools
// satisfy it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore implements Store on PostgreSQL. Appends take a transaction
// scoped advisory lock on the fingerprint so concurrent writers in other
// processes are serialized too.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
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
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS kb_entries (
	id                   BIGSERIAL PRIMARY KEY,
	fingerprint          TEXT             NOT NULL,
	supplier_fingerprint TEXT             NOT NULL,
	confidence           DOUBLE PRECISION NOT NULL,
	workflow_id          TEXT             NOT NULL,
	recorded_at          TIMESTAMPTZ      NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_kb_entries_fingerprint ON kb_entries(fingerprint, recorded_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_kb_entries_workflow ON kb_entries(workflow_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Latest(ctx context.Context, fingerprint string) (*model.KnowledgeEntry, error) {
	var e model.KnowledgeEntry
	err := s.pool.QueryRow(ctx,
		`SELECT fingerprint, supplier_fingerprint, confidence, workflow_id, recorded_at
		 FROM kb_entries WHERE fingerprint = $1
		 ORDER BY recorded_at DESC, id DESC LIMIT 1`,
		fingerprint,
	).Scan(&e.Fingerprint, &e.MatchedSupplierFingerprint, &e.ConfirmedConfidence, &e.WorkflowID, &e.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: latest entry %s", fingerprint)
	}
	e.Timestamp = e.Timestamp.UTC()
	return &e, nil
}

func (s *PostgresStore) Append(ctx context.Context, entry model.KnowledgeEntry) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, eris.Wrap(err, "postgres: append: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, entry.Fingerprint); err != nil {
		return false, eris.Wrapf(err, "postgres: append: lock %s", entry.Fingerprint)
	}

	tag, err := tx.Exec(ctx,
		`INSERT INTO kb_entries (fingerprint, supplier_fingerprint, confidence, workflow_id, recorded_at)
		 SELECT $1, $2, $3, $4, $5
		 WHERE NOT EXISTS (
			SELECT 1 FROM (
				SELECT supplier_fingerprint, confidence FROM kb_entries
				WHERE fingerprint = $1 ORDER BY recorded_at DESC, id DESC LIMIT 1
			) latest
			WHERE latest.supplier_fingerprint = $2 AND latest.confidence = $3
		 )`,
		entry.Fingerprint, entry.MatchedSupplierFingerprint, entry.ConfirmedConfidence, entry.WorkflowID, entry.Timestamp,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: append entry %s", entry.Fingerprint)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, eris.Wrap(err, "postgres: append: commit")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Stats(ctx context.Context, workflowID string) (*model.ProcessingStats, error) {
	var st model.ProcessingStats
	var last *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(DISTINCT fingerprint),
		        COUNT(*) FILTER (WHERE workflow_id = $1),
		        COUNT(DISTINCT workflow_id),
		        COALESCE(AVG(confidence), 0),
		        MAX(recorded_at)
		 FROM kb_entries`,
		workflowID,
	).Scan(&st.TotalEntries, &st.UniqueFingerprints, &st.EntriesThisWorkflow, &st.Workflows, &st.AverageConfidence, &last)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats")
	}
	if last != nil {
		t := last.UTC()
		st.LastRecordedAt = &t
	}
	return &st, nil
}
