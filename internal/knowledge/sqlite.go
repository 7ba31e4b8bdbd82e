package knowledge

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/bom-matcher/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// recorded_at holds unix nanoseconds so ordering is exact.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS kb_entries (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	fingerprint          TEXT    NOT NULL,
	supplier_fingerprint TEXT    NOT NULL,
	confidence           REAL    NOT NULL,
	workflow_id          TEXT    NOT NULL,
	recorded_at          INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_kb_entries_fingerprint ON kb_entries(fingerprint, recorded_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_kb_entries_workflow ON kb_entries(workflow_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Latest(ctx context.Context, fingerprint string) (*model.KnowledgeEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT fingerprint, supplier_fingerprint, confidence, workflow_id, recorded_at
		 FROM kb_entries WHERE fingerprint = ?
		 ORDER BY recorded_at DESC, id DESC LIMIT 1`,
		fingerprint,
	)

	var e model.KnowledgeEntry
	var recordedAt int64
	err := row.Scan(&e.Fingerprint, &e.MatchedSupplierFingerprint, &e.ConfirmedConfidence, &e.WorkflowID, &recordedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest entry %s", fingerprint)
	}
	e.Timestamp = time.Unix(0, recordedAt).UTC()
	return &e, nil
}

func (s *SQLiteStore) Append(ctx context.Context, entry model.KnowledgeEntry) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO kb_entries (fingerprint, supplier_fingerprint, confidence, workflow_id, recorded_at)
		 SELECT ?, ?, ?, ?, ?
		 WHERE NOT EXISTS (
			SELECT 1 FROM (
				SELECT supplier_fingerprint, confidence FROM kb_entries
				WHERE fingerprint = ? ORDER BY recorded_at DESC, id DESC LIMIT 1
			) latest
			WHERE latest.supplier_fingerprint = ? AND latest.confidence = ?
		 )`,
		entry.Fingerprint, entry.MatchedSupplierFingerprint, entry.ConfirmedConfidence, entry.WorkflowID, entry.Timestamp.UnixNano(),
		entry.Fingerprint, entry.MatchedSupplierFingerprint, entry.ConfirmedConfidence,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: append entry %s", entry.Fingerprint)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) Stats(ctx context.Context, workflowID string) (*model.ProcessingStats, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COUNT(DISTINCT fingerprint),
		        COALESCE(SUM(CASE WHEN workflow_id = ? THEN 1 ELSE 0 END), 0),
		        COUNT(DISTINCT workflow_id),
		        COALESCE(AVG(confidence), 0),
		        MAX(recorded_at)
		 FROM kb_entries`,
		workflowID,
	)

	var st model.ProcessingStats
	var last sql.NullInt64
	if err := row.Scan(&st.TotalEntries, &st.UniqueFingerprints, &st.EntriesThisWorkflow, &st.Workflows, &st.AverageConfidence, &last); err != nil {
		return nil, eris.Wrap(err, "sqlite: stats")
	}
	if last.Valid {
		t := time.Unix(0, last.Int64).UTC()
		st.LastRecordedAt = &t
	}
	return &st, nil
}
