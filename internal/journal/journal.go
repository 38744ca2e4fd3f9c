// Package journal persists every store change as a version row in SQLite,
// with an active pointer that can be rolled back.
package journal

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jameskane05/nanauts-sub000/internal/state"
)

// ErrVersionNotFound is returned for an unknown version id, or by Current
// on an empty journal.
var ErrVersionNotFound = errors.New("version not found")

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS snapshot_versions (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	version_id    TEXT NOT NULL UNIQUE,
	parent_id     TEXT,
	update_json   TEXT NOT NULL,
	snapshot_json TEXT NOT NULL,
	phase         TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (parent_id) REFERENCES snapshot_versions(version_id)
);

CREATE TABLE IF NOT EXISTS decision_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	version_id    TEXT,
	component     TEXT NOT NULL,
	target        TEXT NOT NULL,
	action        TEXT NOT NULL,
	reason        TEXT,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS active_version (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	version_id    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES snapshot_versions(version_id)
);
`

// #endregion schema

// #region types

// Record is one journaled store change: the update that was applied and the
// snapshot it produced.
type Record struct {
	Seq       int64
	VersionID string
	ParentID  string
	Update    state.Update
	Snapshot  state.Snapshot
	Phase     state.Phase
	CreatedAt time.Time
}

// Journal manages versioned snapshots in SQLite.
type Journal struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// #endregion types

// #region constructor

// Open opens a SQLite database and runs migrations. Use ":memory:" for a
// throwaway journal.
func Open(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Journal{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (j *Journal) DB() *sql.DB {
	return j.db
}

// #endregion constructor

// #region commit

// Commit appends a version for u and snap, parented on the active version,
// and moves the active pointer to it atomically.
func (j *Journal) Commit(u state.Update, snap state.Snapshot) (Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	updJSON, err := encode(u, false)
	if err != nil {
		return Record{}, fmt.Errorf("marshal update: %w", err)
	}
	snapJSON, err := encode(snap.Fields(), true)
	if err != nil {
		return Record{}, fmt.Errorf("marshal snapshot: %w", err)
	}

	tx, err := j.db.Begin()
	if err != nil {
		return Record{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var parent sql.NullString
	err = tx.QueryRow(`SELECT version_id FROM active_version WHERE id = 1`).Scan(&parent)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("get active: %w", err)
	}

	rec := Record{
		VersionID: uuid.New().String(),
		ParentID:  parent.String,
		Update:    u.Clone(),
		Snapshot:  snap,
		Phase:     snap.Phase(),
		CreatedAt: j.now().UTC(),
	}

	var parentPtr interface{}
	if rec.ParentID != "" {
		parentPtr = rec.ParentID
	}
	res, err := tx.Exec(
		`INSERT INTO snapshot_versions (version_id, parent_id, update_json, snapshot_json, phase, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.VersionID, parentPtr, updJSON, snapJSON, rec.Phase.String(),
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Record{}, fmt.Errorf("insert version: %w", err)
	}
	if rec.Seq, err = res.LastInsertId(); err != nil {
		return Record{}, fmt.Errorf("version seq: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO active_version (id, version_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET version_id = excluded.version_id`,
		rec.VersionID,
	)
	if err != nil {
		return Record{}, fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// #endregion commit

// #region read

const selectVersion = `SELECT seq, version_id, parent_id, update_json, snapshot_json, created_at FROM snapshot_versions`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var rec Record
	var parentID sql.NullString
	var updJSON, snapJSON, createdStr string
	if err := row.Scan(&rec.Seq, &rec.VersionID, &parentID, &updJSON, &snapJSON, &createdStr); err != nil {
		return Record{}, err
	}
	if parentID.Valid {
		rec.ParentID = parentID.String
	}
	u, err := decode(updJSON)
	if err != nil {
		return Record{}, fmt.Errorf("unmarshal update: %w", err)
	}
	fields, err := decode(snapJSON)
	if err != nil {
		return Record{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	rec.Update = u
	rec.Snapshot = state.NewSnapshot(fields)
	rec.Phase = rec.Snapshot.Phase()
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return rec, nil
}

// Current reads the active version.
func (j *Journal) Current() (Record, error) {
	var versionID string
	err := j.db.QueryRow(`SELECT version_id FROM active_version WHERE id = 1`).Scan(&versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("get active: %w", ErrVersionNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get active: %w", err)
	}
	return j.Version(versionID)
}

// Version retrieves a specific version by id.
func (j *Journal) Version(id string) (Record, error) {
	rec, err := scanRecord(j.db.QueryRow(selectVersion+` WHERE version_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("get version %s: %w", id, ErrVersionNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get version %s: %w", id, err)
	}
	return rec, nil
}

// List returns the most recent versions, newest first.
func (j *Journal) List(limit int) ([]Record, error) {
	return j.query(selectVersion+` ORDER BY seq DESC LIMIT ?`, limit)
}

// History returns every version, oldest first.
func (j *Journal) History() ([]Record, error) {
	return j.query(selectVersion + ` ORDER BY seq ASC`)
}

func (j *Journal) query(q string, args ...any) ([]Record, error) {
	rows, err := j.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion read

// #region rollback

// Rollback sets the active pointer to a previous version. The next Commit
// is parented on it, so later history branches from there.
func (j *Journal) Rollback(targetVersionID string) (Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rec, err := j.Version(targetVersionID)
	if err != nil {
		return Record{}, err
	}
	_, err = j.db.Exec(`UPDATE active_version SET version_id = ? WHERE id = 1`, targetVersionID)
	if err != nil {
		return Record{}, fmt.Errorf("rollback: %w", err)
	}
	return rec, nil
}

// Restore rolls back to id and replays that version's snapshot into store.
// Handle fields are not journaled and keep their live value.
func (j *Journal) Restore(store *state.Store, id string) error {
	rec, err := j.Rollback(id)
	if err != nil {
		return err
	}
	u := rec.Snapshot.Fields()
	for f := range u {
		if !journaled(f) {
			delete(u, f)
		}
	}
	store.Set(u)
	return nil
}

// #endregion rollback

// #region recorder

// Recorder returns a store listener that commits each notification's
// changed fields. A notification that changed nothing is not journaled.
// Commit failures are logged, never raised into the store.
func (j *Journal) Recorder(logger *slog.Logger) state.Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next, prev state.Snapshot) {
		changed := next.Diff(prev)
		u := make(state.Update, len(changed))
		for _, f := range changed {
			if journaled(f) {
				u[f] = next.Get(f)
			}
		}
		if len(u) == 0 {
			return
		}
		rec, err := j.Commit(u, next)
		if err != nil {
			logger.Error("[JOURNAL] commit failed", "error", err)
			return
		}
		logger.Debug("[JOURNAL] committed", "version", rec.VersionID, "fields", len(u))
	}
}

// #endregion recorder

// #region encoding

func journaled(f state.Field) bool {
	return state.Schema[f].Kind != state.KindHandle
}

// encode writes u as JSON. Handle fields are dropped, or written as null
// when keepHandles is set so a decoded snapshot keeps its full key set.
func encode(u state.Update, keepHandles bool) (string, error) {
	m := make(map[string]any, len(u))
	for k, v := range u {
		switch {
		case journaled(k):
			m[string(k)] = v
		case keepHandles:
			m[string(k)] = nil
		}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decode(s string) (state.Update, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	u := make(state.Update, len(m))
	for k, v := range m {
		f := state.Field(k)
		cv, err := state.Coerce(f, v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		u[f] = cv
	}
	return u, nil
}

// #endregion encoding
