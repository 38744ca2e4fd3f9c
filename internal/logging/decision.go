package logging

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// #region decision-entry
// DecisionEntry is a single row in the decision_log table: one command an
// orchestration listener issued to the system it owns.
type DecisionEntry struct {
	ID        int64
	VersionID string
	Component string // "panels" | "input" | "music" | "dialog" | "sfx"
	Target    string
	Action    string // "show" | "hide" | "play" | "stop" | "pause" | "resume" | "complete"
	Reason    string
	CreatedAt time.Time
}

// #endregion decision-entry

// #region log-decision
// LogDecision writes an entry to the decision_log table.
func LogDecision(db *sql.DB, entry DecisionEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO decision_log (version_id, component, target, action, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		nullIfEmpty(entry.VersionID),
		entry.Component,
		entry.Target,
		entry.Action,
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// RecentDecisions returns the newest entries first.
func RecentDecisions(db *sql.DB, limit int) ([]DecisionEntry, error) {
	return queryDecisions(db,
		`SELECT id, version_id, component, target, action, reason, created_at
		 FROM decision_log ORDER BY id DESC LIMIT ?`, limit)
}

// DecisionsForVersion returns the entries stamped with versionID, oldest
// first.
func DecisionsForVersion(db *sql.DB, versionID string) ([]DecisionEntry, error) {
	return queryDecisions(db,
		`SELECT id, version_id, component, target, action, reason, created_at
		 FROM decision_log WHERE version_id = ? ORDER BY id ASC`, versionID)
}

func queryDecisions(db *sql.DB, q string, args ...any) ([]DecisionEntry, error) {
	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var out []DecisionEntry
	for rows.Next() {
		var e DecisionEntry
		var versionID, reason sql.NullString
		var createdStr string
		if err := rows.Scan(&e.ID, &versionID, &e.Component, &e.Target, &e.Action, &reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		e.VersionID = versionID.String
		e.Reason = reason.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion log-decision

// #region decision-log
// DecisionLog records listener commands into decision_log. It satisfies
// the orchestrator's Recorder interface.
type DecisionLog struct {
	db      *sql.DB
	version func() string
	logger  *slog.Logger
}

// NewDecisionLog writes to db, which must already carry the journal schema.
// version, if non-nil, stamps each row with the active journal version.
func NewDecisionLog(db *sql.DB, version func() string, logger *slog.Logger) *DecisionLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &DecisionLog{db: db, version: version, logger: logger}
}

// Record writes one decision. Failures are logged and dropped.
func (l *DecisionLog) Record(component, target, action, reason string) {
	entry := DecisionEntry{
		Component: component,
		Target:    target,
		Action:    action,
		Reason:    reason,
	}
	if l.version != nil {
		entry.VersionID = l.version()
	}
	if err := LogDecision(l.db, entry); err != nil {
		l.logger.Error("[DECISION] write failed", "component", component, "target", target, "error", err)
	}
}

// Recent returns the newest decisions first.
func (l *DecisionLog) Recent(limit int) ([]DecisionEntry, error) {
	return RecentDecisions(l.db, limit)
}

// #endregion decision-log

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
