package logging

import (
	"bytes"
	"database/sql"
	"log/slog"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// #region helpers
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`CREATE TABLE decision_log (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		version_id TEXT,
		component  TEXT NOT NULL,
		target     TEXT NOT NULL,
		action     TEXT NOT NULL,
		reason     TEXT,
		created_at TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// #endregion helpers

// #region log-decision-tests
func TestLogDecision_Success(t *testing.T) {
	db := setupDB(t)

	entry := DecisionEntry{
		VersionID: "v1",
		Component: "panels",
		Target:    "welcome",
		Action:    "show",
		Reason:    "welcome",
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := LogDecision(db, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := RecentDecisions(db, 10)
	if err != nil {
		t.Fatalf("RecentDecisions: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 row, got %d", len(got))
	}
	if got[0].VersionID != "v1" || got[0].Target != "welcome" || got[0].Action != "show" {
		t.Errorf("unexpected row %+v", got[0])
	}
	if !got[0].CreatedAt.Equal(entry.CreatedAt) {
		t.Errorf("expected created_at %v, got %v", entry.CreatedAt, got[0].CreatedAt)
	}
}

func TestLogDecision_ZeroCreatedAt(t *testing.T) {
	db := setupDB(t)

	before := time.Now().UTC()
	if err := LogDecision(db, DecisionEntry{Component: "music", Target: "menu-theme", Action: "play"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := RecentDecisions(db, 1)
	if got[0].CreatedAt.Before(before) {
		t.Error("expected auto-filled created_at to be >= test start time")
	}
}

func TestLogDecision_EmptyOptionalFields(t *testing.T) {
	db := setupDB(t)

	if err := LogDecision(db, DecisionEntry{Component: "sfx", Target: "phone-ring", Action: "play"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var versionID, reason sql.NullString
	db.QueryRow("SELECT version_id, reason FROM decision_log").Scan(&versionID, &reason)
	if versionID.Valid {
		t.Errorf("expected NULL version_id, got %q", versionID.String)
	}
	if reason.Valid {
		t.Errorf("expected NULL reason, got %q", reason.String)
	}
}

func TestLogDecision_ClosedDB(t *testing.T) {
	db := setupDB(t)
	db.Close()

	err := LogDecision(db, DecisionEntry{Component: "panels", Target: "hud", Action: "show"})
	if err == nil {
		t.Fatal("expected error on closed db")
	}
}

// #endregion log-decision-tests

// #region decision-log-tests
func TestDecisionLog_RecordStampsVersion(t *testing.T) {
	db := setupDB(t)
	version := "a"
	l := NewDecisionLog(db, func() string { return version }, nil)

	l.Record("panels", "hud", "show", "hud")
	version = "b"
	l.Record("panels", "hud", "hide", "no rule matched")

	got, err := l.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].Action != "hide" || got[0].VersionID != "b" {
		t.Errorf("expected newest first, got %+v", got[0])
	}
	if got[1].VersionID != "a" {
		t.Errorf("expected version a, got %q", got[1].VersionID)
	}
}

func TestDecisionLog_FailureIsLogged(t *testing.T) {
	db := setupDB(t)
	var buf bytes.Buffer
	l := NewDecisionLog(db, nil, slog.New(slog.NewTextHandler(&buf, nil)))
	db.Close()

	l.Record("music", "menu-theme", "play", "")
	if !strings.Contains(buf.String(), "[DECISION] write failed") {
		t.Fatalf("expected failure log, got %q", buf.String())
	}
}

func TestDecisionsForVersion(t *testing.T) {
	db := setupDB(t)
	for _, e := range []DecisionEntry{
		{VersionID: "a", Component: "panels", Target: "welcome", Action: "show"},
		{VersionID: "b", Component: "panels", Target: "welcome", Action: "hide"},
		{VersionID: "a", Component: "music", Target: "ambient-room", Action: "play"},
	} {
		if err := LogDecision(db, e); err != nil {
			t.Fatalf("LogDecision: %v", err)
		}
	}

	got, err := DecisionsForVersion(db, "a")
	if err != nil {
		t.Fatalf("DecisionsForVersion: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].Component != "panels" || got[1].Component != "music" {
		t.Errorf("expected oldest first, got %+v", got)
	}
}

// #endregion decision-log-tests

// #region logger-tests
func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseLevel(%q) err = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("warn", &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("[TEST] hidden")
	logger.Warn("[TEST] shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output %q", buf.String())
	}
	if _, err := New("loud", &buf); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

// #endregion logger-tests
