package audit

import (
	"bufio"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/amirk1998/daybook/internal/database"
)

func setupTestLogger(t *testing.T, async bool) (*Logger, string) {
	t.Helper()
	db, err := database.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	path := filepath.Join(t.TempDir(), "logs", "audit.log")
	logger, err := NewLogger(db, path, async)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger, path
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()
	n := 0
	s := bufio.NewScanner(f)
	for s.Scan() {
		n++
	}
	return n
}

func seedUser(t *testing.T, db *sql.DB) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
        VALUES (1, 'alice', 'alice@x.com', 'h', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func TestLogger_WritesTableAndFile(t *testing.T) {
	logger, path := setupTestLogger(t, false)
	seedUser(t, logger.db)

	logger.Record(UserEvent(1, ActionLogin, "authentication", true))
	logger.Record(UserEvent(1, ActionLogin, "authentication", false))

	events, err := logger.QueryLogs(QueryFilters{Action: ActionLogin})
	if err != nil {
		t.Fatalf("QueryLogs failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	failed := false
	failures, _ := logger.QueryLogs(QueryFilters{Success: &failed})
	if len(failures) != 1 || failures[0].Level != LevelWarning {
		t.Errorf("expected one warning-level failure, got %+v", failures)
	}

	if n := countLines(t, path); n != 2 {
		t.Errorf("expected 2 JSON lines, got %d", n)
	}
}

func TestLogger_AsyncFlushesOnClose(t *testing.T) {
	logger, path := setupTestLogger(t, true)

	for i := 0; i < 10; i++ {
		logger.Record(&Event{Action: ActionBackup, Resource: "database", Success: true})
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if n := countLines(t, path); n != 10 {
		t.Errorf("expected 10 flushed events, got %d", n)
	}
}

func TestMonitor_FlagsRepeatedPinFailures(t *testing.T) {
	logger, _ := setupTestLogger(t, false)
	seedUser(t, logger.db)

	for i := 0; i < 5; i++ {
		logger.Record(UserEvent(1, ActionPinVerify, "diary", false))
	}
	logger.Record(UserEvent(1, ActionLogin, "authentication", false))

	monitor := NewMonitor(logger)

	flagged, err := monitor.DetectFailedPinVerifications()
	if err != nil {
		t.Fatalf("DetectFailedPinVerifications failed: %v", err)
	}
	if len(flagged) != 1 || flagged[0] != 1 {
		t.Errorf("expected user 1 flagged, got %v", flagged)
	}

	flagged, _ = monitor.DetectFailedLogins()
	if len(flagged) != 0 {
		t.Errorf("one failed login should not be flagged, got %v", flagged)
	}

	alerts, _ := logger.QueryLogs(QueryFilters{Action: ActionFailedPinThreshold})
	if len(alerts) != 1 || alerts[0].Level != LevelCritical {
		t.Errorf("expected one critical alert, got %+v", alerts)
	}
}
