package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/amirk1998/daybook/internal/database"
	"github.com/amirk1998/daybook/internal/security"
)

func setupManager(t *testing.T) (*Manager, string) {
	t.Helper()
	db, err := database.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	dir := filepath.Join(t.TempDir(), "backups")
	m, err := NewManager(db, dir, security.DeriveKey("backup-secret"), 7)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m, dir
}

func TestManager_CreateVerifyRestore(t *testing.T) {
	m, dir := setupManager(t)

	path, err := m.CreateBackup(context.Background())
	if err != nil {
		t.Fatalf("CreateBackup failed: %v", err)
	}
	if err := m.VerifyBackup(path); err != nil {
		t.Fatalf("VerifyBackup failed: %v", err)
	}

	restored := filepath.Join(dir, "restored.db")
	if err := m.Restore(path, restored); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	info, err := os.Stat(restored)
	if err != nil || info.Size() == 0 {
		t.Fatalf("restored database missing or empty: %v", err)
	}

	if err := m.Restore(path, restored); err == nil {
		t.Errorf("Restore must refuse to overwrite an existing file")
	}
}

func TestManager_VerifyDetectsTampering(t *testing.T) {
	m, _ := setupManager(t)

	path, err := m.CreateBackup(context.Background())
	if err != nil {
		t.Fatalf("CreateBackup failed: %v", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	f.Write([]byte("junk"))
	f.Close()

	if err := m.VerifyBackup(path); err == nil {
		t.Errorf("expected checksum mismatch")
	}
}

func TestManager_CleanOldBackupsKeepsForeignFiles(t *testing.T) {
	m, dir := setupManager(t)

	old := filepath.Join(dir, filePrefix+"old"+fileSuffix)
	foreign := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, foreign} {
		if err := os.WriteFile(p, []byte("x"), 0600); err != nil {
			t.Fatalf("write: %v", err)
		}
		past := time.Now().AddDate(0, 0, -30)
		os.Chtimes(p, past, past)
	}

	deleted, err := m.CleanOldBackups()
	if err != nil {
		t.Fatalf("CleanOldBackups failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted file, got %d", deleted)
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Errorf("unrelated file should survive: %v", err)
	}
}
