package backup

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/amirk1998/daybook/internal/security"
	"github.com/amirk1998/daybook/pkg/errors"
)

const (
	filePrefix = "daybook_"
	fileSuffix = ".db.enc.gz"
)

type Manager struct {
	db            *sql.DB
	backupDir     string
	encryptor     *security.FieldEncryptor
	retentionDays int
	now           func() time.Time
}

// NewManager creates a new backup manager. key must be 32 bytes, see
// security.KeyManager.BackupKey.
func NewManager(db *sql.DB, backupDir string, key []byte, retentionDays int) (*Manager, error) {
	encryptor, err := security.NewFieldEncryptor(key)
	if err != nil {
		return nil, fmt.Errorf("failed to init backup encryption: %w", err)
	}

	if err := os.MkdirAll(backupDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	return &Manager{
		db:            db,
		backupDir:     backupDir,
		encryptor:     encryptor,
		retentionDays: retentionDays,
		now:           time.Now,
	}, nil
}

// CreateBackup snapshots the database with VACUUM INTO, then encrypts,
// compresses and checksums the snapshot. It returns the backup path.
func (m *Manager) CreateBackup(ctx context.Context) (string, error) {
	timestamp := m.now().Format("20060102_150405.000")
	snapshot := filepath.Join(m.backupDir, filePrefix+timestamp+".db")

	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, snapshot); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrBackupFailed, err)
	}
	defer os.Remove(snapshot)

	backupPath := strings.TrimSuffix(snapshot, ".db") + fileSuffix
	if err := m.encryptAndCompressFile(snapshot, backupPath); err != nil {
		os.Remove(backupPath)
		return "", fmt.Errorf("failed to encrypt backup: %w", err)
	}

	if err := m.createChecksumFile(backupPath); err != nil {
		return "", fmt.Errorf("failed to create checksum: %w", err)
	}

	fmt.Printf("[Backup] Created: %s\n", backupPath)
	return backupPath, nil
}

func (m *Manager) encryptAndCompressFile(srcPath, dstPath string) error {
	plaintext, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("failed to read source file: %w", err)
	}

	sealed, err := m.encryptor.Seal(plaintext)
	if err != nil {
		return err
	}

	dstFile, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer dstFile.Close()

	gzWriter := gzip.NewWriter(dstFile)
	if _, err := gzWriter.Write(sealed); err != nil {
		gzWriter.Close()
		return fmt.Errorf("failed to write compressed data: %w", err)
	}
	return gzWriter.Close()
}

func (m *Manager) createChecksumFile(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}

	hash := sha256.Sum256(data)
	return os.WriteFile(filePath+".sha256", []byte(fmt.Sprintf("%x", hash)), 0600)
}

// VerifyBackup verifies backup integrity
func (m *Manager) VerifyBackup(backupPath string) error {
	storedChecksum, err := os.ReadFile(backupPath + ".sha256")
	if err != nil {
		return fmt.Errorf("failed to read checksum file: %w", err)
	}

	data, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("failed to read backup file: %w", err)
	}

	hash := sha256.Sum256(data)
	if fmt.Sprintf("%x", hash) != strings.TrimSpace(string(storedChecksum)) {
		return fmt.Errorf("checksum mismatch: backup file may be corrupted")
	}

	return nil
}

// Restore verifies, decrypts and decompresses backupPath into dstPath.
// dstPath must not exist; the running database is never overwritten.
func (m *Manager) Restore(backupPath, dstPath string) error {
	if err := m.VerifyBackup(backupPath); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrRestoreFailed, err)
	}

	compressed, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("failed to read backup file: %w", err)
	}

	gzReader, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrRestoreFailed, err)
	}
	defer gzReader.Close()

	sealed, err := io.ReadAll(gzReader)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrRestoreFailed, err)
	}

	plaintext, err := m.encryptor.Open(sealed)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrRestoreFailed, err)
	}

	dst, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("failed to create restore target: %w", err)
	}
	defer dst.Close()

	if _, err := dst.Write(plaintext); err != nil {
		return fmt.Errorf("failed to write restore target: %w", err)
	}
	return nil
}

// CleanOldBackups removes backups older than the retention period and
// returns how many files were deleted.
func (m *Manager) CleanOldBackups() (int, error) {
	cutoffTime := m.now().AddDate(0, 0, -m.retentionDays)

	entries, err := os.ReadDir(m.backupDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read backup directory: %w", err)
	}

	deletedCount := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), filePrefix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoffTime) {
			filePath := filepath.Join(m.backupDir, entry.Name())
			if err := os.Remove(filePath); err != nil {
				fmt.Printf("[Backup] Warning: failed to delete %s: %v\n", filePath, err)
				continue
			}
			deletedCount++
		}
	}

	if deletedCount > 0 {
		fmt.Printf("[Backup] Cleaned %d old backup files\n", deletedCount)
	}

	return deletedCount, nil
}

// StartAutomatedBackups starts automated backup scheduler
func (m *Manager) StartAutomatedBackups(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fmt.Printf("[Backup] Automated backups started (interval: %v)\n", interval)

	for {
		select {
		case <-ctx.Done():
			fmt.Println("[Backup] Stopping automated backups")
			return
		case <-ticker.C:
			fmt.Println("[Backup] Starting scheduled backup...")
			if _, err := m.CreateBackup(ctx); err != nil {
				fmt.Printf("[Backup] Scheduled backup failed: %v\n", err)
			}

			if _, err := m.CleanOldBackups(); err != nil {
				fmt.Printf("[Backup] Cleanup failed: %v\n", err)
			}
		}
	}
}
