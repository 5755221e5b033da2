// ABOUTME: Best-effort session backup collaborator interface and directory-copy implementation.
// ABOUTME: Restore is the last resort when local auth-state initialization exhausts its retries.

package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/2389/wagate/internal/registry"
)

// Backup is the optional collaborator that keeps a second copy of session
// directories. Both operations are best-effort: callers log failures and
// move on.
type Backup interface {
	// Backup copies the session directory for key to the backup location.
	Backup(ctx context.Context, key registry.Key, sourceDir string) error

	// Restore copies the backed-up session for key into destDir. Returns
	// false without error when no backup exists.
	Restore(ctx context.Context, key registry.Key, destDir string) (bool, error)
}

// DirBackup implements Backup with plain directory copies under a root.
type DirBackup struct {
	root   string
	logger *slog.Logger
}

// NewDirBackup creates a DirBackup rooted at dir.
func NewDirBackup(dir string, logger *slog.Logger) *DirBackup {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirBackup{
		root:   dir,
		logger: logger.With("component", "session-backup"),
	}
}

// Backup copies every regular file in sourceDir to the backup directory.
func (b *DirBackup) Backup(ctx context.Context, key registry.Key, sourceDir string) error {
	destDir := filepath.Join(b.root, key.String())
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("creating backup directory: %w", err)
	}

	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return fmt.Errorf("reading session directory: %w", err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() {
			continue
		}
		src := filepath.Join(sourceDir, entry.Name())
		dst := filepath.Join(destDir, entry.Name())
		if err := copyFile(src, dst); err != nil {
			return fmt.Errorf("copying %s: %w", entry.Name(), err)
		}
	}

	b.logger.Info("session backed up",
		"tenant_id", key.TenantID, "instance_id", key.InstanceID)
	return nil
}

// Restore copies a backed-up session into destDir.
func (b *DirBackup) Restore(ctx context.Context, key registry.Key, destDir string) (bool, error) {
	srcDir := filepath.Join(b.root, key.String())
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("reading backup directory: %w", err)
	}
	if len(entries) == 0 {
		return false, nil
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return false, fmt.Errorf("creating session directory: %w", err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if entry.IsDir() {
			continue
		}
		src := filepath.Join(srcDir, entry.Name())
		dst := filepath.Join(destDir, entry.Name())
		if err := copyFile(src, dst); err != nil {
			return false, fmt.Errorf("restoring %s: %w", entry.Name(), err)
		}
	}

	b.logger.Info("session restored from backup",
		"tenant_id", key.TenantID, "instance_id", key.InstanceID)
	return true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
