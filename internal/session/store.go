// ABOUTME: Durable session storage: per-instance credential directories on a verified root.
// ABOUTME: Retrying auth-state initialization, retention sweeps, and session health checks.

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/2389/wagate/internal/registry"
	"github.com/2389/wagate/internal/wa"
)

const (
	// credsFilename is the SDK's credential bundle file inside a session dir.
	credsFilename = "creds.json"

	// initAttempts is how many times auth-state initialization is tried
	// before falling back to a backup restore.
	initAttempts = 3
)

// Config configures a Store.
type Config struct {
	// Root is the verified-writable storage root from ResolveStorageRoot.
	Root string

	// Loader is the SDK's file-based credential loader.
	Loader wa.AuthLoader

	// Backup is the optional best-effort backup collaborator.
	Backup Backup

	// MetadataTTL bounds the metadata cache. Zero means one hour.
	MetadataTTL time.Duration

	Logger *slog.Logger

	// Sleep is the wait between initialization attempts; tests inject a
	// no-op. Nil means time.Sleep.
	Sleep func(time.Duration)
}

// Store persists per-instance credential bundles and session metadata under
// a verified-writable root, one subdirectory per instance key. Writes to
// different instances never conflict; writes to one instance's metadata are
// serialized by a per-key lock.
type Store struct {
	root   string
	loader wa.AuthLoader
	backup Backup
	cache  *metaCache
	logger *slog.Logger
	sleep  func(time.Duration)

	mu       sync.Mutex
	keyLocks map[string]*sync.Mutex
}

// NewStore creates a Store over cfg.Root. The credential loader is only
// needed for InitAuthState; maintenance-only callers (the cleanup CLI) may
// leave it nil.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("session store requires a storage root")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.MetadataTTL
	if ttl == 0 {
		ttl = time.Hour
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	return &Store{
		root:     cfg.Root,
		loader:   cfg.Loader,
		backup:   cfg.Backup,
		cache:    newMetaCache(ttl),
		logger:   logger.With("component", "session"),
		sleep:    sleep,
		keyLocks: make(map[string]*sync.Mutex),
	}, nil
}

// Close stops the metadata cache janitor.
func (s *Store) Close() {
	s.cache.Close()
}

// Root returns the resolved storage root.
func (s *Store) Root() string {
	return s.root
}

// instanceDir returns the per-instance session directory for a key.
func (s *Store) instanceDir(key registry.Key) string {
	return filepath.Join(s.root, key.String())
}

// lockKey serializes metadata writes for one key.
func (s *Store) lockKey(key registry.Key) func() {
	s.mu.Lock()
	l, ok := s.keyLocks[key.String()]
	if !ok {
		l = &sync.Mutex{}
		s.keyLocks[key.String()] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// InitAuthState initializes credential storage for a key and loads the
// SDK's auth state from it. Each of the three attempts re-verifies the root
// directory, creates the per-instance directory, proves write permission,
// and delegates to the credential loader; attempts are spaced attempt×1s
// apart. When all attempts fail, a best-effort restore from the backup
// collaborator is tried before giving up with a *StorageError.
func (s *Store) InitAuthState(ctx context.Context, key registry.Key) (*wa.AuthState, wa.SaveCredsFunc, error) {
	if s.loader == nil {
		return nil, nil, fmt.Errorf("session store has no credential loader")
	}

	dir := s.instanceDir(key)
	logger := s.logger.With("tenant_id", key.TenantID, "instance_id", key.InstanceID)

	var lastErr error
	for attempt := 1; attempt <= initAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		state, save, err := s.tryInitAuthState(key, dir)
		if err == nil {
			logger.Info("auth state initialized", "attempt", attempt, "session_dir", dir)
			return state, save, nil
		}

		lastErr = err
		logger.Error("auth state initialization attempt failed",
			"attempt", attempt,
			"max_attempts", initAttempts,
			"session_dir", dir,
			"error", err)

		if attempt < initAttempts {
			s.sleep(time.Duration(attempt) * time.Second)
		}
	}

	// All filesystem attempts failed; try restoring from backup.
	if s.backup != nil {
		logger.Warn("all auth state attempts failed, trying backup restore")
		restored, err := s.backup.Restore(ctx, key, dir)
		if err != nil {
			logger.Error("backup restore failed", "error", err)
		} else if restored {
			state, save, err := s.loader(dir)
			if err == nil {
				logger.Info("session restored from backup")
				return state, save, nil
			}
			logger.Error("restored session is unusable", "error", err)
			lastErr = err
		}
	}

	logger.Error("auth state initialization exhausted all attempts",
		"session_dir", dir, "error", lastErr)
	return nil, nil, &StorageError{
		Key: key,
		Err: fmt.Errorf("after %d attempts: %w", initAttempts, lastErr),
	}
}

// tryInitAuthState performs one initialization attempt.
func (s *Store) tryInitAuthState(key registry.Key, dir string) (*wa.AuthState, wa.SaveCredsFunc, error) {
	// The root can disappear between calls (unmounted disk); re-verify.
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating session root: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating session directory: %w", err)
	}

	if err := probeWritable(dir); err != nil {
		return nil, nil, fmt.Errorf("verifying session directory: %w", err)
	}

	state, save, err := s.loader(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("loading credentials: %w", err)
	}
	return state, save, nil
}

// SessionExists reports whether a readable credential file exists for a key.
func (s *Store) SessionExists(key registry.Key) bool {
	f, err := os.Open(filepath.Join(s.instanceDir(key), credsFilename))
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// RemoveSession deletes the cache entry and the entire per-instance
// directory. Used on explicit logout.
func (s *Store) RemoveSession(key registry.Key) error {
	unlock := s.lockKey(key)
	defer unlock()

	s.cache.Delete(key.String())
	if err := os.RemoveAll(s.instanceDir(key)); err != nil {
		return fmt.Errorf("removing session directory for %s: %w", key, err)
	}

	s.logger.Info("session removed",
		"tenant_id", key.TenantID, "instance_id", key.InstanceID)
	return nil
}

// ListTenantSessions returns the instance IDs of a tenant's sessions on disk.
func (s *Store) ListTenantSessions(tenantID string) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("reading session root: %w", err)
	}

	prefix := tenantID + "_"
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			ids = append(ids, strings.TrimPrefix(entry.Name(), prefix))
		}
	}
	return ids, nil
}

// CleanupOldSessions deletes session directories whose last activity
// (lastConnectedAt, falling back to createdAt) is older than thresholdDays.
// Directories without parseable metadata are skipped. Returns the number of
// sessions removed; a second run with no new activity removes zero.
func (s *Store) CleanupOldSessions(thresholdDays int) (int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, fmt.Errorf("reading session root: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -thresholdDays)
	removed := 0

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		dir := filepath.Join(s.root, entry.Name())
		meta, err := readMetadataAt(dir)
		if err != nil {
			// No metadata or unparseable: not ours to judge, skip.
			continue
		}

		if meta.LastActivity().Before(cutoff) {
			if err := os.RemoveAll(dir); err != nil {
				s.logger.Error("failed to remove stale session",
					"session_dir", dir, "error", err)
				continue
			}
			s.cache.Delete(entry.Name())
			removed++
			s.logger.Info("stale session removed",
				"session_dir", dir,
				"last_activity", meta.LastActivity())
		}
	}

	s.logger.Info("session cleanup completed",
		"removed", removed, "threshold_days", thresholdDays)
	return removed, nil
}

// readMetadataAt reads metadata.json from an arbitrary session directory.
func readMetadataAt(dir string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, metadataFilename))
	if err != nil {
		return nil, err
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Stats summarizes the sessions on disk.
type Stats struct {
	TotalSessions int
	ByTenant      map[string]int
	OldestCreated *time.Time
	NewestCreated *time.Time
}

// GetStats walks the session root and aggregates per-tenant counts and
// creation time bounds.
func (s *Store) GetStats() (*Stats, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("reading session root: %w", err)
	}

	stats := &Stats{ByTenant: make(map[string]int)}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		stats.TotalSessions++

		tenant, _, found := strings.Cut(entry.Name(), "_")
		if found {
			stats.ByTenant[tenant]++
		}

		meta, err := readMetadataAt(filepath.Join(s.root, entry.Name()))
		if err != nil {
			continue
		}
		created := meta.CreatedAt
		if stats.OldestCreated == nil || created.Before(*stats.OldestCreated) {
			t := created
			stats.OldestCreated = &t
		}
		if stats.NewestCreated == nil || created.After(*stats.NewestCreated) {
			t := created
			stats.NewestCreated = &t
		}
	}
	return stats, nil
}

// Health describes the current state of session storage.
type Health struct {
	Root     string
	Writable bool
	Error    string
}

// CheckHealth re-probes the storage root. Safe to poll.
func (s *Store) CheckHealth() Health {
	h := Health{Root: s.root}
	if err := probeWritable(s.root); err != nil {
		h.Error = err.Error()
		return h
	}
	h.Writable = true
	return h
}
