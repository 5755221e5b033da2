// ABOUTME: Session metadata model with write-through cache over metadata.json.
// ABOUTME: Cache is the fast path; the filesystem copy is authoritative on every miss.

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/2389/wagate/internal/registry"
)

const metadataFilename = "metadata.json"

// Metadata is the durable descriptor of one session, stored next to the
// credential files in the per-instance directory.
type Metadata struct {
	TenantID        string     `json:"tenantId"`
	InstanceID      string     `json:"instanceId"`
	AuthMethod      string     `json:"authMethod"`
	PhoneNumber     string     `json:"phoneNumber,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	LastConnectedAt *time.Time `json:"lastConnectedAt,omitempty"`
}

// LastActivity returns lastConnectedAt when set, otherwise createdAt. This
// is the timestamp the retention sweep compares against.
func (m *Metadata) LastActivity() time.Time {
	if m.LastConnectedAt != nil {
		return *m.LastConnectedAt
	}
	return m.CreatedAt
}

// SaveMetadata writes metadata for a key through the cache to disk. The
// instance directory must already exist. CreatedAt is preserved from an
// existing record so repeated initializations never reset the session's age.
func (s *Store) SaveMetadata(key registry.Key, meta *Metadata) error {
	unlock := s.lockKey(key)
	defer unlock()

	meta.TenantID = key.TenantID
	meta.InstanceID = key.InstanceID
	if existing, err := s.readMetadataFile(key); err == nil && !existing.CreatedAt.IsZero() {
		meta.CreatedAt = existing.CreatedAt
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session metadata for %s: %w", key, err)
	}

	path := filepath.Join(s.instanceDir(key), metadataFilename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing session metadata for %s: %w", key, err)
	}

	s.cache.Put(key.String(), meta)
	s.logger.Debug("session metadata saved",
		"tenant_id", key.TenantID, "instance_id", key.InstanceID)
	return nil
}

// GetMetadata loads metadata for a key: cache first, filesystem on a miss.
// A filesystem hit repopulates the cache. Returns nil when no metadata
// exists.
func (s *Store) GetMetadata(key registry.Key) (*Metadata, error) {
	if meta := s.cache.Get(key.String()); meta != nil {
		return meta, nil
	}

	meta, err := s.readMetadataFile(key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading session metadata for %s: %w", key, err)
	}

	s.cache.Put(key.String(), meta)
	return meta, nil
}

// UpdateLastConnected stamps lastConnectedAt on an existing session's
// metadata. Missing metadata is a no-op: there is nothing to stamp.
func (s *Store) UpdateLastConnected(key registry.Key) error {
	meta, err := s.GetMetadata(key)
	if err != nil {
		return err
	}
	if meta == nil {
		return nil
	}

	now := time.Now()
	meta.LastConnectedAt = &now
	return s.SaveMetadata(key, meta)
}

// readMetadataFile reads metadata.json directly, bypassing the cache.
func (s *Store) readMetadataFile(key registry.Key) (*Metadata, error) {
	path := filepath.Join(s.instanceDir(key), metadataFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &meta, nil
}
