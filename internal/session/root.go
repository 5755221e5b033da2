// ABOUTME: Storage root resolution with real write probes over an ordered candidate list.
// ABOUTME: Fail-fast when nothing is writable; warn when production lands off the persistent disk.

package session

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// probeFilename is the scratch file used for write-read-delete probes.
const probeFilename = ".write-test"

// Candidates builds the ordered storage root candidate list: the preferred
// configured path, a sessions subdirectory on the known persistent mount, a
// local development path, and (outside production) a temp path. Sessions in
// a temp dir are lost on restart, so that candidate never applies in
// production.
func Candidates(preferred, persistentMount string, production bool) []string {
	var candidates []string
	if preferred != "" {
		candidates = append(candidates, preferred)
	}
	if persistentMount != "" {
		mounted := filepath.Join(persistentMount, "sessions")
		if mounted != preferred {
			candidates = append(candidates, mounted)
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, "sessions"))
	}
	if !production {
		candidates = append(candidates, filepath.Join(os.TempDir(), "wagate-sessions"))
	}
	return candidates
}

// ResolveStorageRoot tries each candidate in order: create the directory,
// then prove writability with a real write-read-delete probe. The first
// candidate that passes wins. When every candidate fails it returns
// ErrNoWritableRoot — the caller is expected to treat that as fatal at
// startup.
//
// In production a warning is logged when the winner is not the preferred
// path, since anything else is likely non-persistent.
func ResolveStorageRoot(logger *slog.Logger, candidates []string, production bool) (string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "session")

	for i, candidate := range candidates {
		if err := os.MkdirAll(candidate, 0o755); err != nil {
			logger.Debug("session root candidate not creatable",
				"path", candidate, "error", err)
			continue
		}

		if err := probeWritable(candidate); err != nil {
			logger.Debug("session root candidate failed write probe",
				"path", candidate, "error", err)
			continue
		}

		preferred := i == 0
		if production && !preferred {
			logger.Warn("using non-preferred session storage in production; sessions may not survive a restart",
				"path", candidate,
				"preferred", candidates[0])
		}

		logger.Info("session storage root resolved",
			"path", candidate,
			"preferred", preferred,
			"production", production)
		return candidate, nil
	}

	return "", fmt.Errorf("%w: tried %s", ErrNoWritableRoot, strings.Join(candidates, ", "))
}

// probeWritable performs a write-read-delete round trip in dir. A mount that
// accepts opens but corrupts or drops writes fails here, not at pairing time.
func probeWritable(dir string) error {
	probe := filepath.Join(dir, probeFilename)
	want := []byte("probe")

	if err := os.WriteFile(probe, want, 0o644); err != nil {
		return fmt.Errorf("writing probe file: %w", err)
	}

	got, err := os.ReadFile(probe)
	if err != nil {
		os.Remove(probe)
		return fmt.Errorf("reading probe file back: %w", err)
	}
	if !bytes.Equal(got, want) {
		os.Remove(probe)
		return fmt.Errorf("probe file content mismatch")
	}

	if err := os.Remove(probe); err != nil {
		return fmt.Errorf("removing probe file: %w", err)
	}
	return nil
}
