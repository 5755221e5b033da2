// ABOUTME: Typed errors for session storage failures.
// ABOUTME: StorageError is fatal for one instance; ErrNoWritableRoot is fatal at startup.

package session

import (
	"errors"
	"fmt"

	"github.com/2389/wagate/internal/registry"
)

// ErrNoWritableRoot means no storage root candidate passed the write probe.
// In production this must abort startup: a process with no verified-writable
// session storage would pair devices it can never resume.
var ErrNoWritableRoot = errors.New("no writable session storage root")

// StorageError means credential storage for one instance could not be
// initialized after all retries and the backup restore. It is fatal for the
// affected instance only, never for the process.
type StorageError struct {
	Key registry.Key
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("session storage failed for %s: %v", e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
