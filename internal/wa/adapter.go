// ABOUTME: SDK adapter registration, database/sql-driver style.
// ABOUTME: The adapter package registers itself from init; serve fails fast when none is linked.

package wa

import (
	"errors"
	"sync"
)

// Adapter bundles what a concrete SDK integration provides: a dialer for
// opening sockets and the file-based credential loader its sessions use.
type Adapter struct {
	Dialer Dialer
	Loader AuthLoader
}

var (
	adapterMu sync.Mutex
	adapter   *Adapter
)

// ErrNoAdapter means no SDK integration was linked into the binary.
var ErrNoAdapter = errors.New("no messaging SDK adapter registered")

// RegisterAdapter installs the SDK integration. Called once from the
// adapter package's init; a second call panics.
func RegisterAdapter(a Adapter) {
	adapterMu.Lock()
	defer adapterMu.Unlock()
	if adapter != nil {
		panic("wa: adapter already registered")
	}
	if a.Dialer == nil || a.Loader == nil {
		panic("wa: adapter requires both a dialer and a loader")
	}
	adapter = &a
}

// RegisteredAdapter returns the installed SDK integration.
func RegisteredAdapter() (Adapter, error) {
	adapterMu.Lock()
	defer adapterMu.Unlock()
	if adapter == nil {
		return Adapter{}, ErrNoAdapter
	}
	return *adapter, nil
}
