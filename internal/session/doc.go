// Package session persists per-instance credential bundles and metadata on
// the local filesystem.
//
// At startup, ResolveStorageRoot walks an ordered candidate list and picks
// the first directory that passes a real write-read-delete probe. A mount
// that accepts opens but drops writes fails the probe at startup rather
// than at pairing time, when a corrupt credential write would silently
// produce a session that can never resume.
//
// Each instance gets one subdirectory named tenant_instance under the root,
// holding the SDK's creds.json plus a metadata.json descriptor (auth method,
// phone number, creation and last-connection timestamps). Metadata reads go
// through a TTL cache; the filesystem copy stays authoritative, so the cache
// can be dropped at any time without losing anything.
//
// InitAuthState retries the full directory-create/probe/load sequence three
// times before falling back to a best-effort restore from the Backup
// collaborator. Failures are scoped: a *StorageError takes down one
// instance's initialization, never the process.
//
// CleanupOldSessions is the retention sweep: directories whose last
// activity is older than the threshold are removed, judged by
// lastConnectedAt and falling back to createdAt.
package session
