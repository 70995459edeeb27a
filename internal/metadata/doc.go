// Package metadata persists the identifier → local path table that backs the
// object cache. The table lives in a single embedded SQLite file opened through
// gorm and is only reachable through a Scope: a reentrant, lock-guarded
// transaction window. Scopes are produced per logical operation by
// Store.Scope(); nesting Enter/Exit on the same Scope never re-acquires the
// store lock, while Scopes owned by different callers are serialized.
package metadata
