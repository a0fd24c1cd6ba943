// Package cache provides the persistent content store for recitation audio.
// Entries are raw payloads keyed by resource key and are written at most
// once: a write to an existing key is skipped, never applied. Backends
// include a bbolt database (default), a plain directory, and an in-memory
// map used in tests.
package cache
