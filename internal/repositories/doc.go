// Package repositories implements SQLite persistence for the separation history.
//
// [SessionRepository] keeps one row per backend session: where the audio came from, the stem URLs the
// backend returned and the local cache directory. A row is soft deleted once the backend confirmed that the
// session's files were removed, so `stemx cleanup` only retries the sessions still pending.
//
// Sequence numbers provide stable, human-readable ordering independent of the backend identifiers.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
