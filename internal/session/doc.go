// Package session holds the recording session data model and persists session
// history in SQLite.
//
// A Session tracks one pass through the capture → upload → analysis pipeline:
// its phase, the storage key that was finally accepted, every upload attempt,
// the three analysis jobs, and the merged report once all jobs succeed. The
// Store records each transition as it happens so `crewbe sessions` and
// `crewbe show` can explain what a past session did, including simulated
// uploads that never produced a stored object.
//
// Schema changes bump schemaVersion in schema.go; users delete the database
// to adopt the new schema.
package session
