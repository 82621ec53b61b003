// Package analysis starts the three remote analysis jobs for an uploaded
// recording and waits for them.
//
// The Dispatcher starts speech-to-text, face detection and segment detection
// concurrently; a start that fails is recorded as failed_to_start instead of
// aborting the others. The Poller queries every non-terminal job at a fixed
// interval, stops at the first failure (abandoning, not cancelling, the rest)
// and gives up after a configurable ceiling. When all three succeed, Merge
// builds the session report with exactly one result per job kind.
//
// Provider implementations live in services/awscloud (direct AWS access) and
// services/backend (through the crewbe API).
package analysis
