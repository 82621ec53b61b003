// Package upload stores a finished recording and returns the storage key the
// rest of the pipeline must use.
//
// The Coordinator generates the key before any network call, then runs a
// strategy chain: a primary direct write through a short-lived credential
// scoped to that key, and on any primary failure a proxied write through the
// crewbe API, whose key becomes canonical. A primary failure is recovered here
// and never surfaced. When both fail the Coordinator returns *Error, unless the
// degraded simulated mode is explicitly enabled, in which case it reports the
// generated key with Simulated set and logs the substitution loudly.
package upload
