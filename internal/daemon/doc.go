// Package daemon runs crewbed, the HTTP API the recorder uploads through.
//
// It exposes write credentials and proxied writes for recordings, starts and
// reports on the three analysis jobs, and answers health checks. A flock on
// the state directory keeps a second instance from binding the same state.
//
// Object storage and job providers arrive as interfaces; cmd/crewbed wires
// the AWS implementations and tests use in-memory fakes.
package daemon
