// Package main hosts the crewbe CLI entrypoint and command graph.
//
// The Cobra-based command tree records interview sessions through the
// workflow pipeline, lists and inspects the local session history, runs
// preflight checks against the capture device and the crewbe API, and
// scaffolds configuration. Configuration resolution and logger setup live in
// the shared command context so subcommands stay focused on output.
//
// Add behavior to the internal packages first and surface it here through a
// command or flag.
package main
