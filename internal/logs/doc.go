// Package logs reads crewbe log files for `crewbe logs`.
//
// Last returns the final lines of a file together with the offset to resume
// from, and Follow streams lines appended after that offset until the context
// ends. Both keep memory bounded by the number of lines requested.
package logs
