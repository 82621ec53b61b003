// Package api defines the JSON wire types of the crewbe HTTP API and the
// converters between them and the session model.
//
// DTOs use camelCase JSON tags and RFC3339 timestamps with milliseconds, the
// shape the mobile client already consumes. Job statuses travel as the
// provider-style strings (IN_PROGRESS, COMPLETED, SUCCEEDED, FAILED); ERROR
// marks a status query that failed and says nothing about the job itself.
package api
