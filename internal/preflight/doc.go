// Package preflight provides readiness checks for the capture device, the
// directories crewbe writes to and the crewbe API.
//
// These checks run in two contexts:
//   - `crewbe record` calls RunAll before acquiring the camera and refuses to
//     start when a required check fails.
//   - `crewbe check` prints every result, including optional ones.
//
// The API check is optional when simulate_on_failure is enabled, since a
// session can then finish without it.
package preflight
