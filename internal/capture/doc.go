// Package capture records interview video from a local device.
//
// A Recorder owns exactly one Device handle between Start and Stop. While
// recording it collects bytes from the device stream and appends them to the
// session blob at a fixed chunk cadence (one second by default). The device is
// released on every exit path: a normal Stop, a lost device, a hot-unplug
// reported by HotplugWatcher, or the configured duration ceiling.
//
// Two devices ship with the package: an ffmpeg-backed V4L2 camera that encodes
// WebM on the fly, and a file replay device ("file:<path>") used for demos,
// preflight checks and tests.
//
// Failures to obtain the device surface as *Error with a kind of
// permission_denied or device_unavailable so callers can tell the user what to
// fix; a device that disappears mid-recording surfaces as device_lost.
package capture
