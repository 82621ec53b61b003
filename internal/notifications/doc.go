// Package notifications publishes session outcomes to ntfy.
//
// Only terminal outcomes (analysis complete, session failed) and simulated
// uploads are published. Each can be toggled in the [notifications] config
// section; an empty topic yields a noop service.
package notifications
