// Package notifications delivers batch run events to ntfy.
//
// NewService returns an ntfy-backed implementation when notifications.ntfy_topic
// is configured and a no-op otherwise, so callers never branch on whether
// notifications are enabled. Delivery failures are returned to the caller,
// which logs them; a failed notification never affects a run's outcome.
package notifications
