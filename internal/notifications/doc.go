// Package notifications delivers sync milestones via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Attach wires the service to the sync event bus so completed
// cycles and terminal upload failures surface on the user's devices without
// the engine knowing about HTTP glue.
//
// Extend this package if you need alternative transports; everything else
// depends only on the Service interface.
package notifications
