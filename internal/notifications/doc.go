// Package notifications delivers batch lifecycle events via ntfy.
//
// The default implementation publishes to the topic configured in config.toml
// and gracefully degrades to a no-op when notifications are disabled. Only
// event text is ever sent; converted image data stays on the machine. The
// conversion core depends only on a small notifier interface, so alternative
// transports slot in without touching orchestration code.
package notifications
