// Package notify delivers session notifications. Sinks implement
// application.Notifier and can be stacked: Cooldown suppresses repeated RSVP
// churn, Fanout hands one notification to several sinks, NATS publishes JSON
// events and Log records them through slog.
package notify
