// Package notify delivers alert lifecycle notifications to configured
// channels: outbound webhooks (Slack, Teams, plain HTTP) and a WebSocket
// broadcast hub. Delivery is best-effort — failures are logged, never
// surfaced to the alert engine.
package notify
