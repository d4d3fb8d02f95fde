// Package models defines the domain types shared across hostpulse:
// parsed host snapshots, flattened metrics, alert rules and events,
// credentials, and the monitored-host registry entry.
package models
