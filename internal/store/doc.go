// Package store holds recent metrics in memory, keyed by series, so the
// alert engine can read duration windows without touching the durable
// time-series backend. Entries older than the retention TTL are evicted by
// a background loop.
package store
