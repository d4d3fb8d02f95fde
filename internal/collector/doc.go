// Package collector pulls raw telemetry from monitored hosts and turns it
// into flat metrics. It owns the probe script, the section-marker text
// protocol parser, the snapshot normalizer, the SSH probe runner, and the
// scheduler that fans collection jobs out across hosts.
//
// Parsing is deliberately lenient: an unrecognized or missing section leaves
// the corresponding snapshot field at its zero value, and malformed numeric
// fields parse to zero rather than failing the cycle. Partial telemetry is
// preferred over dropping a whole collection — note that a mis-parsed zero
// can itself trigger or mask an alert.
package collector
