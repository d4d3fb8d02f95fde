package models

import (
	"time"

	"github.com/google/uuid"
)

// HostStatus is the coarse reachability state of a monitored host.
type HostStatus string

const (
	HostUnknown  HostStatus = "unknown"
	HostOnline   HostStatus = "online"
	HostDegraded HostStatus = "degraded"
)

// Host is one monitored machine. Address and Port locate its SSH endpoint.
type Host struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Address    string     `json:"address"`
	Port       int        `json:"port"`
	Status     HostStatus `json:"status"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
