package models

import (
	"time"

	"github.com/google/uuid"
)

// MetricType groups metrics by the subsystem they describe.
type MetricType string

const (
	MetricTypeCPU     MetricType = "cpu"
	MetricTypeMemory  MetricType = "memory"
	MetricTypeDisk    MetricType = "disk"
	MetricTypeNetwork MetricType = "network"
	MetricTypeSystem  MetricType = "system"
)

// Metric is a single flattened data point. (Time, HostID, Type, Name) is the
// natural key; Tags disambiguate multi-instance metrics such as per-disk or
// per-interface rows. Metrics are append-only and immutable once written.
type Metric struct {
	Time   time.Time         `json:"time"`
	HostID uuid.UUID         `json:"host_id"`
	Type   MetricType        `json:"metric_type"`
	Name   string            `json:"metric_name"`
	Value  float64           `json:"value"`
	Tags   map[string]string `json:"tags,omitempty"`
}

// Snapshot is one collection cycle's parsed result for one host. It is
// flattened into metrics immediately and never persisted itself.
type Snapshot struct {
	Timestamp time.Time   `json:"timestamp"`
	HostID    uuid.UUID   `json:"host_id"`
	CPU       CPUStats    `json:"cpu"`
	Memory    MemoryStats `json:"memory"`
	Disks     []DiskStats `json:"disks"`
	Network   []NetStats  `json:"network"`
	Load      LoadStats   `json:"load"`
	Uptime    int64       `json:"uptime"` // seconds
}

// CPUStats holds instantaneous proportions of cumulative CPU time.
// These are snapshot ratios over the counter sum, not true rates — callers
// that need rates must difference two snapshots themselves.
type CPUStats struct {
	UsagePercent  float64 `json:"usage_percent"`
	UserPercent   float64 `json:"user_percent"`
	SystemPercent float64 `json:"system_percent"`
	IdlePercent   float64 `json:"idle_percent"`
	IOWaitPercent float64 `json:"iowait_percent"`
	CoreCount     int     `json:"core_count"`
}

// MemoryStats holds memory and swap usage in bytes.
type MemoryStats struct {
	TotalBytes     uint64  `json:"total_bytes"`
	UsedBytes      uint64  `json:"used_bytes"`
	FreeBytes      uint64  `json:"free_bytes"`
	AvailableBytes uint64  `json:"available_bytes"`
	UsagePercent   float64 `json:"usage_percent"`
	SwapTotalBytes uint64  `json:"swap_total_bytes"`
	SwapUsedBytes  uint64  `json:"swap_used_bytes"`
	SwapPercent    float64 `json:"swap_percent"`
}

// DiskStats holds usage for one mounted filesystem.
type DiskStats struct {
	Device       string  `json:"device"`
	MountPoint   string  `json:"mount_point"`
	TotalBytes   uint64  `json:"total_bytes"`
	UsedBytes    uint64  `json:"used_bytes"`
	FreeBytes    uint64  `json:"free_bytes"`
	UsagePercent float64 `json:"usage_percent"`
}

// NetStats holds cumulative counters for one network interface.
type NetStats struct {
	Interface   string `json:"interface"`
	BytesRecv   uint64 `json:"bytes_recv"`
	BytesSent   uint64 `json:"bytes_sent"`
	PacketsRecv uint64 `json:"packets_recv"`
	PacketsSent uint64 `json:"packets_sent"`
	ErrorsIn    uint64 `json:"errors_in"`
	ErrorsOut   uint64 `json:"errors_out"`
	DropsIn     uint64 `json:"drops_in"`
	DropsOut    uint64 `json:"drops_out"`
}

// LoadStats holds the 1/5/15-minute load averages.
type LoadStats struct {
	Load1  float64 `json:"load1"`
	Load5  float64 `json:"load5"`
	Load15 float64 `json:"load15"`
}
