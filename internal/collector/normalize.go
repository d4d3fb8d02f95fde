package collector

import (
	"fmt"

	"github.com/hostpulse/hostpulse/internal/models"
)

// Flatten converts a snapshot into independent metric rows, all sharing the
// snapshot's timestamp. It is pure and deterministic, and it is lossless:
// every snapshot field a rule can reference is emitted, with tags
// identifying per-disk and per-interface instances.
func Flatten(snap *models.Snapshot) []models.Metric {
	t := snap.Timestamp
	host := snap.HostID

	row := func(mt models.MetricType, name string, value float64, tags map[string]string) models.Metric {
		return models.Metric{Time: t, HostID: host, Type: mt, Name: name, Value: value, Tags: tags}
	}

	out := []models.Metric{
		row(models.MetricTypeCPU, "usage_percent", snap.CPU.UsagePercent, nil),
		row(models.MetricTypeCPU, "user_percent", snap.CPU.UserPercent, nil),
		row(models.MetricTypeCPU, "system_percent", snap.CPU.SystemPercent, nil),
		row(models.MetricTypeCPU, "idle_percent", snap.CPU.IdlePercent, nil),
		row(models.MetricTypeCPU, "iowait_percent", snap.CPU.IOWaitPercent, nil),
		row(models.MetricTypeCPU, "core_count", float64(snap.CPU.CoreCount), nil),

		row(models.MetricTypeMemory, "usage_percent", snap.Memory.UsagePercent, nil),
		row(models.MetricTypeMemory, "total_bytes", float64(snap.Memory.TotalBytes), nil),
		row(models.MetricTypeMemory, "used_bytes", float64(snap.Memory.UsedBytes), nil),
		row(models.MetricTypeMemory, "free_bytes", float64(snap.Memory.FreeBytes), nil),
		row(models.MetricTypeMemory, "available_bytes", float64(snap.Memory.AvailableBytes), nil),
		row(models.MetricTypeMemory, "swap_total_bytes", float64(snap.Memory.SwapTotalBytes), nil),
		row(models.MetricTypeMemory, "swap_used_bytes", float64(snap.Memory.SwapUsedBytes), nil),
		row(models.MetricTypeMemory, "swap_percent", snap.Memory.SwapPercent, nil),
	}

	for _, d := range snap.Disks {
		tags := map[string]string{"device": d.Device, "mount_point": d.MountPoint}
		out = append(out,
			row(models.MetricTypeDisk, "usage_percent", d.UsagePercent, tags),
			row(models.MetricTypeDisk, "total_bytes", float64(d.TotalBytes), tags),
			row(models.MetricTypeDisk, "used_bytes", float64(d.UsedBytes), tags),
			row(models.MetricTypeDisk, "free_bytes", float64(d.FreeBytes), tags),
		)
	}

	for _, n := range snap.Network {
		tags := map[string]string{"interface": n.Interface}
		out = append(out,
			row(models.MetricTypeNetwork, "bytes_sent", float64(n.BytesSent), tags),
			row(models.MetricTypeNetwork, "bytes_recv", float64(n.BytesRecv), tags),
			row(models.MetricTypeNetwork, "packets_sent", float64(n.PacketsSent), tags),
			row(models.MetricTypeNetwork, "packets_recv", float64(n.PacketsRecv), tags),
			row(models.MetricTypeNetwork, "errors_in", float64(n.ErrorsIn), tags),
			row(models.MetricTypeNetwork, "errors_out", float64(n.ErrorsOut), tags),
			row(models.MetricTypeNetwork, "drops_in", float64(n.DropsIn), tags),
			row(models.MetricTypeNetwork, "drops_out", float64(n.DropsOut), tags),
		)
	}

	out = append(out,
		row(models.MetricTypeSystem, "load1", snap.Load.Load1, nil),
		row(models.MetricTypeSystem, "load5", snap.Load.Load5, nil),
		row(models.MetricTypeSystem, "load15", snap.Load.Load15, nil),
		row(models.MetricTypeSystem, "uptime_seconds", float64(snap.Uptime), nil),
	)

	return out
}

// FormatBytes renders a byte count using powers of 1024.
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
