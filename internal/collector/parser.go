package collector

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hostpulse/hostpulse/internal/models"
)

// pseudoFSPrefixes lists device-name prefixes excluded from disk metrics.
var pseudoFSPrefixes = []string{"tmpfs", "devtmpfs", "overlay", "shm"}

// ParseError reports that probe output could not be turned into a snapshot.
type ParseError struct {
	Section string
	Reason  string
}

func (e *ParseError) Error() string {
	if e.Section == "" {
		return "parse probe output: " + e.Reason
	}
	return fmt.Sprintf("parse probe section %s: %s", e.Section, e.Reason)
}

// Parse converts raw probe output into a snapshot for hostID.
// Sections are delimited by ===NAME=== marker lines; content between markers
// belongs to the preceding marker. Unknown sections are ignored and missing
// sections leave their snapshot field zero. Parse fails only when no section
// at all could be recognized.
func Parse(hostID uuid.UUID, output string) (*models.Snapshot, error) {
	sections := splitSections(output)
	if len(sections) == 0 {
		return nil, &ParseError{Reason: "no sections found"}
	}

	snap := &models.Snapshot{
		Timestamp: time.Now().UTC(),
		HostID:    hostID,
	}

	if data, ok := sections["CPU"]; ok {
		snap.CPU = parseCPU(data)
	}
	if data, ok := sections["MEMORY"]; ok {
		snap.Memory = parseMemory(data)
	}
	if data, ok := sections["DISK"]; ok {
		snap.Disks = parseDisks(data)
	}
	if data, ok := sections["NETWORK"]; ok {
		snap.Network = parseNetwork(data)
	}
	if data, ok := sections["LOAD"]; ok {
		snap.Load = parseLoad(data)
	}
	if data, ok := sections["UPTIME"]; ok {
		snap.Uptime, _ = strconv.ParseInt(strings.TrimSpace(data), 10, 64)
	}

	return snap, nil
}

// splitSections cuts output into named sections keyed by their marker name.
func splitSections(output string) map[string]string {
	sections := make(map[string]string)
	var name string
	var content strings.Builder

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "===") && strings.HasSuffix(line, "===") && len(line) > 6 {
			if name != "" {
				sections[name] = strings.TrimSpace(content.String())
			}
			name = strings.Trim(line, "=")
			content.Reset()
			continue
		}
		if name != "" {
			content.WriteString(line)
			content.WriteByte('\n')
		}
	}
	if name != "" {
		sections[name] = strings.TrimSpace(content.String())
	}
	return sections
}

// parseCPU reads the seven cumulative jiffy counters and the core count.
// Percentages are proportions of total cumulative time since boot, not
// rates; the zero-total guard substitutes 1 to avoid division by zero.
func parseCPU(data string) models.CPUStats {
	lines := strings.Split(strings.TrimSpace(data), "\n")
	if len(lines) < 1 {
		return models.CPUStats{}
	}
	fields := strings.Fields(lines[0])
	if len(fields) < 7 {
		return models.CPUStats{}
	}

	user, _ := strconv.ParseFloat(fields[0], 64)
	nice, _ := strconv.ParseFloat(fields[1], 64)
	system, _ := strconv.ParseFloat(fields[2], 64)
	idle, _ := strconv.ParseFloat(fields[3], 64)
	iowait, _ := strconv.ParseFloat(fields[4], 64)
	irq, _ := strconv.ParseFloat(fields[5], 64)
	softirq, _ := strconv.ParseFloat(fields[6], 64)

	total := user + nice + system + idle + iowait + irq + softirq
	if total == 0 {
		total = 1
	}

	var cores int
	if len(lines) > 1 {
		cores, _ = strconv.Atoi(strings.TrimSpace(lines[1]))
	}

	return models.CPUStats{
		UsagePercent:  100.0 * (total - idle) / total,
		UserPercent:   100.0 * (user + nice) / total,
		SystemPercent: 100.0 * system / total,
		IdlePercent:   100.0 * idle / total,
		IOWaitPercent: 100.0 * iowait / total,
		CoreCount:     cores,
	}
}

// parseMemory reads KEY: value lines in kilobytes and converts to bytes.
func parseMemory(data string) models.MemoryStats {
	values := make(map[string]uint64)
	for _, line := range strings.Split(data, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		key := strings.TrimSuffix(fields[0], ":")
		v, _ := strconv.ParseUint(fields[1], 10, 64)
		values[key] = v * 1024
	}

	m := models.MemoryStats{
		TotalBytes:     values["MemTotal"],
		FreeBytes:      values["MemFree"],
		AvailableBytes: values["MemAvailable"],
		SwapTotalBytes: values["SwapTotal"],
	}

	reclaimable := values["Buffers"] + values["Cached"]
	if m.TotalBytes >= m.FreeBytes+reclaimable {
		m.UsedBytes = m.TotalBytes - m.FreeBytes - reclaimable
	}
	if m.TotalBytes > 0 {
		m.UsagePercent = 100.0 * float64(m.UsedBytes) / float64(m.TotalBytes)
	}
	if m.SwapTotalBytes > 0 {
		m.SwapUsedBytes = m.SwapTotalBytes - values["SwapFree"]
		m.SwapPercent = 100.0 * float64(m.SwapUsedBytes) / float64(m.SwapTotalBytes)
	}
	return m
}

// parseDisks reads "device total used free percent mountpoint" lines,
// skipping pseudo-filesystems by device-name prefix.
func parseDisks(data string) []models.DiskStats {
	var disks []models.DiskStats
	for _, line := range strings.Split(data, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 6 {
			continue
		}
		device := fields[0]
		if hasAnyPrefix(device, pseudoFSPrefixes) {
			continue
		}

		total, _ := strconv.ParseUint(fields[1], 10, 64)
		used, _ := strconv.ParseUint(fields[2], 10, 64)
		free, _ := strconv.ParseUint(fields[3], 10, 64)

		var pct float64
		if total > 0 {
			pct = 100.0 * float64(used) / float64(total)
		}
		disks = append(disks, models.DiskStats{
			Device:       device,
			MountPoint:   fields[5],
			TotalBytes:   total,
			UsedBytes:    used,
			FreeBytes:    free,
			UsagePercent: pct,
		})
	}
	return disks
}

// parseNetwork reads per-interface counter lines, skipping loopback.
func parseNetwork(data string) []models.NetStats {
	var nets []models.NetStats
	for _, line := range strings.Split(data, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 9 {
			continue
		}
		iface := fields[0]
		if iface == "lo" {
			continue
		}

		recvBytes, _ := strconv.ParseUint(fields[1], 10, 64)
		recvPackets, _ := strconv.ParseUint(fields[2], 10, 64)
		recvErrs, _ := strconv.ParseUint(fields[3], 10, 64)
		recvDrops, _ := strconv.ParseUint(fields[4], 10, 64)
		sentBytes, _ := strconv.ParseUint(fields[5], 10, 64)
		sentPackets, _ := strconv.ParseUint(fields[6], 10, 64)
		sentErrs, _ := strconv.ParseUint(fields[7], 10, 64)
		sentDrops, _ := strconv.ParseUint(fields[8], 10, 64)

		nets = append(nets, models.NetStats{
			Interface:   iface,
			BytesRecv:   recvBytes,
			PacketsRecv: recvPackets,
			ErrorsIn:    recvErrs,
			DropsIn:     recvDrops,
			BytesSent:   sentBytes,
			PacketsSent: sentPackets,
			ErrorsOut:   sentErrs,
			DropsOut:    sentDrops,
		})
	}
	return nets
}

// parseLoad reads the three load averages.
func parseLoad(data string) models.LoadStats {
	fields := strings.Fields(strings.TrimSpace(data))
	if len(fields) < 3 {
		return models.LoadStats{}
	}
	l1, _ := strconv.ParseFloat(fields[0], 64)
	l5, _ := strconv.ParseFloat(fields[1], 64)
	l15, _ := strconv.ParseFloat(fields[2], 64)
	return models.LoadStats{Load1: l1, Load5: l5, Load15: l15}
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
