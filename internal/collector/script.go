package collector

// Script is the probe script executed on every monitored host. Its output is
// the wire contract consumed by Parse: sections framed by ===NAME=== markers.
const Script = `#!/bin/bash
set -e

echo "===CPU==="
head -1 /proc/stat | awk '{print $2,$3,$4,$5,$6,$7,$8}'
nproc

echo "===MEMORY==="
grep -E '^(MemTotal|MemFree|MemAvailable|Buffers|Cached|SwapTotal|SwapFree):' /proc/meminfo | awk '{print $1,$2}'

echo "===DISK==="
df -P -B1 | tail -n +2 | awk '{print $1,$2,$3,$4,$5,$6}'

echo "===NETWORK==="
cat /proc/net/dev | tail -n +3 | awk '{gsub(/:/, "", $1); print $1,$2,$3,$4,$5,$10,$11,$12,$13}'

echo "===LOAD==="
cat /proc/loadavg | awk '{print $1,$2,$3}'

echo "===UPTIME==="
cat /proc/uptime | awk '{print int($1)}'
`
