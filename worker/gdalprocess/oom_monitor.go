package gdalprocess

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

type procInfo struct {
	KBytes  map[string]int64
	Strings map[string]string
}

// parseProcInfo reads the "Key: value" lines of a /proc status file. Values
// in kB land in KBytes, everything else in Strings.
func parseProcInfo(data string, lookupKeys []string) (*procInfo, error) {
	wanted := make(map[string]bool)
	for _, key := range lookupKeys {
		wanted[key] = false
	}

	info := &procInfo{KBytes: make(map[string]int64), Strings: make(map[string]string)}

	numFound := 0
	for _, line := range strings.Split(data, "\n") {
		fields := strings.SplitN(line, ":", 2)
		if len(fields) != 2 {
			continue
		}

		key := strings.TrimSpace(fields[0])
		if seen, ok := wanted[key]; !ok || seen {
			continue
		}
		wanted[key] = true
		numFound++

		val := strings.TrimSpace(fields[1])
		if !strings.HasSuffix(val, " kB") {
			info.Strings[key] = val
		} else {
			n, err := strconv.ParseInt(strings.TrimSuffix(val, " kB"), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("failed to parse %q", line)
			}
			info.KBytes[key] = n
		}

		if numFound == len(wanted) {
			return info, nil
		}
	}

	for k, v := range wanted {
		if !v {
			return nil, fmt.Errorf("%s not found", k)
		}
	}
	return info, nil
}

func readProcInfo(path string, lookupKeys []string) (*procInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	info, err := parseProcInfo(string(data), lookupKeys)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	return info, nil
}

type childStatus struct {
	Name  string
	VmRSS int64
	Pid   int
}

// findChildren lists the live children of this process, i.e. the GDAL
// commands started by the pool.
func findChildren(procDir string) ([]*childStatus, error) {
	entries, err := os.ReadDir(procDir)
	if err != nil {
		return nil, err
	}

	self := strconv.Itoa(os.Getpid())
	var children []*childStatus
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid <= 1 {
			continue
		}

		info, err := readProcInfo(fmt.Sprintf("%s/%d/status", procDir, pid), []string{"Name", "PPid", "VmRSS"})
		if err != nil || info.Strings["PPid"] != self {
			continue
		}
		children = append(children, &childStatus{Name: info.Strings["Name"], Pid: pid, VmRSS: info.KBytes["VmRSS"]})
	}
	return children, nil
}

// OOMMonitor kills the largest GDAL command when available memory falls
// below ThresholdKB, so one oversized window fails its query instead of
// taking the whole service down.
type OOMMonitor struct {
	ThresholdKB int64
	ProcDir     string
	Log         zerolog.Logger
}

func NewOOMMonitor(thresholdKB int64, log zerolog.Logger) *OOMMonitor {
	return &OOMMonitor{ThresholdKB: thresholdKB, ProcDir: "/proc", Log: log}
}

// pollInterval shortens as available memory approaches the threshold.
func (mon *OOMMonitor) pollInterval(availableKB int64) time.Duration {
	// expected memory fill rate: 6000 MB/s
	const fillRate = 6000 * 1024

	remaining := availableKB - mon.ThresholdKB
	if remaining <= 0 {
		return 0
	}

	predicted := time.Duration(float64(remaining)/fillRate*1000) * time.Millisecond
	if predicted < 100*time.Millisecond {
		return 100 * time.Millisecond
	}
	if predicted > time.Second {
		return time.Second
	}
	return predicted
}

// Run polls memory until ctx is done.
func (mon *OOMMonitor) Run(ctx context.Context) error {
	mon.Log.Info().Int64("threshold_kb", mon.ThresholdKB).Msg("OOM monitor started")
	for {
		mem, err := readProcInfo(mon.ProcDir+"/meminfo", []string{"MemTotal", "MemAvailable"})
		if err != nil {
			return err
		}

		wait := mon.pollInterval(mem.KBytes["MemAvailable"])
		if wait == 0 {
			wait = time.Second
			if mon.killLargest() {
				wait = 100 * time.Millisecond
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (mon *OOMMonitor) killLargest() bool {
	children, err := findChildren(mon.ProcDir)
	if err != nil || len(children) == 0 {
		return false
	}

	largest := children[0]
	for _, c := range children[1:] {
		if c.VmRSS > largest.VmRSS {
			largest = c
		}
	}

	syscall.Kill(largest.Pid, syscall.SIGKILL)
	mon.Log.Warn().Str("process", largest.Name).Int("pid", largest.Pid).
		Int64("rss_kb", largest.VmRSS).Msg("OOM SIGKILL sent")
	return true
}
