// Package sysinfo samples host metrics for /alive.
package sysinfo

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

type Stats struct {
	CPUPercent  float64
	MemPercent  float64
	MemUsed     uint64
	MemTotal    uint64
	DiskPercent float64
	Goroutines  int
	GoHeapBytes uint64
}

// Sample reads CPU over a short window plus memory and disk usage of root.
// Partial results are returned together with a joined error.
func Sample(ctx context.Context, root string) (Stats, error) {
	var st Stats
	var errs []error

	if p, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false); err != nil {
		errs = append(errs, err)
	} else if len(p) > 0 {
		st.CPUPercent = p[0]
	}

	if v, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		errs = append(errs, err)
	} else {
		st.MemPercent = v.UsedPercent
		st.MemUsed = v.Used
		st.MemTotal = v.Total
	}

	if root == "" {
		root = "/"
	}
	if u, err := disk.UsageWithContext(ctx, root); err != nil {
		errs = append(errs, err)
	} else {
		st.DiskPercent = u.UsedPercent
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	st.Goroutines = runtime.NumGoroutine()
	st.GoHeapBytes = ms.HeapAlloc

	return st, errors.Join(errs...)
}

// Uptime renders d as "1d 2h 3m 4s".
func Uptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int64(d / time.Second)
	days := s / 86400
	s %= 86400
	h := s / 3600
	s %= 3600
	m := s / 60
	s %= 60
	return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
}
