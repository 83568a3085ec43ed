package media

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Limits are the host thresholds an upload must clear before it is accepted.
type Limits struct {
	// IdleCPU is the minimum idle CPU percentage. Zero skips the check.
	IdleCPU  float64
	FreeMem  int64
	FreeDisk int64
}

// CheckResources verifies the host has room to materialize another upload in dir.
// Probe failures are logged and do not block the request.
func CheckResources(dir string, l Limits) error {
	if l.IdleCPU > 0 {
		p, err := cpu.Percent(200*time.Millisecond, false)
		if err != nil {
			slog.Warn("could not get CPU usage", slog.Any("error", err))
		} else if len(p) > 0 && p[0] > 100.0-l.IdleCPU {
			return fmt.Errorf("not enough idle CPU. Current usage: %.2f%%, Idle threshold: %.2f%%", p[0], l.IdleCPU)
		}
	}

	if l.FreeMem > 0 {
		vm, err := mem.VirtualMemory()
		if err != nil {
			slog.Warn("could not get memory usage", slog.Any("error", err))
		} else if vm.Available < uint64(l.FreeMem) {
			return fmt.Errorf("not enough free memory. Available: %d, Required: %d", vm.Available, l.FreeMem)
		}
	}

	if l.FreeDisk > 0 {
		d, err := disk.Usage(dir)
		if err != nil {
			slog.Warn("could not get disk usage", slog.String("dir", dir), slog.Any("error", err))
		} else if d.Free < uint64(l.FreeDisk) {
			return fmt.Errorf("not enough free disk space. Available: %d, Required: %d", d.Free, l.FreeDisk)
		}
	}
	return nil
}
