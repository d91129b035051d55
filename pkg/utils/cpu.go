package utils

import "github.com/shirou/gopsutil/cpu"

// CheckCPUUsage reports whether host CPU usage is at or below the given
// ceiling. A failed probe reports OK; an unreadable gauge must not park
// the caller.
func CheckCPUUsage(maxCPUUsage float64) (bool, float64) {
	usage, err := cpu.Percent(0, false)
	if err != nil || len(usage) == 0 {
		return true, 0
	}
	return usage[0] <= maxCPUUsage, usage[0]
}
