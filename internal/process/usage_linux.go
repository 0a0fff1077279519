//go:build linux

package process

import (
	"time"

	"github.com/prometheus/procfs"
)

// ReadUsage returns CPU and resident memory for pid from /proc.
func ReadUsage(pid int) (Usage, error) {
	p, err := procfs.NewProc(pid)
	if err != nil {
		return Usage{}, err
	}
	stat, err := p.Stat()
	if err != nil {
		return Usage{}, err
	}

	u := Usage{RSSBytes: uint64(stat.ResidentMemory())}
	if start, err := stat.StartTime(); err == nil {
		elapsed := float64(time.Now().UnixNano())/1e9 - start
		if elapsed > 0 {
			u.CPUPercent = stat.CPUTime() / elapsed * 100
		}
	}
	return u, nil
}
