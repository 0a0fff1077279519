//go:build linux

package sizing

import (
	"context"
	"errors"
	"os"

	"github.com/prometheus/procfs"
)

func ramProbes() []ramProbe {
	return []ramProbe{
		{name: "procfs", fn: procfsRAM},
		{name: "meminfo", fn: meminfoRAM},
	}
}

func procfsRAM(context.Context) (float64, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return 0, err
	}
	mi, err := fs.Meminfo()
	if err != nil {
		return 0, err
	}
	if mi.MemTotal == nil {
		return 0, errors.New("MemTotal missing")
	}
	return float64(*mi.MemTotal) / (1024 * 1024), nil
}

func meminfoRAM(context.Context) (float64, error) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return parseMeminfo(f)
}
