package sizing

import (
	"context"
	"log/slog"

	"github.com/dustin/go-humanize"
)

const bytesPerGB = 1024 * 1024 * 1024

// Snapshot is the host capacity seen at startup. TotalRAMGB of 0 means unknown.
type Snapshot struct {
	LogicalCPUs int
	TotalRAMGB  float64
}

// Detect reads the logical CPU count and total physical RAM.
func Detect(ctx context.Context, logger *slog.Logger) Snapshot {
	s := Snapshot{
		LogicalCPUs: logicalCPUs(),
		TotalRAMGB:  DetectRAM(ctx, logger),
	}
	logger.Debug("Detected host resources",
		"cpus", s.LogicalCPUs,
		"ram", humanize.IBytes(uint64(s.TotalRAMGB*bytesPerGB)))
	return s
}

// DetectRAM returns total physical RAM in GiB, or 0 when every probe fails.
func DetectRAM(ctx context.Context, logger *slog.Logger) float64 {
	for _, p := range ramProbes() {
		gb, err := p.fn(ctx)
		if err != nil {
			logger.Debug("RAM probe failed", "probe", p.name, "error", err)
			continue
		}
		if gb > 0 {
			return gb
		}
	}
	logger.Warn("Could not determine total RAM, treating as unconstrained")
	return 0
}

type ramProbe struct {
	name string
	fn   func(ctx context.Context) (float64, error)
}
