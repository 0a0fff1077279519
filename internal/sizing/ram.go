package sizing

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var errNoRAMValue = errors.New("no memory value found")

// parseMeminfo extracts MemTotal from /proc/meminfo content.
func parseMeminfo(r io.Reader) (float64, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || fields[0] != "MemTotal:" {
			continue
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse MemTotal: %w", err)
		}
		return float64(kb) / (1024 * 1024), nil
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 0, errNoRAMValue
}

// parseByteCount returns the first all-digit token of command output,
// as printed by `sysctl -n hw.memsize` or wmic.
func parseByteCount(out string) (float64, error) {
	for _, tok := range strings.Fields(out) {
		n, err := strconv.ParseUint(tok, 10, 64)
		if err != nil {
			continue
		}
		return float64(n) / bytesPerGB, nil
	}
	return 0, errNoRAMValue
}
