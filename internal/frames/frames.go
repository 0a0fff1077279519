// Package frames partitions inclusive frame intervals and parses frame specs.
package frames

import "fmt"

// Range is an inclusive frame interval.
type Range struct {
	Start int
	End   int
}

// Len returns the number of frames in the range.
func (r Range) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// String formats the range as "start-end".
func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Split partitions [start, end] into parts contiguous ranges ordered by start.
// parts is clamped to [1, total frames]. The first total%parts ranges receive
// one extra frame, so sizes never differ by more than one.
func Split(start, end, parts int) []Range {
	total := end - start + 1
	if total <= 0 {
		return nil
	}
	if parts < 1 {
		parts = 1
	}
	if parts > total {
		parts = total
	}

	base := total / parts
	rem := total % parts

	ranges := make([]Range, 0, parts)
	cur := start
	for i := range parts {
		span := base
		if i < rem {
			span++
		}
		ranges = append(ranges, Range{Start: cur, End: cur + span - 1})
		cur += span
	}
	return ranges
}
