package frames

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

var (
	// ErrNoFrames is returned when a frame spec yields no frames.
	ErrNoFrames = errors.New("no frames parsed")
	// ErrChunkNotFound is returned when the requested chunk index does not exist.
	ErrChunkNotFound = errors.New("chunk index not found")
	// ErrSpecTooLarge is returned when a frame spec expands past MaxSpecFrames.
	ErrSpecTooLarge = errors.New("frame spec too large")
)

// MaxSpecFrames bounds how many frames ParseSpec expands.
const MaxSpecFrames = 1_000_000

// Chunk is one entry of a static chunk table.
type Chunk struct {
	Index int
	Range Range
}

// ParseSpec parses a frame spec such as "0-99" or "1-100,150-200,300"
// into a sorted list of unique frames. Reversed ranges are swapped.
func ParseSpec(spec string) ([]int, error) {
	var out []int
	for part := range strings.SplitSeq(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		// A leading '-' belongs to a negative number, not a range separator.
		sep := strings.Index(part[1:], "-")
		if sep == -1 {
			n, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid frame %q: %w", part, err)
			}
			if len(out) >= MaxSpecFrames {
				return nil, fmt.Errorf("%w: more than %d frames", ErrSpecTooLarge, MaxSpecFrames)
			}
			out = append(out, n)
			continue
		}
		sep++

		a, err := strconv.Atoi(strings.TrimSpace(part[:sep]))
		if err != nil {
			return nil, fmt.Errorf("invalid range start in %q: %w", part, err)
		}
		b, err := strconv.Atoi(strings.TrimSpace(part[sep+1:]))
		if err != nil {
			return nil, fmt.Errorf("invalid range end in %q: %w", part, err)
		}
		if b < a {
			a, b = b, a
		}
		// b-a goes negative on overflow.
		if span := b - a; span < 0 || span >= MaxSpecFrames-len(out) {
			return nil, fmt.Errorf("%w: %q expands past %d frames", ErrSpecTooLarge, part, MaxSpecFrames)
		}
		for f := a; f <= b; f++ {
			out = append(out, f)
		}
	}

	slices.Sort(out)
	return slices.Compact(out), nil
}

// BuildChunks groups sorted frames into chunks of at most size frames,
// starting a new chunk at every gap. size <= 0 means one chunk per run.
func BuildChunks(frames []int, size int) []Chunk {
	if len(frames) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(frames)
	}

	var chunks []Chunk
	start, prev, count := frames[0], frames[0], 1
	for _, f := range frames[1:] {
		if f != prev+1 || count >= size {
			chunks = append(chunks, Chunk{Index: len(chunks), Range: Range{Start: start, End: prev}})
			start = f
			count = 1
		} else {
			count++
		}
		prev = f
	}
	return append(chunks, Chunk{Index: len(chunks), Range: Range{Start: start, End: prev}})
}

// SelectRange resolves a frame spec to the interval one task renders.
// With chunkSize > 0 and index >= 0 it returns that chunk of the table,
// otherwise the span from the first to the last frame.
func SelectRange(spec string, chunkSize, index int) (Range, error) {
	frames, err := ParseSpec(spec)
	if err != nil {
		return Range{}, err
	}
	if len(frames) == 0 {
		return Range{}, fmt.Errorf("%w from spec %q", ErrNoFrames, spec)
	}

	if chunkSize > 0 && index >= 0 {
		chunks := BuildChunks(frames, chunkSize)
		for _, c := range chunks {
			if c.Index == index {
				return c.Range, nil
			}
		}
		return Range{}, fmt.Errorf("%w: index=%d frames=%s chunk_size=%d chunk_count=%d",
			ErrChunkNotFound, index, spec, chunkSize, len(chunks))
	}

	return Range{Start: frames[0], End: frames[len(frames)-1]}, nil
}
