package frames

import (
	"errors"
	"reflect"
	"testing"
)

func TestSplitExample(t *testing.T) {
	got := Split(1, 100, 3)
	want := []Range{{1, 34}, {35, 67}, {68, 100}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Split(1, 100, 3) = %v, want %v", got, want)
	}
}

func TestSplitClampsParts(t *testing.T) {
	tests := []struct {
		name       string
		start, end int
		parts      int
		wantLen    int
	}{
		{"zero parts", 0, 9, 0, 1},
		{"negative parts", 0, 9, -3, 1},
		{"more parts than frames", 5, 7, 10, 3},
		{"single frame", 42, 42, 8, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.start, tt.end, tt.parts)
			if len(got) != tt.wantLen {
				t.Fatalf("len = %d, want %d (%v)", len(got), tt.wantLen, got)
			}
		})
	}
}

func TestSplitEmptyInterval(t *testing.T) {
	if got := Split(10, 9, 2); got != nil {
		t.Errorf("expected nil for empty interval, got %v", got)
	}
}

// Every split must be sorted, contiguous, cover the input exactly and be
// balanced to within one frame.
func TestSplitPartitionProperty(t *testing.T) {
	for start := -3; start <= 3; start++ {
		for length := 1; length <= 40; length++ {
			end := start + length - 1
			for parts := -1; parts <= length+2; parts++ {
				ranges := Split(start, end, parts)
				if len(ranges) == 0 {
					t.Fatalf("Split(%d, %d, %d) returned no ranges", start, end, parts)
				}
				if ranges[0].Start != start || ranges[len(ranges)-1].End != end {
					t.Fatalf("Split(%d, %d, %d) = %v does not cover interval", start, end, parts, ranges)
				}

				minLen, maxLen := ranges[0].Len(), ranges[0].Len()
				for i, r := range ranges {
					if r.Start > r.End {
						t.Fatalf("Split(%d, %d, %d): empty range %v", start, end, parts, r)
					}
					if i > 0 && r.Start != ranges[i-1].End+1 {
						t.Fatalf("Split(%d, %d, %d): gap or overlap at %d: %v", start, end, parts, i, ranges)
					}
					minLen = min(minLen, r.Len())
					maxLen = max(maxLen, r.Len())
				}
				if maxLen-minLen > 1 {
					t.Fatalf("Split(%d, %d, %d): imbalance %d", start, end, parts, maxLen-minLen)
				}
			}
		}
	}
}

func TestRangeString(t *testing.T) {
	if got := (Range{Start: 35, End: 67}).String(); got != "35-67" {
		t.Errorf("String() = %q", got)
	}
}

func TestParseSpec(t *testing.T) {
	tests := []struct {
		spec    string
		want    []int
		wantErr bool
	}{
		{"1-5", []int{1, 2, 3, 4, 5}, false},
		{"5-1", []int{1, 2, 3, 4, 5}, false},
		{"1-3, 2-4 ,10", []int{1, 2, 3, 4, 10}, false},
		{"-2-1", []int{-2, -1, 0, 1}, false},
		{"", nil, false},
		{"a-b", nil, true},
		{"7x", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := ParseSpec(tt.spec)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSpec(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseSpec(%q) = %v, want %v", tt.spec, got, tt.want)
			}
		})
	}
}

func TestParseSpecRejectsHugeSpans(t *testing.T) {
	for _, spec := range []string{
		"1-2000000000",
		"-9223372036854775807-9223372036854775807",
		"1-600000,700000-1300000",
	} {
		if _, err := ParseSpec(spec); !errors.Is(err, ErrSpecTooLarge) {
			t.Errorf("ParseSpec(%q) error = %v, want ErrSpecTooLarge", spec, err)
		}
	}

	got, err := ParseSpec("1-1000000")
	if err != nil {
		t.Fatalf("spec at the limit rejected: %v", err)
	}
	if len(got) != MaxSpecFrames {
		t.Errorf("got %d frames", len(got))
	}
}

func TestBuildChunks(t *testing.T) {
	frames, err := ParseSpec("1-10,20-22")
	if err != nil {
		t.Fatal(err)
	}

	got := BuildChunks(frames, 4)
	want := []Chunk{
		{0, Range{1, 4}},
		{1, Range{5, 8}},
		{2, Range{9, 10}},
		{3, Range{20, 22}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BuildChunks = %v, want %v", got, want)
	}

	if got := BuildChunks(frames, 0); len(got) != 2 {
		t.Errorf("size 0 should split only on gaps, got %v", got)
	}
}

func TestSelectRange(t *testing.T) {
	r, err := SelectRange("1-100,150-200", 0, -1)
	if err != nil {
		t.Fatal(err)
	}
	if r != (Range{1, 200}) {
		t.Errorf("whole span = %v", r)
	}

	r, err = SelectRange("1-100", 25, 2)
	if err != nil {
		t.Fatal(err)
	}
	if r != (Range{51, 75}) {
		t.Errorf("chunk 2 = %v", r)
	}

	if _, err := SelectRange("1-100", 25, 9); !errors.Is(err, ErrChunkNotFound) {
		t.Errorf("expected ErrChunkNotFound, got %v", err)
	}
	if _, err := SelectRange(" , ", 0, -1); !errors.Is(err, ErrNoFrames) {
		t.Errorf("expected ErrNoFrames, got %v", err)
	}
}
