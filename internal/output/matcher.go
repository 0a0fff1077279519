// Package output recognizes the files a render writes for a given output
// specification.
package output

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind classifies an output specification.
type Kind int

// Output specification kinds.
const (
	KindSingle  Kind = iota // one file, exact name
	KindBracket             // name_[#####].png or name_[00000].png
	KindHash                // name_####.png
	KindPrintf              // name_%04d.png
)

func (k Kind) String() string {
	switch k {
	case KindBracket:
		return "bracket"
	case KindHash:
		return "hash"
	case KindPrintf:
		return "printf"
	default:
		return "single"
	}
}

var (
	bracketToken = regexp.MustCompile(`^(.*)\[([#0]+)\](.*)$`)
	hashToken    = regexp.MustCompile(`^(.*?)(#{3,})(\.[^.]*)?$`)
	printfToken  = regexp.MustCompile(`^(.*)%0?(\d*)d(.*)$`)

	sequenceHint = regexp.MustCompile(`\[[#0]+\]|#{3,}|%0?\d*d`)
)

// IsSequence reports whether spec looks like an image-sequence pattern.
func IsSequence(spec string) bool {
	return sequenceHint.MatchString(spec)
}

// Classify returns the kind of output spec.
func Classify(spec string) Kind {
	return NewMatcher(spec).kind
}

// Matcher tests bare file names against an output specification.
type Matcher struct {
	kind Kind
	base string
	rx   *regexp.Regexp
}

// NewMatcher builds a matcher from the base name of spec.
func NewMatcher(spec string) Matcher {
	base := baseName(spec)

	if m := bracketToken.FindStringSubmatch(base); m != nil {
		return Matcher{kind: KindBracket, base: base, rx: counterRegexp(m[1], digitsExactly(len(m[2])), m[3])}
	}
	if m := hashToken.FindStringSubmatch(base); m != nil {
		return Matcher{kind: KindHash, base: base, rx: counterRegexp(m[1], digitsExactly(len(m[2])), m[3])}
	}
	if m := printfToken.FindStringSubmatch(base); m != nil {
		digits := `\d+`
		if width, err := strconv.Atoi(m[2]); err == nil && width > 0 {
			digits = digitsExactly(width)
		}
		return Matcher{kind: KindPrintf, base: base, rx: counterRegexp(m[1], digits, m[3])}
	}
	return Matcher{kind: KindSingle, base: base}
}

// Kind returns the classification of the specification.
func (m Matcher) Kind() Kind {
	return m.kind
}

// Match reports whether name (a bare file name) is a render output.
func (m Matcher) Match(name string) bool {
	if m.rx == nil {
		return strings.EqualFold(name, m.base)
	}
	return m.rx.MatchString(name)
}

// baseName strips directories using both separators, so Windows output
// paths classify the same on every host.
func baseName(spec string) string {
	if i := strings.LastIndexAny(spec, `/\`); i >= 0 {
		return spec[i+1:]
	}
	return spec
}

func digitsExactly(n int) string {
	return fmt.Sprintf(`\d{%d}`, n)
}

func counterRegexp(prefix, digits, suffix string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(prefix) + digits + regexp.QuoteMeta(suffix) + `$`)
}
