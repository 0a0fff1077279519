// Package renderer builds aerender command lines and locates the
// aerender executable.
package renderer

import (
	"strconv"
	"strings"

	"github.com/smazurov/rendernode/internal/frames"
)

// DefaultMFRPercent is the share of the machine each child may use for
// multi-frame rendering.
const DefaultMFRPercent = 100

// Command describes the fixed part of every child's aerender invocation.
type Command struct {
	Executable string
	Project    string
	Comp       string
	// RQIndex selects a render queue item; < 0 omits the flag.
	RQIndex    int
	Sound      string
	RSTemplate string
	OMTemplate string
	DisableMFR bool
	MFRPercent int
	// Extra is appended verbatim after the generated flags.
	Extra []string
}

// Args returns the full argv, executable first, rendering r into output.
func (c Command) Args(r frames.Range, output string) []string {
	args := []string{
		c.Executable,
		"-project", c.Project,
		"-output", output,
		"-sound", NormalizeSound(c.Sound),
		"-s", strconv.Itoa(r.Start),
		"-e", strconv.Itoa(r.End),
	}
	if c.Comp != "" {
		args = append(args, "-comp", c.Comp)
	}
	if c.RQIndex >= 0 {
		args = append(args, "-rqindex", strconv.Itoa(c.RQIndex))
	}
	if c.RSTemplate != "" {
		args = append(args, "-RStemplate", c.RSTemplate)
	}
	if c.OMTemplate != "" {
		args = append(args, "-OMtemplate", c.OMTemplate)
	}

	mfr := "ON"
	if c.DisableMFR {
		mfr = "OFF"
	}
	percent := c.MFRPercent
	if percent <= 0 || percent > 100 {
		percent = DefaultMFRPercent
	}
	args = append(args, "-mfr", mfr, strconv.Itoa(percent))
	return append(args, c.Extra...)
}

// NormalizeSound maps any value other than OFF (case-insensitive) to ON.
func NormalizeSound(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), "OFF") {
		return "OFF"
	}
	return "ON"
}
