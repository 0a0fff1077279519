package process

import (
	"errors"
	"slices"
)

// PIDHandle targets an arbitrary process by pid together with every
// descendant seen so far. Descendants are re-scanned on each signal so
// helpers spawned late are still covered.
type PIDHandle struct {
	pid  int
	tree []int
}

// NewPIDHandle snapshots pid and its live descendants.
func NewPIDHandle(pid int) *PIDHandle {
	h := &PIDHandle{pid: pid}
	h.refresh()
	return h
}

// PID returns the root pid.
func (h *PIDHandle) PID() int { return h.pid }

// Tree returns the root followed by every known descendant.
func (h *PIDHandle) Tree() []int {
	return slices.Clone(h.tree)
}

// SendGraceful asks every live process in the tree to exit.
func (h *PIDHandle) SendGraceful() error {
	h.refresh()
	return h.signalAll(false)
}

// SendForceful kills every live process in the tree.
func (h *PIDHandle) SendForceful() error {
	h.refresh()
	return h.signalAll(true)
}

// Alive reports whether any process in the tree is still running.
func (h *PIDHandle) Alive() bool {
	return slices.ContainsFunc(h.tree, pidAlive)
}

func (h *PIDHandle) refresh() {
	if !pidAlive(h.pid) {
		if len(h.tree) == 0 {
			h.tree = []int{h.pid}
		}
		return
	}
	seen := slices.Clone(h.tree)
	if !slices.Contains(seen, h.pid) {
		seen = append([]int{h.pid}, seen...)
	}
	for _, d := range Descendants(h.pid) {
		if !slices.Contains(seen, d) {
			seen = append(seen, d)
		}
	}
	h.tree = seen
}

func (h *PIDHandle) signalAll(force bool) error {
	var errs []error
	for _, pid := range h.tree {
		if !pidAlive(pid) {
			continue
		}
		if err := signalPID(pid, force); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
