//go:build linux

package process

import "github.com/prometheus/procfs"

// Descendants returns every live descendant of pid, breadth first.
func Descendants(pid int) []int {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil
	}
	procs, err := fs.AllProcs()
	if err != nil {
		return nil
	}

	children := make(map[int][]int)
	for _, p := range procs {
		stat, err := p.Stat()
		if err != nil {
			continue
		}
		children[stat.PPID] = append(children[stat.PPID], p.PID)
	}
	return walkTree(pid, children)
}

func isZombie(pid int) bool {
	p, err := procfs.NewProc(pid)
	if err != nil {
		return false
	}
	stat, err := p.Stat()
	if err != nil {
		return false
	}
	return stat.State == "Z"
}

// groupAlive reports whether any non-zombie process is in group pgid.
func groupAlive(pgid int) bool {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return false
	}
	procs, err := fs.AllProcs()
	if err != nil {
		return false
	}
	for _, p := range procs {
		stat, err := p.Stat()
		if err != nil {
			continue
		}
		if stat.PGRP == pgid && stat.State != "Z" {
			return true
		}
	}
	return false
}
