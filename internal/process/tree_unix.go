//go:build unix && !linux

package process

import (
	"os/exec"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Descendants returns every live descendant of pid, breadth first.
func Descendants(pid int) []int {
	out, err := exec.Command("ps", "-A", "-o", "pid=", "-o", "ppid=").Output()
	if err != nil {
		return nil
	}
	return walkTree(pid, parsePSTable(string(out)))
}

func parsePSTable(out string) map[int][]int {
	children := make(map[int][]int)
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		child, err1 := strconv.Atoi(fields[0])
		parent, err2 := strconv.Atoi(fields[1])
		if err1 != nil || err2 != nil {
			continue
		}
		children[parent] = append(children[parent], child)
	}
	return children
}

func isZombie(int) bool {
	return false
}

func groupAlive(pgid int) bool {
	return unix.Kill(-pgid, 0) == nil
}
