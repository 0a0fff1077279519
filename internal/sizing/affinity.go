package sizing

import "sort"

// CPUBlock is an ordered list of CPU ids assigned to one worker.
type CPUBlock []int

// BuildAffinity assigns the CPUs of pools to workers round-robin.
// Pools are flattened in order, duplicates and negative ids dropped.
// Returns nil when workers <= 0 or no CPU ids remain.
func BuildAffinity(workers int, pools [][]int) []CPUBlock {
	if workers <= 0 {
		return nil
	}

	seen := make(map[int]struct{})
	var ids []int
	for _, pool := range pools {
		for _, id := range pool {
			if id < 0 {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	blocks := make([]CPUBlock, workers)
	for i, id := range ids {
		blocks[i%workers] = append(blocks[i%workers], id)
	}
	return blocks
}

// PoolsFromMap orders a NUMA node map by node name.
func PoolsFromMap(m map[string][]int) [][]int {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	pools := make([][]int, 0, len(names))
	for _, name := range names {
		pools = append(pools, m[name])
	}
	return pools
}
