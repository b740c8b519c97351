package resolver

// Overlaps reports strict interval intersection between two events.
// Half-open semantics: back-to-back events (a.End == b.Start) do NOT
// overlap, so unrelated adjacent bookings never chain into one group.
func Overlaps(a, b Event) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// GroupOverlapping partitions events into maximal transitively-overlapping
// groups: if A overlaps B and B overlaps C, all three share a group even
// when A and C never touch. Groups preserve first-encounter order, both
// between and within groups, so run logs are reproducible.
//
// O(n^2) pairwise checks; n is one day's candidates, expected small.
func GroupOverlapping(events []Event) [][]Event {
	if len(events) == 0 {
		return nil
	}

	uf := newUnionFind(len(events))
	for i := 0; i < len(events); i++ {
		for j := i + 1; j < len(events); j++ {
			if Overlaps(events[i], events[j]) {
				uf.union(i, j)
			}
		}
	}

	// Partition by final root, keeping input order.
	byRoot := make(map[int]int, len(events))
	groups := make([][]Event, 0, len(events))
	for i, e := range events {
		root := uf.find(i)
		gi, ok := byRoot[root]
		if !ok {
			gi = len(groups)
			byRoot[root] = gi
			groups = append(groups, nil)
		}
		groups[gi] = append(groups[gi], e)
	}
	return groups
}

// unionFind is a disjoint-set over event indices, scoped to one
// GroupOverlapping call.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p}
}

// find is iterative with path compression; no recursion, so call depth
// stays bounded regardless of input size.
func (u *unionFind) find(x int) int {
	root := x
	for u.parent[root] != root {
		root = u.parent[root]
	}
	for u.parent[x] != root {
		u.parent[x], x = root, u.parent[x]
	}
	return root
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	// Attach the larger root under the smaller so group roots track the
	// earliest member; ordering is finalized by the partition pass anyway.
	if rb < ra {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
}
