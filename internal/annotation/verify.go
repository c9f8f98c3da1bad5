package annotation

import (
	"fmt"
	"sort"
)

// Issue is one inconsistency found by Verify.
type Issue struct {
	Key     Key
	Details string
}

// Verify checks the partition against the index. Every annotation must sit in
// exactly one cluster, clusters must not overlap, and each cluster's bounds
// must match its members. It is O(n log n) and meant for tests and the stats
// command, not for the event path.
func (e *Engine) Verify() []Issue {
	var issues []Issue

	clusters := e.clusters.Clusters()
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].First.Less(clusters[j].First) })

	for i := 1; i < len(clusters); i++ {
		prev, cur := clusters[i-1], clusters[i]
		if prev.overlaps(cur.Start, cur.End) {
			issues = append(issues, Issue{Key: cur.First, Details: fmt.Sprintf("cluster [%d,%d) overlaps [%d,%d)", cur.Start, cur.End, prev.Start, prev.End)})
		}
		if !prev.Last.Less(cur.First) {
			issues = append(issues, Issue{Key: cur.First, Details: "clusters interleave in key order"})
		}
	}

	covered := 0
	for _, c := range clusters {
		start, end, n := -1, -1, 0
		e.index.Range(c.First, c.Last, func(k Key) bool {
			a, ok := e.byID[k.ID]
			if !ok {
				issues = append(issues, Issue{Key: k, Details: "indexed key without annotation"})
				return true
			}
			if n == 0 || a.Start < start {
				start = a.Start
			}
			if n == 0 || a.End > end {
				end = a.End
			}
			n++
			return true
		})
		covered += n
		if n == 0 {
			issues = append(issues, Issue{Key: c.First, Details: "empty cluster"})
			continue
		}
		if start != c.Start || end != c.End {
			issues = append(issues, Issue{Key: c.First, Details: fmt.Sprintf("cluster bounds [%d,%d) but members span [%d,%d)", c.Start, c.End, start, end)})
		}
	}

	if covered != e.index.Len() {
		issues = append(issues, Issue{Details: fmt.Sprintf("clusters cover %d of %d annotations", covered, e.index.Len())})
	}
	if len(e.byID) != e.index.Len() {
		issues = append(issues, Issue{Details: fmt.Sprintf("%d annotations loaded but %d indexed", len(e.byID), e.index.Len())})
	}
	return issues
}
