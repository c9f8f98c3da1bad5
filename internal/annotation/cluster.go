package annotation

// Cluster is a maximal group of annotations connected by transitive strict
// overlap. Members are contiguous in key order, so First and Last fully
// describe the membership together with the Index.
type Cluster struct {
	First Key `json:"first"`
	Last  Key `json:"last"`
	Start int `json:"start"`
	End   int `json:"end"`
}

// Singleton reports whether the cluster has exactly one member.
func (c Cluster) Singleton() bool {
	return c.First == c.Last
}

// Contains reports whether pos lies in [Start, End).
func (c Cluster) Contains(pos int) bool {
	return c.Start <= pos && pos < c.End
}

// Covers reports whether the cluster bounds contain the span of a.
func (c Cluster) Covers(a Annotation) bool {
	return c.Start <= a.Start && c.End >= a.End
}

// HasKey reports whether k lies between First and Last inclusive.
func (c Cluster) HasKey(k Key) bool {
	return !k.Less(c.First) && !c.Last.Less(k)
}

func (c Cluster) overlaps(start, end int) bool {
	return overlaps(c.Start, c.End, start, end)
}

// ClusterHandle addresses a cluster slot in a ClusterSet. A handle becomes
// stale once its cluster is merged or removed; Get reports that instead of
// returning another cluster that reused the slot.
type ClusterHandle struct {
	slot int32
	gen  uint32
}

type clusterSlot struct {
	cluster Cluster
	gen     uint32
	live    bool
}

// ClusterSet partitions the annotations of the open document into clusters.
// Clusters are stored in an arena; order holds the live handles in list order.
type ClusterSet struct {
	slots []clusterSlot
	free  []int32
	order []ClusterHandle
	inv   invariants
}

// NewClusterSet creates an empty cluster set.
func NewClusterSet() *ClusterSet {
	return &ClusterSet{}
}

// Len returns the number of clusters.
func (s *ClusterSet) Len() int {
	return len(s.order)
}

// Clear removes every cluster.
func (s *ClusterSet) Clear() {
	for _, h := range s.order {
		s.release(h)
	}
	s.order = s.order[:0]
}

// Get returns the cluster addressed by h.
func (s *ClusterSet) Get(h ClusterHandle) (Cluster, bool) {
	if h.slot < 0 || int(h.slot) >= len(s.slots) {
		return Cluster{}, false
	}
	slot := s.slots[h.slot]
	if !slot.live || slot.gen != h.gen {
		return Cluster{}, false
	}
	return slot.cluster, true
}

// Clusters returns a snapshot of the clusters in list order.
func (s *ClusterSet) Clusters() []Cluster {
	out := make([]Cluster, 0, len(s.order))
	for _, h := range s.order {
		out = append(out, s.slots[h.slot].cluster)
	}
	return out
}

// Handles returns the live handles in list order.
func (s *ClusterSet) Handles() []ClusterHandle {
	return append([]ClusterHandle(nil), s.order...)
}

// At returns the cluster whose range contains pos.
func (s *ClusterSet) At(pos int) (ClusterHandle, Cluster, bool) {
	for _, h := range s.order {
		c := s.slots[h.slot].cluster
		if c.Contains(pos) {
			return h, c, true
		}
	}
	return ClusterHandle{}, Cluster{}, false
}

// Find returns the cluster that holds the annotation, located by its bounds.
func (s *ClusterSet) Find(a Annotation) (ClusterHandle, Cluster, bool) {
	for _, h := range s.order {
		c := s.slots[h.slot].cluster
		if c.Covers(a) {
			return h, c, true
		}
	}
	return ClusterHandle{}, Cluster{}, false
}

// Insert adds a new annotation, merging every cluster it overlaps into one.
func (s *ClusterSet) Insert(a Annotation) ClusterHandle {
	merged := Cluster{First: a.Key(), Last: a.Key(), Start: a.Start, End: a.End}

	kept := s.order[:0]
	for _, h := range s.order {
		c := s.slots[h.slot].cluster
		if !c.overlaps(a.Start, a.End) {
			kept = append(kept, h)
			continue
		}
		if c.Start < merged.Start {
			merged.Start = c.Start
		}
		if c.End > merged.End {
			merged.End = c.End
		}
		if c.First.Less(merged.First) {
			merged.First = c.First
		}
		if merged.Last.Less(c.Last) {
			merged.Last = c.Last
		}
		s.release(h)
	}
	s.order = kept

	h := s.alloc(merged)
	s.order = append(s.order, h)
	return h
}

// Remove takes a out of its cluster and re-derives the partition of the
// remaining members. lookup resolves member keys to annotations and idx
// supplies the members in key order. It reports false when the annotation's
// cluster cannot be located.
func (s *ClusterSet) Remove(a Annotation, idx *Index, lookup func(id int64) (Annotation, bool)) bool {
	h, c, ok := s.Find(a)
	if !ok {
		s.inv.violated("cluster.remove", "no cluster covers %s", a)
		return false
	}
	s.detach(h)

	tmp := &ClusterSet{inv: s.inv}
	removedKey := a.Key()
	idx.Range(c.First, c.Last, func(k Key) bool {
		if k == removedKey {
			return true
		}
		member, found := lookup(k.ID)
		if !found {
			s.inv.violated("cluster.remove", "member %s missing from annotation table", k)
			return true
		}
		tmp.Insert(member)
		return true
	})

	for _, th := range tmp.order {
		s.order = append(s.order, s.alloc(tmp.slots[th.slot].cluster))
	}
	return true
}

// detach removes h from the list and frees its slot.
func (s *ClusterSet) detach(h ClusterHandle) {
	for i, oh := range s.order {
		if oh == h {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.release(h)
}

func (s *ClusterSet) alloc(c Cluster) ClusterHandle {
	if n := len(s.free); n > 0 {
		slot := s.free[n-1]
		s.free = s.free[:n-1]
		sl := &s.slots[slot]
		sl.cluster = c
		sl.live = true
		return ClusterHandle{slot: slot, gen: sl.gen}
	}
	s.slots = append(s.slots, clusterSlot{cluster: c, live: true})
	return ClusterHandle{slot: int32(len(s.slots) - 1)}
}

func (s *ClusterSet) release(h ClusterHandle) {
	sl := &s.slots[h.slot]
	sl.live = false
	sl.gen++
	sl.cluster = Cluster{}
	s.free = append(s.free, h.slot)
}
