package annotation

import (
	"github.com/google/btree"
)

// indexDegree is the B-tree branching factor. Documents hold at most a few
// thousand annotations, so a small degree keeps nodes cache friendly.
const indexDegree = 16

// Index is the ordered set of annotation keys for the open document.
// It is the single source of truth for annotation ordering.
type Index struct {
	tree *btree.BTreeG[Key]
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{tree: btree.NewG[Key](indexDegree, Key.Less)}
}

// Insert adds k. It reports false if k was already present.
func (x *Index) Insert(k Key) bool {
	_, replaced := x.tree.ReplaceOrInsert(k)
	return !replaced
}

// Erase removes k. It reports false if k was not present.
func (x *Index) Erase(k Key) bool {
	_, ok := x.tree.Delete(k)
	return ok
}

// Has reports whether k is in the index.
func (x *Index) Has(k Key) bool {
	return x.tree.Has(k)
}

// Len returns the number of keys.
func (x *Index) Len() int {
	return x.tree.Len()
}

// Clear removes every key.
func (x *Index) Clear() {
	x.tree.Clear(false)
}

// LowerBound returns the first key >= k.
func (x *Index) LowerBound(k Key) (Key, bool) {
	var found Key
	ok := false
	x.tree.AscendGreaterOrEqual(k, func(item Key) bool {
		found, ok = item, true
		return false
	})
	return found, ok
}

// Predecessor returns the greatest key strictly less than k.
func (x *Index) Predecessor(k Key) (Key, bool) {
	var found Key
	ok := false
	x.tree.DescendLessOrEqual(k, func(item Key) bool {
		if item == k {
			return true
		}
		found, ok = item, true
		return false
	})
	return found, ok
}

// First returns the smallest key.
func (x *Index) First() (Key, bool) {
	return x.tree.Min()
}

// Last returns the greatest key.
func (x *Index) Last() (Key, bool) {
	return x.tree.Max()
}

// Range calls fn for every key in [from, to] in ascending order until fn
// returns false.
func (x *Index) Range(from, to Key, fn func(Key) bool) {
	x.tree.AscendGreaterOrEqual(from, func(item Key) bool {
		if to.Less(item) {
			return false
		}
		return fn(item)
	})
}

// Keys returns all keys in ascending order.
func (x *Index) Keys() []Key {
	keys := make([]Key, 0, x.tree.Len())
	x.tree.Ascend(func(item Key) bool {
		keys = append(keys, item)
		return true
	})
	return keys
}
