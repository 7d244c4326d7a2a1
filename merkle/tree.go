package merkle

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/canopy-network/merklevault/lib"
	"golang.org/x/sync/errgroup"
)

// parallelThreshold is the number of pairs in a level at which combining is spread over goroutines
const parallelThreshold = 1 << 12

/*
	Tree is a binary merkle tree over an ordered list of leaf digests.

	Every level is kept in memory so the same tree serves both the root and any number of
	proofs. For n leaves this is at most ~2n digests (2 * 32 * n bytes).

	example: leaves = {a, b, c}
	  level 0: a, b, c, c            <- odd level padded by duplicating the last element
	  level 1: H(a,b), H(c,c)
	  level 2: H(H(a,b),H(c,c))      <- root

	The padding duplicate is stored as a real element and is used as a sibling like any other.
	NOTE: this makes a genuine last leaf indistinguishable from its padding copy, so {a,b,c} and
	{a,b,c,c} share a root. It is kept for compatibility with existing roots and proofs.
*/
type Tree struct {
	levels [][]Digest // levels[0] are the (padded) leaves, levels[len-1] holds only the root
	size   int        // the number of leaves the tree was built from
}

// NewTree() builds the full tree from an ordered list of leaf digests
// The input slice is copied and never modified. Construction never fails
func NewTree(leaves []Digest) *Tree {
	t := &Tree{size: len(leaves)}
	switch len(leaves) {
	case 0:
		// the canonical 'empty set' root
		t.levels = [][]Digest{{ZeroDigest}}
		return t
	case 1:
		// the single leaf is the root
		t.levels = [][]Digest{{leaves[0]}}
		return t
	}
	// copy the leaves with room for a possible padding element
	level := make([]Digest, len(leaves), len(leaves)+1)
	copy(level, leaves)
	for {
		// duplicate the last element if the level has an odd number of elements
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := nextLevel(level)
		t.levels = append(t.levels, level)
		if len(next) == 1 {
			t.levels = append(t.levels, next)
			return t
		}
		level = next
	}
}

// nextLevel() combines each pair of an even length level into its parent level
func nextLevel(level []Digest) []Digest {
	pairs := len(level) / 2
	// reserve one extra slot so padding the next level doesn't reallocate
	next := make([]Digest, pairs, pairs+1)
	if pairs < parallelThreshold {
		combineRange(level, next, 0, pairs)
		return next
	}
	// each worker only writes the parent slots of its own pair range
	workers := runtime.GOMAXPROCS(0)
	chunk := (pairs + workers - 1) / workers
	var g errgroup.Group
	for start := 0; start < pairs; start += chunk {
		from, to := start, min(start+chunk, pairs)
		g.Go(func() error {
			combineRange(level, next, from, to)
			return nil
		})
	}
	_ = g.Wait()
	return next
}

// combineRange() computes parents [from, to) of level into next
func combineRange(level, next []Digest, from, to int) {
	for i := from; i < to; i++ {
		next[i] = Combine(level[2*i], level[2*i+1])
	}
}

// Root() returns the single digest of the top level
func (t *Tree) Root() Digest { return t.levels[len(t.levels)-1][0] }

// Size() returns the number of leaves the tree was built from (not counting padding)
func (t *Tree) Size() int { return t.size }

// Levels() returns the number of levels including the leaves and the root
func (t *Tree) Levels() int { return len(t.levels) }

// Depth() returns the length of every proof of this tree
func (t *Tree) Depth() int { return len(t.levels) - 1 }

// Level() returns a copy of the digests at level i, or nil if i is out of range
func (t *Tree) Level(i int) []Digest {
	if i < 0 || i >= len(t.levels) {
		return nil
	}
	return append([]Digest(nil), t.levels[i]...)
}

// Proof() returns the sibling path from the leaf at index up to, but excluding, the root
func (t *Tree) Proof(index uint64) (Proof, lib.ErrorI) {
	if index >= uint64(t.size) {
		return nil, ErrInvalidIndex(index, t.size)
	}
	proof := make(Proof, 0, t.Depth())
	for l := 0; l < t.Depth(); l++ {
		// the position of the index's ancestor in this level and the other child of its parent
		ancestor := index >> uint(l)
		sibling := ancestor ^ 1
		proof = append(proof, t.levels[l][sibling])
	}
	return proof, nil
}

// String() prints every level of the tree, one per line
func (t *Tree) String() string {
	lines := make([]string, 0, len(t.levels))
	for i, level := range t.levels {
		hashes := make([]string, len(level))
		for j, d := range level {
			hashes[j] = d.String()
		}
		lines = append(lines, fmt.Sprintf("Level %d: [%s]", i, strings.Join(hashes, ", ")))
	}
	return strings.Join(lines, "\n")
}
