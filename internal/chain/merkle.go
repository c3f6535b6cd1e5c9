package chain

import (
	"fmt"
	"time"

	"github.com/sheikh-saqib/tamper-evident-ledger/internal/models"
)

// MerkleTree keeps every level, leaves first, root last.
type MerkleTree struct {
	Root      string     `json:"root"`
	Levels    [][]string `json:"levels"`
	LeafCount int        `json:"leafCount"`
}

// ProofStep is one sibling on the path from a leaf to the root.
type ProofStep struct {
	Hash string `json:"hash"`
	Left bool   `json:"left"` // sibling sits on the left
}

// BuildTree combines leaves pairwise with HashPair. A level with an odd
// count pairs its last node with itself.
func BuildTree(leaves []string) MerkleTree {
	if len(leaves) == 0 {
		return MerkleTree{Root: EmptyRoot, Levels: [][]string{{EmptyRoot}}}
	}

	level := append([]string(nil), leaves...)
	tree := MerkleTree{LeafCount: len(leaves), Levels: [][]string{level}}

	for len(level) > 1 {
		next := make([]string, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			right := level[i]
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, HashPair(level[i], right))
		}
		level = next
		tree.Levels = append(tree.Levels, level)
	}

	tree.Root = level[0]
	return tree
}

// Root is BuildTree(leaves).Root.
func Root(leaves []string) string {
	return BuildTree(leaves).Root
}

// Proof returns the inclusion path for the leaf at index.
func (t MerkleTree) Proof(index int) ([]ProofStep, error) {
	if t.LeafCount == 0 || index < 0 || index >= t.LeafCount {
		return nil, fmt.Errorf("leaf index %d out of range [0,%d)", index, t.LeafCount)
	}

	var steps []ProofStep
	idx := index
	for _, level := range t.Levels[:len(t.Levels)-1] {
		if idx%2 == 0 {
			sibling := level[idx]
			if idx+1 < len(level) {
				sibling = level[idx+1]
			}
			steps = append(steps, ProofStep{Hash: sibling, Left: false})
		} else {
			steps = append(steps, ProofStep{Hash: level[idx-1], Left: true})
		}
		idx /= 2
	}
	return steps, nil
}

// VerifyProof folds proof over leaf and compares the result with root.
func VerifyProof(leaf string, proof []ProofStep, root string) bool {
	h := leaf
	for _, step := range proof {
		if step.Left {
			h = HashPair(step.Hash, h)
		} else {
			h = HashPair(h, step.Hash)
		}
	}
	return h == root
}

// DayLeaves returns the currentHash of every entry inside day, in timestamp
// order. The window is [00:00:00.000, 23:59:59.999] in loc.
func DayLeaves(entries []models.LedgerEntry, day models.Day, loc *time.Location) []string {
	start, end := day.Window(loc)
	var leaves []string
	for _, e := range SortByTimestamp(entries) {
		if e.Timestamp >= start && e.Timestamp <= end {
			leaves = append(leaves, e.CurrentHash)
		}
	}
	return leaves
}

// DailyTree builds the Merkle tree of one day's entries.
func DailyTree(entries []models.LedgerEntry, day models.Day, loc *time.Location) MerkleTree {
	return BuildTree(DayLeaves(entries, day, loc))
}

// DailyRoot is the commitment for one day. An empty day yields EmptyRoot.
func DailyRoot(entries []models.LedgerEntry, day models.Day, loc *time.Location) string {
	return DailyTree(entries, day, loc).Root
}
