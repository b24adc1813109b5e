package sched

import (
	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/emirpasic/gods/utils"
)

// readyNode is the ready-list slot of one priority level. It points back to
// the task registered at that priority.
type readyNode struct {
	pty  int
	task *Task
}

// readyList holds the tasks eligible for dispatch ordered by priority, the
// highest (numerically smallest) first. A priority appears at most once.
// Callers must hold a critical section.
type readyList struct {
	tree *redblacktree.Tree
}

func newReadyList() readyList {
	return readyList{tree: redblacktree.NewWith(utils.IntComparator)}
}

func (r *readyList) find(pty int) bool {
	_, found := r.tree.Get(pty)
	return found
}

// insert is a no-op when the priority is already present.
func (r *readyList) insert(n *readyNode) {
	if r.find(n.pty) {
		return
	}
	r.tree.Put(n.pty, n)
}

func (r *readyList) remove(pty int) {
	r.tree.Remove(pty)
}

// head returns the highest priority ready task, or nil.
func (r *readyList) head() *Task {
	node := r.tree.Left()
	if node == nil {
		return nil
	}
	return node.Value.(*readyNode).task
}

func (r *readyList) empty() bool {
	return r.tree.Empty()
}

// priorities returns the list contents in dispatch order.
func (r *readyList) priorities() []int {
	keys := r.tree.Keys()
	out := make([]int, len(keys))
	for i, k := range keys {
		out[i] = k.(int)
	}
	return out
}
