package tree

// List walks the tree, returning every live item plus every external Ref
// it carries, without following any Ref. This is what the merge planner
// uses to pull a tree's contents back into the next batch to be rebuilt.
func (t *Tree[X, V]) List() ([]Item[X, V], []TreeRef) {
	items := make([]Item[X, V], 0, t.Count)
	var refs []TreeRef

	cursors := []*Node[X, V]{t.Root}
	for len(cursors) > 0 {
		n := cursors[len(cursors)-1]
		cursors = cursors[:len(cursors)-1]

		switch n.Kind {
		case KindBranch:
			cursors = append(cursors, n.Branch.Intersections...)
			cursors = append(cursors, n.Branch.Nodes...)
		case KindData:
			items = append(items, n.Data...)
		case KindRef:
			refs = append(refs, n.Ref)
		}
	}
	return items, refs
}
