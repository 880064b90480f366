package crdt

// integrateBlock finds item's final position among concurrent siblings and
// splices it into the live list, following the YATA algorithm (spec.md
// §4.2): scan right from the origin-left anchor, and for every block that
// is itself concurrent with item (i.e. whose own origin-left is the same
// as item's), let whichever has the lower (client, clock) win the
// leftmost slot. This generalizes the teacher's ID.Greater tie-break in
// rga.go from "new item always wins/loses outright" to YATA's anchored
// scan, since plain RGA has no origin-right anchor to bound the scan.
func integrateBlock(store *BlockStore, item *Item) {
	var left *Item
	if item.OriginLeft != nil {
		left = store.GetItemCleanEnd(*item.OriginLeft)
	}
	var right *Item
	if left != nil {
		right = left.Right
	} else if item.Parent.Kind == ParentBranch && item.Parent.Branch != nil {
		right = item.Parent.Branch.Start
	}

	var originRightItem *Item
	if item.OriginRight != nil {
		originRightItem = store.GetItemCleanStart(*item.OriginRight)
	}

	if right != nil || left != nil {
		// conflict walks right from item's origin-left anchor toward the
		// origin-right boundary, absorbing every candidate that must sort
		// before item into left as it goes.
		conflict := right
		for conflict != nil && conflict != originRightItem {
			var conflictOriginLeft *Item
			if conflict.OriginLeft != nil {
				conflictOriginLeft = store.GetItem(*conflict.OriginLeft)
			}

			switch {
			case samePtr(conflictOriginLeft, left):
				// conflict and item share an origin-left: they're directly
				// concurrent siblings. Lower (client,clock) sorts first.
				if item.ID.Less(conflict.ID) {
					goto found
				}
				left = conflict
				conflict = conflict.Right
			default:
				// conflict's origin-left is some other block: when that
				// block lies between left and conflict, conflict belongs to
				// a run already passed and is passed too; otherwise the
				// scan stops and item goes before conflict.
				if conflictOriginLeft != nil && !isReachableRight(left, conflictOriginLeft, conflict) {
					goto found
				}
				left = conflict
				conflict = conflict.Right
			}
			right = conflict
		}
	}

found:
	item.Left = left
	item.Right = right
	if left != nil {
		left.Right = item
	} else if item.Parent.Kind == ParentBranch && item.Parent.Branch != nil {
		item.Parent.Branch.Start = item
	}
	if right != nil {
		right.Left = item
	}

	if item.Parent.Kind == ParentBranch && item.Parent.Branch != nil {
		b := item.Parent.Branch
		b.mu.Lock()
		b.BlockLen++
		if !item.Deleted && item.Countable() {
			b.ContentLen += item.Len(OffsetBytes)
		}
		if item.ParentSub != nil {
			// map-ish write: this item becomes the live binding for the
			// key unless a later (higher-clock) write already claimed it.
			if cur, ok := b.Map[*item.ParentSub]; !ok || cur.ID.Less(item.ID) {
				b.Map[*item.ParentSub] = item
			}
		}
		b.mu.Unlock()
	}
}

func samePtr(a, b *Item) bool { return a == b }

// isReachableRight reports whether walking right from `from` reaches
// `target` before falling off the list — used to decide whether a
// conflict candidate's origin-left is still within the current scan
// window rather than from an unrelated, already-settled region.
func isReachableRight(from, target, stop *Item) bool {
	it := from
	for it != nil && it != stop {
		if it == target {
			return true
		}
		it = it.Right
	}
	return it == target
}
