package crdt

// PathSegmentKind discriminates a Path's elements.
type PathSegmentKind int

const (
	// PathKey means this segment is a map-ish key.
	PathKey PathSegmentKind = iota
	// PathIndex means this segment is a list-ish integer position.
	PathIndex
)

// PathSegment is one step on the route from a document root to a branch:
// either the map key or the countable-item index taken at that step
// (spec.md §4.9).
type PathSegment struct {
	Kind  PathSegmentKind
	Key   string
	Index uint32
}

// Path is a root-to-branch route, outermost segment first.
type Path []PathSegment

// PathedEvent pairs a changed branch's Event with its Path from the
// observing ancestor, the payload a deep observer bundle delivers
// (spec.md §4.9 "a bundle Events mapping path->event").
type PathedEvent struct {
	Path  Path
	Event Event
}

// computePath walks parent pointers from `to` up to (but not including)
// `from`, building the path in root-to-leaf order.
func computePath(from, to *Branch) Path {
	var segments []PathSegment
	child := to
	for child != nil && child != from {
		item := child.Item
		if item == nil {
			break
		}
		if item.ParentSub != nil {
			segments = append(segments, PathSegment{Kind: PathKey, Key: *item.ParentSub})
		} else {
			parentBranch := item.Parent.Branch
			if parentBranch == nil {
				break
			}
			segments = append(segments, PathSegment{Kind: PathIndex, Index: parentBranch.indexOf(item)})
		}
		if item.Parent.Kind != ParentBranch {
			break
		}
		child = item.Parent.Branch
	}
	// segments were collected leaf-to-root; reverse for root-to-leaf.
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return segments
}
