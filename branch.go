package crdt

import "sync"

// TypeRef discriminates what kind of complex type a Branch represents
// (spec.md §3 "Branch").
type TypeRef int

const (
	TypeUndefined TypeRef = iota
	TypeArray
	TypeMap
	TypeText
	TypeXMLElement
	TypeXMLFragment
	TypeXMLText
	TypeXMLHook
	TypeWeakLink
	TypeSubDoc
)

// typeRefRank gives TypeRef a total order by its ordinal. RepairTypeRef
// does not consult it: whichever refinement happens first against
// TypeUndefined sticks, and any later refinement attempt to a different
// concrete TypeRef is ignored rather than overwriting it.
func typeRefRank(t TypeRef) int { return int(t) }

// Branch is a mutable node exposing either an ordered list (via Start +
// the Item linked list) or a map (Map: key -> latest live item), per
// spec.md §3.
type Branch struct {
	mu sync.RWMutex

	Start *Item
	Map   map[string]*Item

	// Item is the owning item for nested branches, nil for document
	// roots.
	Item *Item

	Name     string // root name, only meaningful for document roots
	TypeRef  TypeRef
	XMLTag   string // TypeXMLElement's tag name

	BlockLen   uint32
	ContentLen uint32

	shallow []*observerEntry
	deep    []*observerEntry
}

// NewBranch allocates an empty branch of the given type.
func NewBranch(typeRef TypeRef) *Branch {
	return &Branch{
		Map:     make(map[string]*Item),
		TypeRef: typeRef,
	}
}

// RepairTypeRef refines an Undefined branch's type the first time a typed
// handle is requested for it through a Document's GetOrInsert* methods
// (spec.md §9). A branch that
// already carries a concrete TypeRef keeps it; this makes refinement
// races deterministic by first-writer-wins rather than by comparing
// ordinals (the simplest rule that still picks one outcome consistently
// and needs no global ordering guarantee across replicas, since the
// first local resolution is whatever integration order produced it).
func (b *Branch) RepairTypeRef(typeRef TypeRef) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.TypeRef == TypeUndefined {
		b.TypeRef = typeRef
	}
}

// Len returns the block-count length of the list component.
func (b *Branch) Len() uint32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.BlockLen
}

// ContentLength returns the user-unit length of the list component.
func (b *Branch) ContentLength() uint32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ContentLen
}

// First returns the first non-deleted item in the list component, or nil
// if empty / fully deleted.
func (b *Branch) First() *Item {
	b.mu.RLock()
	defer b.mu.RUnlock()
	it := b.Start
	for it != nil {
		if !it.Deleted {
			return it
		}
		it = it.Right
	}
	return nil
}

// GetAt returns the content and within-content offset holding the index'th
// live, countable position of the list component, per spec.md §4.2/§4.9
// path computation and §6 Branch.get(index).
func (b *Branch) GetAt(index uint32, encoding OffsetKind) (*Item, uint32, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	it := b.Start
	for it != nil {
		if !it.Deleted && it.Countable() {
			l := it.Len(encoding)
			if index < l {
				return it, index, true
			}
			index -= l
		}
		it = it.Right
	}
	return nil, 0, false
}

// GetKey returns the live item currently bound to key in the map
// component, if any.
func (b *Branch) GetKey(key string) (*Item, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	it, ok := b.Map[key]
	if !ok || it.Deleted {
		return nil, false
	}
	return it, true
}

// Keys returns the live keys of the map component.
func (b *Branch) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.Map))
	for k, it := range b.Map {
		if !it.Deleted {
			out = append(out, k)
		}
	}
	return out
}

// indexOf returns the integer position of target among this branch's
// live, countable list items (spec.md §4.9 path computation: "counting
// only live, countable items to the left").
func (b *Branch) indexOf(target *Item) uint32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var idx uint32
	it := b.Start
	for it != nil {
		if it == target {
			return idx
		}
		if !it.Deleted && it.Countable() {
			idx += it.Len(OffsetBytes)
		}
		it = it.Right
	}
	return idx
}
