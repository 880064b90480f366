package crdt

import "sort"

// ClientBlockList is one client's append-only vector of blocks, ordered by
// clock with no gaps (spec.md §4.1 invariant 1: "a client's blocks, laid
// end to end, cover [0, state_vector[client]) with no gaps").
type ClientBlockList struct {
	blocks []Block
}

// findIndex returns the position of the block that contains clock, via
// binary search over block start clocks (spec.md §4.1: "binary search on
// the client's block list").
func (l *ClientBlockList) findIndex(clock Clock) (int, bool) {
	n := len(l.blocks)
	i := sort.Search(n, func(i int) bool {
		return l.blocks[i].BlockID().Clock+Clock(l.blocks[i].BlockLen()) > clock
	})
	if i >= n {
		return 0, false
	}
	b := l.blocks[i]
	if clock < b.BlockID().Clock {
		return 0, false
	}
	return i, true
}

// lastClock returns the clock one past this client's last block, i.e. the
// client's entry in the state vector.
func (l *ClientBlockList) lastClock() Clock {
	if len(l.blocks) == 0 {
		return 0
	}
	last := l.blocks[len(l.blocks)-1]
	return last.BlockID().Clock + Clock(last.BlockLen())
}

// BlockStore holds every client's block vector (spec.md §3 "Block Store").
type BlockStore struct {
	clients map[ClientID]*ClientBlockList
}

// NewBlockStore returns an empty store.
func NewBlockStore() *BlockStore {
	return &BlockStore{clients: make(map[ClientID]*ClientBlockList)}
}

// listFor returns (creating if absent) the block list for client.
func (s *BlockStore) listFor(client ClientID) *ClientBlockList {
	l, ok := s.clients[client]
	if !ok {
		l = &ClientBlockList{}
		s.clients[client] = l
	}
	return l
}

// GetState returns the next free clock for client — its state vector
// entry.
func (s *BlockStore) GetState(client ClientID) Clock {
	l, ok := s.clients[client]
	if !ok {
		return 0
	}
	return l.lastClock()
}

// StateVector materializes the store's full state vector.
func (s *BlockStore) StateVector() *StateVector {
	sv := NewStateVector()
	for client, l := range s.clients {
		if c := l.lastClock(); c > 0 {
			sv.Set(client, c)
		}
	}
	return sv
}

// Clients returns the set of clients with any blocks, sorted.
func (s *BlockStore) Clients() []ClientID {
	out := make([]ClientID, 0, len(s.clients))
	for c := range s.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Blocks returns the raw block vector for client, for iteration (update
// encoding, GC walks).
func (s *BlockStore) Blocks(client ClientID) []Block {
	l, ok := s.clients[client]
	if !ok {
		return nil
	}
	return l.blocks
}

// GetItem returns the block covering id, which must be a *Item — GC/Skip
// blocks never participate in integration lookups. Panics via
// panicInvariant if id falls in a gap or past the known state, since
// callers are expected to have checked PendingClients first.
func (s *BlockStore) GetItem(id ID) *Item {
	l, ok := s.clients[id.Client]
	if !ok {
		panicInvariant("GetItem: unknown client")
	}
	idx, ok := l.findIndex(id.Clock)
	if !ok {
		panicInvariant("GetItem: clock not covered by any block")
	}
	it, ok := l.blocks[idx].(*Item)
	if !ok {
		panicInvariant("GetItem: block at id is not an Item")
	}
	return it
}

// splitAt splits the block at index i in l so that a new block boundary
// falls exactly at absolute clock, assuming clock lands strictly inside
// the block (spec.md §4.1 invariant 2: "clean_start"/"clean_end").
// Returns the index of the right half.
func (l *ClientBlockList) splitAt(i int, clock Clock) int {
	b := l.blocks[i]
	it, ok := b.(*Item)
	if !ok {
		panicInvariant("splitAt: cannot split a non-Item block")
	}
	offset := uint32(clock - it.ID.Clock)
	leftContent, rightContent := it.Content.Split(offset, OffsetBytes)

	right := &Item{
		ID:          ID{Client: it.ID.Client, Clock: clock},
		Left:        it,
		Right:       it.Right,
		OriginLeft:  idPtr(it.LastID()),
		OriginRight: it.OriginRight,
		Parent:      it.Parent,
		ParentSub:   it.ParentSub,
		Content:     rightContent,
		Deleted:     it.Deleted,
		Keep:        it.Keep,
		Moved:       it.Moved,
	}
	if right.Right != nil {
		right.Right.Left = right
	}
	it.Content = leftContent
	it.Right = right

	out := make([]Block, 0, len(l.blocks)+1)
	out = append(out, l.blocks[:i+1]...)
	out = append(out, right)
	out = append(out, l.blocks[i+1:]...)
	l.blocks = out
	return i + 1
}

func idPtr(id ID) *ID { return &id }

// GetItemCleanStart ensures a block boundary exists exactly at id.Clock,
// splitting the covering block if necessary, and returns the item that now
// starts there (spec.md §4.1 "clean_start").
func (s *BlockStore) GetItemCleanStart(id ID) *Item {
	l := s.listFor(id.Client)
	idx, ok := l.findIndex(id.Clock)
	if !ok {
		panicInvariant("GetItemCleanStart: clock not covered")
	}
	b := l.blocks[idx]
	if b.BlockID().Clock == id.Clock {
		it, ok := b.(*Item)
		if !ok {
			panicInvariant("GetItemCleanStart: block is not an Item")
		}
		return it
	}
	rightIdx := l.splitAt(idx, id.Clock)
	return l.blocks[rightIdx].(*Item)
}

// GetItemCleanEnd ensures a block boundary exists exactly after id's last
// clock, splitting if necessary, and returns the (possibly now-shorter)
// item that ends there (spec.md §4.1 "clean_end").
func (s *BlockStore) GetItemCleanEnd(id ID) *Item {
	l := s.listFor(id.Client)
	endClock := id.Clock + 1
	idx, ok := l.findIndex(id.Clock)
	if !ok {
		panicInvariant("GetItemCleanEnd: clock not covered")
	}
	b := l.blocks[idx]
	if b.BlockID().Clock+Clock(b.BlockLen()) == endClock {
		it, ok := b.(*Item)
		if !ok {
			panicInvariant("GetItemCleanEnd: block is not an Item")
		}
		return it
	}
	l.splitAt(idx, endClock)
	return l.blocks[idx].(*Item)
}

// PushBlock appends a new block to the end of its client's vector. It
// panics via panicInvariant if the block's start clock doesn't exactly
// match the client's current state — append-only means no gaps, ever
// (spec.md §4.1 invariant 1).
func (s *BlockStore) PushBlock(b Block) {
	l := s.listFor(b.BlockID().Client)
	want := l.lastClock()
	if b.BlockID().Clock != want {
		panicInvariant("PushBlock: non-contiguous clock")
	}
	l.blocks = append(l.blocks, b)
}

// Squash attempts to merge the block at index i with the one at i+1 in
// client's vector, per spec.md §4.1 invariant 3 (mergeable adjacent same-
// client content runs with equal deletedness and no intervening origin
// references). Returns true if a merge happened.
func (s *BlockStore) Squash(client ClientID, i int) bool {
	l := s.listFor(client)
	if i < 0 || i+1 >= len(l.blocks) {
		return false
	}
	a, aok := l.blocks[i].(*Item)
	b, bok := l.blocks[i+1].(*Item)
	if !aok || !bok {
		return false
	}
	if a.Right != b {
		return false
	}
	if a.Deleted != b.Deleted {
		return false
	}
	if a.Moved != b.Moved {
		return false
	}
	if b.OriginLeft == nil || *b.OriginLeft != a.LastID() {
		return false
	}
	if a.OriginRight == nil && b.OriginRight == nil {
		// ok, both open-ended
	} else if a.OriginRight == nil || b.OriginRight == nil || *a.OriginRight != *b.OriginRight {
		return false
	}
	if a.ParentSub != b.ParentSub {
		if a.ParentSub == nil || b.ParentSub == nil || *a.ParentSub != *b.ParentSub {
			return false
		}
	}
	merged, ok := a.Content.MergeRight(b.Content)
	if !ok {
		return false
	}
	a.Content = merged
	a.Right = b.Right
	if b.Right != nil {
		b.Right.Left = a
	}
	a.OriginRight = b.OriginRight

	l.blocks = append(l.blocks[:i+1], l.blocks[i+2:]...)
	return true
}
