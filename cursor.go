package crdt

// Cursor walks a branch's live list in logical (content-unit) order,
// following Move blocks into the ranges they name (spec.md §4.8). Nothing
// in this package sets Item.Moved, so the items of a moved range are also
// yielded at their physical location.
type Cursor struct {
	branch      *Branch
	index       uint32
	blockOffset uint32
	current     *Item
	reachedEnd  bool
	moveStack   []moveFrame
	encoding    OffsetKind
}

// NewCursor returns a cursor positioned at the start of branch.
func NewCursor(branch *Branch, encoding OffsetKind) *Cursor {
	c := &Cursor{branch: branch, encoding: encoding}
	c.current = branch.Start
	c.skipNonCountable()
	return c
}

// skipNonCountable advances current past deleted/non-countable items and
// follows any Move block it lands on, per spec.md §4.8's traversal rule
// ("the cursor must treat a moved range as if it physically sat at its
// destination").
func (c *Cursor) skipNonCountable() {
	for {
		for c.current != nil && (c.current.Deleted || !c.current.Countable()) {
			if c.current.Content.Kind == ContentMove {
				c.enterMove(c.current)
				continue
			}
			c.current = c.current.Right
		}
		if c.current != nil && len(c.moveStack) > 0 {
			top := &c.moveStack[len(c.moveStack)-1]
			if pastFrame(c.current, top.end) {
				c.current = top.dest
				c.moveStack = c.moveStack[:len(c.moveStack)-1]
				continue
			}
		}
		break
	}
	if c.current == nil {
		c.reachedEnd = true
	}
}

func pastFrame(cur, end *Item) bool {
	if end == nil {
		return false
	}
	for it := end.Right; it != nil; it = it.Right {
		if it == cur {
			return true
		}
	}
	return false
}

// enterMove pushes a move-stack frame and redirects current into the
// moved range's start, so subsequent iteration yields the range's items
// in their logical (moved-to) position.
func (c *Cursor) enterMove(moveBlock *Item) {
	mv, ok := moveBlock.Content.MoveOp, moveBlock.Content.Kind == ContentMove
	if !ok || mv == nil {
		c.current = moveBlock.Right
		return
	}
	// Cyclic-move guard: a Move whose frame is already on the stack is not
	// entered again; the cursor steps past it instead of recursing forever.
	// No (client, clock) comparison between the moves of a cycle is made.
	for _, f := range c.moveStack {
		if f.owner == moveBlock {
			c.current = moveBlock.Right
			return
		}
	}
	start := c.branch.resolveStickyStart(mv)
	end := c.branch.resolveStickyEnd(mv)
	c.moveStack = append(c.moveStack, moveFrame{start: start, end: end, dest: moveBlock.Right, owner: moveBlock})
	c.current = start
}

// resolveStickyStart/End locate the physical items a MoveItem's start/end
// sticky indices currently refer to.
func (b *Branch) resolveStickyStart(m *MoveItem) *Item {
	it := b.Start
	for it != nil {
		if it.ID == m.Start {
			return it
		}
		it = it.Right
	}
	return nil
}

func (b *Branch) resolveStickyEnd(m *MoveItem) *Item {
	it := b.Start
	for it != nil {
		if it.ID == m.End {
			return it
		}
		it = it.Right
	}
	return nil
}

// Current returns the item the cursor is positioned on, or nil at the end.
func (c *Cursor) Current() *Item { return c.current }

// AtEnd reports whether the cursor has walked off the end of the branch.
func (c *Cursor) AtEnd() bool { return c.reachedEnd }

// Forward advances the cursor by n logical content units.
func (c *Cursor) Forward(n uint32) {
	for n > 0 && c.current != nil {
		avail := c.current.Len(c.encoding) - c.blockOffset
		if avail > n {
			c.blockOffset += n
			c.index += n
			return
		}
		n -= avail
		c.index += avail
		c.blockOffset = 0
		c.current = c.current.Right
		c.skipNonCountable()
	}
}

// Backward retreats the cursor by n logical content units, the mirror of
// Forward (spec.md §4.8: "forward(n) / backward(n): advance/retreat n
// user-units"). It honors the move stack symmetrically: stepping left out
// of a moved range's start pops the frame and resumes just left of the
// Move block's own position, rather than at its physical list neighbor.
func (c *Cursor) Backward(n uint32) {
	for n > 0 {
		if c.blockOffset > 0 {
			step := c.blockOffset
			if step > n {
				step = n
			}
			c.blockOffset -= step
			c.index -= step
			n -= step
			if n == 0 {
				return
			}
		}
		prev := c.stepLeft()
		if prev == nil {
			c.reachedEnd = false
			return
		}
		c.current = prev
		c.reachedEnd = false
		c.blockOffset = prev.Len(c.encoding)
		if c.blockOffset > 0 {
			c.blockOffset--
			c.index--
			n--
		}
	}
}

// stepLeft moves to the nearest live, countable item strictly left of
// current, following move frames in reverse: if current is a moved
// range's first item, popping back out lands just left of the owning
// Move block instead of the range's physical predecessor.
func (c *Cursor) stepLeft() *Item {
	for {
		var it *Item
		if c.current != nil {
			it = c.current.Left
		} else if len(c.moveStack) == 0 {
			// off the end: the step back starts from the branch's last item
			for it = c.branch.Start; it != nil && it.Right != nil; it = it.Right {
			}
		}
		for it != nil && (it.Deleted || !it.Countable()) && it.Content.Kind != ContentMove {
			it = it.Left
		}
		if it != nil && len(c.moveStack) > 0 {
			top := c.moveStack[len(c.moveStack)-1]
			if it == top.start.Left || (top.start != nil && it == nil) {
				c.moveStack = c.moveStack[:len(c.moveStack)-1]
				c.current = top.owner
				continue
			}
		}
		if it != nil && it.Content.Kind == ContentMove {
			mv := it.Content.MoveOp
			if mv != nil {
				end := c.branch.resolveStickyEnd(mv)
				c.moveStack = append(c.moveStack, moveFrame{start: c.branch.resolveStickyStart(mv), end: end, dest: it.Right, owner: it})
				c.current = end
				continue
			}
		}
		return it
	}
}

// Index returns the cursor's current logical offset within the branch.
func (c *Cursor) Index() uint32 { return c.index }
