package crdt

import "github.com/cshekharsharma/go-yata/internal/varint"

// Assoc is the association side of a StickyIndex: whether the position
// sticks to the character/item before or after the anchor as concurrent
// edits happen around it (spec.md glossary "Sticky Index").
type Assoc int

const (
	// AssocBefore anchors just before the referenced ID.
	AssocBefore Assoc = iota
	// AssocAfter anchors just after the referenced ID.
	AssocAfter
)

// StickyIndex is a position that survives concurrent edits: either an ID
// plus an association side, or the branch-end sentinel (IsEnd true).
type StickyIndex struct {
	ID    ID
	Assoc Assoc
	IsEnd bool
}

// MoveItem is the content of a Move block (spec.md §4.8): it relocates the
// range [Start, End] of some sequence to sit logically at the Move block's
// own position.
type MoveItem struct {
	Start ID
	StartAssoc Assoc
	End   ID
	EndAssoc Assoc
	// Priority is encoded and decoded with the move; no code in this
	// package compares it, so it does not order concurrent moves.
	Priority int32
}

// moveFrame is one entry on the cursor's move stack while traversing a
// sequence that contains active Move blocks (spec.md §4.8).
type moveFrame struct {
	start *Item
	end   *Item
	dest  *Item // resume point after the frame pops: the Move item's right neighbour
	owner *Item // the Move item itself, for the cycle guard
}

// encode writes a MoveItem's fields: start id+assoc, end id+assoc,
// priority.
func (m *MoveItem) encode(w *varint.Writer) {
	encodeID(w, m.Start)
	w.WriteByte(byte(m.StartAssoc))
	encodeID(w, m.End)
	w.WriteByte(byte(m.EndAssoc))
	w.WriteVarint(int64(m.Priority))
}

func decodeMoveItem(r *varint.Reader) (*MoveItem, error) {
	start, err := decodeID(r)
	if err != nil {
		return nil, err
	}
	startAssocByte, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	end, err := decodeID(r)
	if err != nil {
		return nil, err
	}
	endAssocByte, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	priority, err := r.ReadVarint()
	if err != nil {
		return nil, err
	}
	return &MoveItem{
		Start:      start,
		StartAssoc: Assoc(startAssocByte),
		End:        end,
		EndAssoc:   Assoc(endAssocByte),
		Priority:   int32(priority),
	}, nil
}

// moveGreater reports whether a's (client, clock) is greater than b's. The
// cursor's cycle guard does not call it: a cycle is cut where the cursor
// meets a Move it has already entered, whatever the IDs.
func moveGreater(a, b *Item) bool {
	if a.ID.Client != b.ID.Client {
		return a.ID.Client > b.ID.Client
	}
	return a.ID.Clock > b.ID.Clock
}
