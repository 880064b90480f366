package crdt

import (
	"unicode/utf16"

	"github.com/cshekharsharma/go-yata/internal/varint"
)

// OffsetKind governs how string content reports its length: in raw bytes,
// or in UTF-16 code units (the metric JavaScript/host consumers expect).
type OffsetKind int

const (
	// OffsetBytes counts string length in bytes.
	OffsetBytes OffsetKind = iota
	// OffsetUtf16 counts string length in UTF-16 code units. Splits never
	// land inside a surrogate pair (spec.md §4.1, §9).
	OffsetUtf16
)

// ParentKind discriminates how an Item's parent is currently recorded.
type ParentKind int

const (
	// ParentNamed means the item's parent is a root-level branch,
	// identified by name, not yet resolved to a *Branch pointer.
	ParentNamed ParentKind = iota
	// ParentByID means the item's parent is a nested branch whose owning
	// item hasn't been located locally yet (deferred during decode).
	ParentByID
	// ParentBranch means the item's parent has been repaired to a direct
	// *Branch pointer (spec.md §4.2 point 6).
	ParentBranch
	// ParentInherit means the wire encoding omitted the parent because an
	// origin was present (spec.md §4.3: "if any origin flag is set: parent
	// is inherited from that origin and NOT encoded"); resolveParent
	// copies it from whichever origin item is already in the store.
	ParentInherit
)

// Parent names the owner of an item: either a root name, the ID of the
// owning item (before repair), or a resolved *Branch (after repair).
type Parent struct {
	Kind   ParentKind
	Named  string
	ID     ID
	Branch *Branch
}

// ContentKind discriminates the ItemContent tagged union. Values 1..10
// match spec.md §4.3's enumeration order; 0 is reserved so it never
// collides with the GC sentinel info byte.
type ContentKind uint8

const (
	ContentDeleted ContentKind = iota + 1
	ContentJSON
	ContentBinary
	ContentString
	ContentEmbed
	ContentFormat
	ContentType
	ContentAny
	ContentDoc
	ContentMove
)

// ItemContent is the tagged union of payloads an Item can carry. Exactly
// one of the typed fields is meaningful, selected by Kind; this mirrors
// the teacher's preference for a plain exhaustively-switched struct over
// an interface with virtual dispatch (spec.md §9 "avoid virtual
// methods").
type ItemContent struct {
	Kind ContentKind

	DeletedLen uint32    // ContentDeleted
	Values     []Any     // ContentJSON / ContentAny
	Binary     []byte    // ContentBinary
	Str        string    // ContentString
	Embed      Any       // ContentEmbed
	FormatKey  string    // ContentFormat
	FormatVal  Any       // ContentFormat
	TypeBranch *Branch   // ContentType
	MoveOp     *MoveItem // ContentMove
	DocGUID    string    // ContentDoc
}

// Len reports how many logical positions this content occupies — the
// block's span in its client's clock range.
func (c ItemContent) Len(encoding OffsetKind) uint32 {
	switch c.Kind {
	case ContentDeleted:
		return c.DeletedLen
	case ContentJSON, ContentAny:
		return uint32(len(c.Values))
	case ContentBinary:
		return 1
	case ContentString:
		if encoding == OffsetUtf16 {
			return uint32(len(utf16.Encode([]rune(c.Str))))
		}
		return uint32(len(c.Str))
	case ContentEmbed:
		return 1
	case ContentFormat:
		return 1
	case ContentType:
		return 1
	case ContentMove:
		return 1
	case ContentDoc:
		return 1
	default:
		return 0
	}
}

// Countable reports whether this content contributes to its branch's
// content_len (spec.md glossary: "Countable").
func (c ItemContent) Countable() bool {
	switch c.Kind {
	case ContentFormat, ContentMove:
		return false
	default:
		return true
	}
}

// splitStringAt splits a UTF-16-aware string content at logical offset
// idx (in the configured encoding's units), returning the left and right
// halves. It never lands inside a surrogate pair: when encoding ==
// OffsetUtf16 and idx falls between a high and a low surrogate, the
// boundary moves one unit right, past the low surrogate.
func splitStringAt(s string, idx uint32, encoding OffsetKind) (string, string) {
	if encoding == OffsetBytes {
		return s[:idx], s[idx:]
	}
	units := utf16.Encode([]rune(s))
	if idx > uint32(len(units)) {
		idx = uint32(len(units))
	}
	if idx > 0 && idx < uint32(len(units)) && units[idx-1] >= 0xd800 && units[idx-1] < 0xdc00 {
		idx++
	}
	left := string(utf16.Decode(units[:idx]))
	right := string(utf16.Decode(units[idx:]))
	return left, right
}

// Split divides content at logical offset idx (in content units, not
// bytes) into two ItemContents, for use when a block must be cut so a
// range boundary (delete, move, or insertion point) lands exactly between
// two blocks.
func (c ItemContent) Split(idx uint32, encoding OffsetKind) (left, right ItemContent) {
	switch c.Kind {
	case ContentDeleted:
		return ItemContent{Kind: ContentDeleted, DeletedLen: idx},
			ItemContent{Kind: ContentDeleted, DeletedLen: c.DeletedLen - idx}
	case ContentJSON, ContentAny:
		return ItemContent{Kind: c.Kind, Values: append([]Any{}, c.Values[:idx]...)},
			ItemContent{Kind: c.Kind, Values: append([]Any{}, c.Values[idx:]...)}
	case ContentString:
		l, r := splitStringAt(c.Str, idx, encoding)
		return ItemContent{Kind: ContentString, Str: l}, ItemContent{Kind: ContentString, Str: r}
	default:
		// Single-unit content kinds (Binary, Embed, Format, Type, Move,
		// Doc) are never split: callers must not request a mid-block
		// offset for them.
		return c, ItemContent{Kind: c.Kind}
	}
}

// MergeRight reports whether c and next can be squashed into a single
// content run (spec.md §4.1 invariant 3), and if so returns the merged
// content.
func (c ItemContent) MergeRight(next ItemContent) (ItemContent, bool) {
	if c.Kind != next.Kind {
		return ItemContent{}, false
	}
	switch c.Kind {
	case ContentDeleted:
		return ItemContent{Kind: ContentDeleted, DeletedLen: c.DeletedLen + next.DeletedLen}, true
	case ContentJSON, ContentAny:
		merged := append(append([]Any{}, c.Values...), next.Values...)
		return ItemContent{Kind: c.Kind, Values: merged}, true
	case ContentString:
		return ItemContent{Kind: ContentString, Str: c.Str + next.Str}, true
	default:
		return ItemContent{}, false
	}
}

// Block is implemented by Item, GC, and Skip — the three variants the
// block store's per-client vectors hold (spec.md §3 "Block").
type Block interface {
	BlockID() ID
	BlockLen() uint32
}

// Item is a live (or tombstoned) content run — spec.md §3's "Item"
// variant. Left/right/moved are runtime-only navigation state; they're
// reconstructed during integration, never serialized (origin_left/
// origin_right are the serialized anchors they're derived from).
type Item struct {
	ID ID

	Left  *Item
	Right *Item

	OriginLeft  *ID
	OriginRight *ID

	Parent    Parent
	ParentSub *string

	Content ItemContent

	Deleted bool
	Keep    bool

	Moved *Item // owning Move item, if this item currently sits inside a moved range
}

// BlockID implements Block.
func (it *Item) BlockID() ID { return it.ID }

// BlockLen implements Block.
func (it *Item) BlockLen() uint32 { return it.Content.Len(OffsetBytes) }

// Len returns the item's span using the given offset encoding.
func (it *Item) Len(encoding OffsetKind) uint32 { return it.Content.Len(encoding) }

// LastID returns the ID of this item's last occupied clock.
func (it *Item) LastID() ID {
	l := it.Len(OffsetBytes)
	if l == 0 {
		return it.ID
	}
	return ID{Client: it.ID.Client, Clock: it.ID.Clock + l - 1}
}

// Countable reports whether this item counts toward content_len.
func (it *Item) Countable() bool { return it.Content.Countable() }

// GC is a tombstone collapsing len deleted clocks of a client into a
// contentless marker (spec.md §3 "GC").
type GC struct {
	ID  ID
	Len uint32
}

// BlockID implements Block.
func (g *GC) BlockID() ID { return g.ID }

// BlockLen implements Block.
func (g *GC) BlockLen() uint32 { return g.Len }

// Skip is a placeholder for len clocks this replica knows exist upstream
// but hasn't received content for yet (spec.md §3 "Skip").
type Skip struct {
	ID  ID
	Len uint32
}

// BlockID implements Block.
func (s *Skip) BlockID() ID { return s.ID }

// BlockLen implements Block.
func (s *Skip) BlockLen() uint32 { return s.Len }

// info byte layout, spec.md §4.3.
const (
	infoHasOriginLeft  = 1 << 7
	infoHasOriginRight = 1 << 6
	infoHasParentSub   = 1 << 5
	infoContentMask    = 0x0f

	blockGCInfo   = 0
	blockSkipInfo = 0b00001010
)

// encodeItemInfo builds the info byte for it.
func encodeItemInfo(it *Item) byte {
	var b byte
	if it.OriginLeft != nil {
		b |= infoHasOriginLeft
	}
	if it.OriginRight != nil {
		b |= infoHasOriginRight
	}
	if it.ParentSub != nil {
		b |= infoHasParentSub
	}
	b |= byte(it.Content.Kind) & infoContentMask
	return b
}

// encodeID writes an ID as (var_uint client, var_uint clock).
func encodeID(w *varint.Writer, id ID) {
	w.WriteUvarint(id.Client)
	w.WriteUvarint(uint64(id.Clock))
}

// decodeID reads an ID written by encodeID.
func decodeID(r *varint.Reader) (ID, error) {
	client, err := r.ReadUvarint()
	if err != nil {
		return ID{}, err
	}
	clock, err := r.ReadUvarint()
	if err != nil {
		return ID{}, err
	}
	return ID{Client: client, Clock: Clock(clock)}, nil
}
