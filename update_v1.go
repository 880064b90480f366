package crdt

import "github.com/cshekharsharma/go-yata/internal/varint"

// EncodeUpdateV1 writes u in the row-major layout matching spec.md §4.3's
// literal grammar exactly: `update := clients_section delete_set`, with no
// leading version envelope — for each client, its blocks are written back
// to back, each block's info byte immediately followed by its own
// origin/parent/content fields. This is the canonical, corpus-compatible
// form: decoding the reference text_insert_delete update byte-for-byte
// depends on there being no extra framing byte in front of num_clients.
func EncodeUpdateV1(u *Update) []byte {
	w := varint.NewWriter(256)
	encodeCore(u, w)
	return w.Bytes()
}

// DecodeUpdateV1 reads bytes written by EncodeUpdateV1.
func DecodeUpdateV1(raw []byte) (*Update, error) {
	r := varint.NewReader(raw)
	return decodeCore(r)
}

// encodeBlock writes one block: GC and Skip use a fixed sentinel info
// byte, Items use encodeItemInfo followed by their origin/parent/content
// fields (spec.md §4.3).
func encodeBlock(w *varint.Writer, b Block) {
	switch blk := b.(type) {
	case *GC:
		w.WriteByte(blockGCInfo)
		w.WriteUvarint(uint64(blk.Len))
	case *Skip:
		w.WriteByte(blockSkipInfo)
		w.WriteUvarint(uint64(blk.Len))
	case *Item:
		encodeItem(w, blk)
	default:
		panicInvariant("encodeBlock: unknown block variant")
	}
}

func encodeItem(w *varint.Writer, it *Item) {
	w.WriteByte(encodeItemInfo(it))
	if it.OriginLeft != nil {
		encodeID(w, *it.OriginLeft)
	}
	if it.OriginRight != nil {
		encodeID(w, *it.OriginRight)
	}
	if it.OriginLeft == nil && it.OriginRight == nil {
		// First block of its run against this parent: carry the parent
		// reference so the recipient can place it without replay order.
		encodeParentRef(w, it)
	}
	if it.ParentSub != nil {
		w.WriteString(*it.ParentSub)
	}
	encodeItemContent(w, it.Content)
}

// encodeParentRef writes it's parent as either a named root (tag 1,
// string) or a nested owning item's ID (tag 0, ID) — spec.md §4.3 point 3:
// "parent is either a named root `(1, string)` or a nested item ID `(0,
// ID)`; the kind bit comes first." A live ParentBranch pointing at a
// document root (Branch.Item == nil) must still serialize as a name, not
// an ID — there is no owning item to name — so it is treated the same as
// ParentNamed here.
func encodeParentRef(w *varint.Writer, it *Item) {
	if it.Parent.Kind == ParentNamed {
		w.WriteByte(1)
		w.WriteString(it.Parent.Named)
		return
	}
	if it.Parent.Kind == ParentBranch && it.Parent.Branch != nil && it.Parent.Branch.Item == nil {
		w.WriteByte(1)
		w.WriteString(it.Parent.Branch.Name)
		return
	}
	w.WriteByte(0)
	encodeID(w, parentIDOf(it))
}

func parentIDOf(it *Item) ID {
	switch it.Parent.Kind {
	case ParentByID:
		return it.Parent.ID
	case ParentBranch:
		if it.Parent.Branch != nil && it.Parent.Branch.Item != nil {
			return it.Parent.Branch.Item.ID
		}
	}
	return ID{}
}

func encodeItemContent(w *varint.Writer, c ItemContent) {
	switch c.Kind {
	case ContentDeleted:
		w.WriteUvarint(uint64(c.DeletedLen))
	case ContentJSON, ContentAny:
		w.WriteUvarint(uint64(len(c.Values)))
		for _, v := range c.Values {
			v.Encode(w)
		}
	case ContentBinary:
		w.WriteBuf(c.Binary)
	case ContentString:
		w.WriteString(c.Str)
	case ContentEmbed:
		c.Embed.Encode(w)
	case ContentFormat:
		w.WriteString(c.FormatKey)
		c.FormatVal.Encode(w)
	case ContentType:
		w.WriteByte(byte(c.TypeBranch.TypeRef))
		if c.TypeBranch.TypeRef == TypeXMLElement {
			w.WriteString(c.TypeBranch.XMLTag)
		}
	case ContentMove:
		c.MoveOp.encode(w)
	case ContentDoc:
		w.WriteString(c.DocGUID)
	}
}

// decodeBlock reads one block belonging to client, starting at clock.
func decodeBlock(r *varint.Reader, client ClientID, clock Clock) (Block, error) {
	info, err := r.ReadByte()
	if err != nil {
		return nil, wrapError(KindMalformedUpdate, err, "block: info byte")
	}
	switch info {
	case blockGCInfo:
		n, err := r.ReadUvarint()
		if err != nil {
			return nil, wrapError(KindMalformedUpdate, err, "gc: len")
		}
		return &GC{ID: ID{Client: client, Clock: clock}, Len: uint32(n)}, nil
	case blockSkipInfo:
		n, err := r.ReadUvarint()
		if err != nil {
			return nil, wrapError(KindMalformedUpdate, err, "skip: len")
		}
		return &Skip{ID: ID{Client: client, Clock: clock}, Len: uint32(n)}, nil
	default:
		return decodeItem(r, client, clock, info)
	}
}

func decodeItem(r *varint.Reader, client ClientID, clock Clock, info byte) (*Item, error) {
	it := &Item{ID: ID{Client: client, Clock: clock}}

	if info&infoHasOriginLeft != 0 {
		id, err := decodeID(r)
		if err != nil {
			return nil, wrapError(KindMalformedUpdate, err, "item: origin left")
		}
		it.OriginLeft = &id
	}
	if info&infoHasOriginRight != 0 {
		id, err := decodeID(r)
		if err != nil {
			return nil, wrapError(KindMalformedUpdate, err, "item: origin right")
		}
		it.OriginRight = &id
	}
	if it.OriginLeft == nil && it.OriginRight == nil {
		tag, err := r.ReadByte()
		if err != nil {
			return nil, wrapError(KindMalformedUpdate, err, "item: parent tag")
		}
		if tag == 1 {
			name, err := r.ReadString()
			if err != nil {
				return nil, wrapError(KindMalformedUpdate, err, "item: parent name")
			}
			it.Parent = Parent{Kind: ParentNamed, Named: name}
		} else {
			id, err := decodeID(r)
			if err != nil {
				return nil, wrapError(KindMalformedUpdate, err, "item: parent id")
			}
			it.Parent = Parent{Kind: ParentByID, ID: id}
		}
	} else {
		// spec.md §4.3: an origin is present, so the parent wasn't encoded
		// at all — it must be inherited from whichever origin item is
		// already resolved locally (document.resolveParent does the
		// actual copy once both origin items are known to be in store).
		it.Parent = Parent{Kind: ParentInherit}
	}
	if info&infoHasParentSub != 0 {
		sub, err := r.ReadString()
		if err != nil {
			return nil, wrapError(KindMalformedUpdate, err, "item: parent sub")
		}
		it.ParentSub = &sub
	}
	content, err := decodeItemContent(r, ContentKind(info&infoContentMask))
	if err != nil {
		return nil, err
	}
	it.Content = content
	return it, nil
}

func decodeItemContent(r *varint.Reader, kind ContentKind) (ItemContent, error) {
	switch kind {
	case ContentDeleted:
		n, err := r.ReadUvarint()
		if err != nil {
			return ItemContent{}, wrapError(KindMalformedUpdate, err, "content: deleted len")
		}
		return ItemContent{Kind: ContentDeleted, DeletedLen: uint32(n)}, nil
	case ContentJSON, ContentAny:
		n, err := r.ReadUvarint()
		if err != nil {
			return ItemContent{}, wrapError(KindMalformedUpdate, err, "content: json count")
		}
		values := make([]Any, n)
		for i := range values {
			v, err := DecodeAny(r)
			if err != nil {
				return ItemContent{}, err
			}
			values[i] = v
		}
		return ItemContent{Kind: kind, Values: values}, nil
	case ContentBinary:
		b, err := r.ReadBuf()
		if err != nil {
			return ItemContent{}, wrapError(KindMalformedUpdate, err, "content: binary")
		}
		return ItemContent{Kind: ContentBinary, Binary: b}, nil
	case ContentString:
		s, err := r.ReadString()
		if err != nil {
			return ItemContent{}, wrapError(KindMalformedUpdate, err, "content: string")
		}
		return ItemContent{Kind: ContentString, Str: s}, nil
	case ContentEmbed:
		v, err := DecodeAny(r)
		if err != nil {
			return ItemContent{}, err
		}
		return ItemContent{Kind: ContentEmbed, Embed: v}, nil
	case ContentFormat:
		key, err := r.ReadString()
		if err != nil {
			return ItemContent{}, wrapError(KindMalformedUpdate, err, "content: format key")
		}
		v, err := DecodeAny(r)
		if err != nil {
			return ItemContent{}, err
		}
		return ItemContent{Kind: ContentFormat, FormatKey: key, FormatVal: v}, nil
	case ContentType:
		tagByte, err := r.ReadByte()
		if err != nil {
			return ItemContent{}, wrapError(KindMalformedUpdate, err, "content: type ref")
		}
		tref := TypeRef(tagByte)
		branch := NewBranch(tref)
		if tref == TypeXMLElement {
			tag, err := r.ReadString()
			if err != nil {
				return ItemContent{}, wrapError(KindMalformedUpdate, err, "content: xml tag")
			}
			branch.XMLTag = tag
		}
		return ItemContent{Kind: ContentType, TypeBranch: branch}, nil
	case ContentMove:
		mv, err := decodeMoveItem(r)
		if err != nil {
			return ItemContent{}, err
		}
		return ItemContent{Kind: ContentMove, MoveOp: mv}, nil
	case ContentDoc:
		guid, err := r.ReadString()
		if err != nil {
			return ItemContent{}, wrapError(KindMalformedUpdate, err, "content: doc guid")
		}
		return ItemContent{Kind: ContentDoc, DocGUID: guid}, nil
	default:
		return ItemContent{}, newError(KindMalformedUpdate, "content: unknown kind")
	}
}
