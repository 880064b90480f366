package crdt

import "github.com/cshekharsharma/go-yata/internal/varint"

// EncodeUpdateV2 writes u in a columnar layout: every block's info byte
// across every client is written first as one contiguous run, then every
// block's content follows as a second run, instead of v1's interleaved
// per-block layout (spec.md §4.3 "v2"). Grouping same-shaped bytes
// together is what makes v2 compress better than v1 over the wire; the
// logical content is identical, so decoding it back out reuses the exact
// same per-kind content codec as v1.
func EncodeUpdateV2(u *Update) []byte {
	clients := make([]ClientID, 0, len(u.Blocks))
	for c := range u.Blocks {
		clients = append(clients, c)
	}
	sortClientIDs(clients)

	headers := varint.NewWriter(64)
	infos := varint.NewWriter(64)
	bodies := varint.NewWriter(256)

	headers.WriteUvarint(uint64(len(clients)))
	for _, client := range clients {
		blocks := u.Blocks[client]
		headers.WriteUvarint(uint64(len(blocks)))
		headers.WriteUvarint(client)
		headers.WriteUvarint(uint64(blocks[0].BlockID().Clock))
		for _, b := range blocks {
			switch blk := b.(type) {
			case *GC:
				infos.WriteByte(blockGCInfo)
				bodies.WriteUvarint(uint64(blk.Len))
			case *Skip:
				infos.WriteByte(blockSkipInfo)
				bodies.WriteUvarint(uint64(blk.Len))
			case *Item:
				infos.WriteByte(encodeItemInfo(blk))
				encodeItemBodyV2(bodies, blk)
			default:
				panicInvariant("EncodeUpdateV2: unknown block variant")
			}
		}
	}

	dsBuf := varint.NewWriter(64)
	u.DS.Encode(dsBuf)

	w := varint.NewWriter(len(headers.Bytes()) + len(infos.Bytes()) + len(bodies.Bytes()) + len(dsBuf.Bytes()) + 32)
	w.WriteByte(byte(updateVersionV2))
	w.WriteBuf(headers.Bytes())
	w.WriteBuf(infos.Bytes())
	w.WriteBuf(bodies.Bytes())
	w.WriteBuf(dsBuf.Bytes())
	return w.Bytes()
}

// encodeItemBodyV2 writes everything encodeItem writes after the info
// byte, since v2 splits the info byte out into its own column.
func encodeItemBodyV2(w *varint.Writer, it *Item) {
	if it.OriginLeft != nil {
		encodeID(w, *it.OriginLeft)
	}
	if it.OriginRight != nil {
		encodeID(w, *it.OriginRight)
	}
	if it.OriginLeft == nil && it.OriginRight == nil {
		encodeParentRef(w, it)
	}
	if it.ParentSub != nil {
		w.WriteString(*it.ParentSub)
	}
	encodeItemContent(w, it.Content)
}

// DecodeUpdateV2 reads bytes written by EncodeUpdateV2.
func DecodeUpdateV2(raw []byte) (*Update, error) {
	r := varint.NewReader(raw)
	if _, err := r.ReadByte(); err != nil {
		return nil, wrapError(KindMalformedUpdate, err, "update v2: version byte")
	}

	headerBuf, err := r.ReadBuf()
	if err != nil {
		return nil, wrapError(KindMalformedUpdate, err, "update v2: header buf")
	}
	hr := varint.NewReader(headerBuf)

	infoBuf, err := r.ReadBuf()
	if err != nil {
		return nil, wrapError(KindMalformedUpdate, err, "update v2: info buf")
	}

	bodyBuf, err := r.ReadBuf()
	if err != nil {
		return nil, wrapError(KindMalformedUpdate, err, "update v2: body buf")
	}
	br := varint.NewReader(bodyBuf)

	u := NewUpdate()
	numClients, err := hr.ReadUvarint()
	if err != nil {
		return nil, wrapError(KindMalformedUpdate, err, "update v2: client count")
	}
	infoPos := 0
	for i := uint64(0); i < numClients; i++ {
		numBlocks, err := hr.ReadUvarint()
		if err != nil {
			return nil, wrapError(KindMalformedUpdate, err, "update v2: block count")
		}
		client, err := hr.ReadUvarint()
		if err != nil {
			return nil, wrapError(KindMalformedUpdate, err, "update v2: client id")
		}
		clockRaw, err := hr.ReadUvarint()
		if err != nil {
			return nil, wrapError(KindMalformedUpdate, err, "update v2: start clock")
		}
		cur := Clock(clockRaw)
		blocks := make([]Block, 0, numBlocks)
		for j := uint64(0); j < numBlocks; j++ {
			if infoPos >= len(infoBuf) {
				return nil, newError(KindMalformedUpdate, "update v2: info stream underrun")
			}
			info := infoBuf[infoPos]
			infoPos++
			b, err := decodeBlockBodyV2(br, client, cur, info)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, b)
			cur += Clock(b.BlockLen())
		}
		u.Blocks[client] = blocks
	}
	dsBuf, err := r.ReadBuf()
	if err != nil {
		return nil, wrapError(KindMalformedUpdate, err, "update v2: delete set buf")
	}
	ds, err := DecodeDeleteSet(varint.NewReader(dsBuf))
	if err != nil {
		return nil, err
	}
	u.DS = ds
	return u, nil
}

func decodeBlockBodyV2(r *varint.Reader, client ClientID, clock Clock, info byte) (Block, error) {
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
