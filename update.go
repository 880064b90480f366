package crdt

import "github.com/cshekharsharma/go-yata/internal/varint"

// updateVersion tags v2's own columnar envelope. v1 carries no such tag —
// its top level is exactly `clients_section delete_set` per spec.md §4.3,
// with nothing in front of num_clients, so the reference text_insert_delete
// corpus decodes byte-for-byte. Because v1 is self-describing only via its
// grammar (no discriminator byte), this module does not auto-detect a
// version from raw bytes: callers pick DecodeUpdateV1 or DecodeUpdateV2
// explicitly, the same way the original splits apply_update and
// apply_update_v2 into distinct entry points rather than one dispatcher.
type updateVersion byte

const (
	updateVersionV2 updateVersion = 2
)

// Update is the decoded, logical form shared by both wire versions: one
// block run per client (in clock order, with Skip blocks standing in for
// clock ranges the sender didn't have), plus the delete set.
type Update struct {
	Blocks map[ClientID][]Block
	DS     *DeleteSet
}

// NewUpdate returns an empty update.
func NewUpdate() *Update {
	return &Update{Blocks: make(map[ClientID][]Block), DS: NewDeleteSet()}
}

// BuildUpdate collects every block a store holds at or after the
// watermarks recorded in sv — the set a peer needs in order to catch up
// from sv to the store's current state (spec.md §4.4 "state vector
// exchange").
func BuildUpdate(store *BlockStore, sv *StateVector) *Update {
	u := NewUpdate()
	for _, client := range store.Clients() {
		from := sv.Get(client)
		var run []Block
		for _, b := range store.Blocks(client) {
			if it, ok := b.(*Item); ok && it.Deleted {
				u.DS.Insert(client, it.ID.Clock, it.BlockLen())
			}
			if g, ok := b.(*GC); ok {
				u.DS.Insert(client, g.ID.Clock, g.Len)
			}
			end := b.BlockID().Clock + Clock(b.BlockLen())
			if end <= from {
				continue
			}
			if b.BlockID().Clock < from {
				b = trimBlockStart(b, from)
			}
			run = append(run, b)
		}
		if len(run) > 0 {
			u.Blocks[client] = run
		}
	}
	return u
}

// trimBlockStart returns the part of b that starts at clock from, for a
// block that starts before from and ends after it.
func trimBlockStart(b Block, from Clock) Block {
	id := ID{Client: b.BlockID().Client, Clock: from}
	cut := uint32(from - b.BlockID().Clock)
	switch blk := b.(type) {
	case *Item:
		_, right := blk.Content.Split(cut, OffsetBytes)
		return &Item{ID: id, OriginLeft: &ID{Client: id.Client, Clock: from - 1}, OriginRight: blk.OriginRight,
			Parent: blk.Parent, ParentSub: blk.ParentSub, Content: right, Deleted: blk.Deleted}
	case *GC:
		return &GC{ID: id, Len: blk.Len - cut}
	case *Skip:
		return &Skip{ID: id, Len: blk.Len - cut}
	}
	return b
}

// StateVectorOf returns the state vector an update would advance a
// recipient to, covering only the clients it mentions — the watermark of
// "what clock does this update bring each client up to".
func (u *Update) StateVectorOf() *StateVector {
	sv := NewStateVector()
	for client, blocks := range u.Blocks {
		if len(blocks) == 0 {
			continue
		}
		last := blocks[len(blocks)-1]
		sv.Set(client, last.BlockID().Clock+Clock(last.BlockLen()))
	}
	return sv
}

// StartVectorOf returns the state vector an update assumes the recipient
// already holds: each client's first block's start clock.
func (u *Update) StartVectorOf() *StateVector {
	sv := NewStateVector()
	for client, blocks := range u.Blocks {
		if len(blocks) == 0 {
			continue
		}
		sv.Set(client, blocks[0].BlockID().Clock)
	}
	return sv
}

// Merge folds other into u, concatenating per-client block runs. Callers
// are expected to have already deduplicated/resorted via MergeUpdates;
// Merge itself just unions delete sets and block runs keyed by client.
func (u *Update) merge(other *Update) {
	for client, blocks := range other.Blocks {
		u.Blocks[client] = append(u.Blocks[client], blocks...)
	}
	u.DS.Merge(other.DS)
}

// encodeCore writes the shared logical payload: per-client block runs
// then the delete set, in v1's row-major interleaved layout. EncodeUpdateV2
// writes the same logical fields through its own columnar writer, per
// spec.md §4.3's "v1 and v2 share a logical model".
func encodeCore(u *Update, w *varint.Writer) {
	clients := make([]ClientID, 0, len(u.Blocks))
	for c := range u.Blocks {
		clients = append(clients, c)
	}
	sortClientIDs(clients)

	w.WriteUvarint(uint64(len(clients)))
	for _, client := range clients {
		blocks := u.Blocks[client]
		// spec.md §4.3's reference corpus orders a client's three header
		// fields as (num_blocks, client, start_clock), not client-first —
		// confirmed by hand-decoding the §8 text_insert_delete update,
		// whose client id only self-consistently resolves the way its own
		// item origins reference it under this ordering.
		w.WriteUvarint(uint64(len(blocks)))
		w.WriteUvarint(client)
		w.WriteUvarint(uint64(blocks[0].BlockID().Clock))
		for _, b := range blocks {
			encodeBlock(w, b)
		}
	}
	u.DS.Encode(w)
}

func decodeCore(r *varint.Reader) (*Update, error) {
	u := NewUpdate()
	numClients, err := r.ReadUvarint()
	if err != nil {
		return nil, wrapError(KindMalformedUpdate, err, "update: client count")
	}
	for i := uint64(0); i < numClients; i++ {
		numBlocks, err := r.ReadUvarint()
		if err != nil {
			return nil, wrapError(KindMalformedUpdate, err, "update: block count")
		}
		client, err := r.ReadUvarint()
		if err != nil {
			return nil, wrapError(KindMalformedUpdate, err, "update: client id")
		}
		clock, err := r.ReadUvarint()
		if err != nil {
			return nil, wrapError(KindMalformedUpdate, err, "update: start clock")
		}
		cur := Clock(clock)
		blocks := make([]Block, 0, numBlocks)
		for j := uint64(0); j < numBlocks; j++ {
			b, err := decodeBlock(r, client, cur)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, b)
			cur += Clock(b.BlockLen())
		}
		u.Blocks[client] = blocks
	}
	ds, err := DecodeDeleteSet(r)
	if err != nil {
		return nil, err
	}
	u.DS = ds
	return u, nil
}

func sortClientIDs(c []ClientID) {
	for i := 1; i < len(c); i++ {
		for j := i; j > 0 && c[j-1] > c[j]; j-- {
			c[j-1], c[j] = c[j], c[j-1]
		}
	}
}

// MergeUpdates combines N raw v1-encoded updates into one v1-encoded
// update covering their union, module-level per spec.md §4.5 — it never
// materializes a Document. Operates on the canonical v1 interchange form;
// a caller holding v2 bytes decodes with DecodeUpdateV2 and re-encodes to
// v1 first (the two formats are never auto-mixed — see DecodeUpdate).
func MergeUpdates(updates [][]byte) ([]byte, error) {
	merged := NewUpdate()
	for _, raw := range updates {
		u, err := DecodeUpdateV1(raw)
		if err != nil {
			return nil, err
		}
		merged.merge(u)
	}
	return EncodeUpdateV1(merged), nil
}

// DiffUpdates decodes a raw v1 update and re-encodes only the portion a
// peer at sv hasn't seen, per spec.md §4.5.
func DiffUpdates(raw []byte, sv *StateVector) ([]byte, error) {
	u, err := DecodeUpdateV1(raw)
	if err != nil {
		return nil, err
	}
	out := NewUpdate()
	for client, blocks := range u.Blocks {
		from := sv.Get(client)
		var run []Block
		for _, b := range blocks {
			end := b.BlockID().Clock + Clock(b.BlockLen())
			if end <= from {
				continue
			}
			if b.BlockID().Clock < from {
				b = trimBlockStart(b, from)
			}
			run = append(run, b)
		}
		if len(run) > 0 {
			out.Blocks[client] = run
		}
	}
	out.DS = u.DS
	return EncodeUpdateV1(out), nil
}

// EncodeStateVectorFromUpdate decodes a raw v1 update and returns the
// encoded state vector its blocks bring each client up to, per spec.md
// §4.5. Delete-set ranges do not contribute to it.
func EncodeStateVectorFromUpdate(raw []byte) ([]byte, error) {
	u, err := DecodeUpdateV1(raw)
	if err != nil {
		return nil, err
	}
	return u.StateVectorOf().Encode(), nil
}

// DecodeUpdate decodes a v1-encoded update — the canonical, version-byte-
// free interchange form spec.md §4.3's literal grammar describes. It is
// an alias for DecodeUpdateV1, kept as the default entry point since v1
// carries no self-describing tag to dispatch on; a caller with v2 bytes
// must call DecodeUpdateV2 directly (spec.md §4.3: "versions are chosen
// by the caller").
func DecodeUpdate(raw []byte) (*Update, error) {
	return DecodeUpdateV1(raw)
}
