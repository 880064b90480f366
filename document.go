package crdt

import (
	"context"
	"log/slog"
	"math/rand"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/google/uuid"
)

// DocOptions configures a Document at construction time via the
// functional-options pattern (spec.md §6 "Document options") rather than
// a sprawling positional parameter list.
type DocOptions struct {
	clientID        ClientID
	guid            string
	skipGC          bool
	pendingCapacity int
	logger          *slog.Logger
}

// Option configures a Document.
type Option func(*DocOptions)

// WithClientID pins a document's replica ID instead of generating one
// randomly.
func WithClientID(id ClientID) Option {
	return func(o *DocOptions) { o.clientID = id }
}

// WithGUID pins a document's GUID instead of generating one via
// github.com/google/uuid.
func WithGUID(guid string) Option {
	return func(o *DocOptions) { o.guid = guid }
}

// WithSkipGC disables the squash pass that otherwise runs on every commit
// (spec.md §4.7, §9 "skip_gc"). Deleted-item content is kept either way:
// commit has no step that collects it.
func WithSkipGC(skip bool) Option {
	return func(o *DocOptions) { o.skipGC = skip }
}

// WithPendingCapacity bounds how many not-yet-applicable remote blocks
// (spec.md §4.7 "pending dependency queue") a Document holds onto before
// it starts evicting the least recently used ones.
func WithPendingCapacity(n int) Option {
	return func(o *DocOptions) { o.pendingCapacity = n }
}

// WithLogger overrides the document's structured logger. Defaults to
// slog.Default(); the document logs each committed transaction at Debug
// level.
func WithLogger(l *slog.Logger) Option {
	return func(o *DocOptions) { o.logger = l }
}

// Document is the top-level handle a caller transacts against: it owns the
// block store, the root branches, and the pending-update machinery (spec.md
// §3 "Document").
type Document struct {
	ClientID ClientID
	GUID     string

	store *BlockStore
	roots map[string]*Branch

	skipGC bool
	logger *slog.Logger

	lock *writeLock

	// pending holds remote blocks this replica can't yet integrate because
	// they depend on a predecessor clock it hasn't seen — bounded by an
	// LRU so a misbehaving peer can't grow it without limit (spec.md §4.2
	// "Pending" failure mode, §4.7 "pending dependency queue"). Evicting
	// an entry also drops it from waitIndex via onPendingEvict.
	pending *lru.Cache[ID, Block]

	// waitIndex maps "client c reaching clock w" to the set of pending
	// block IDs that become integrable once that happens — populated
	// whenever a block is parked because its own client's clock, or an
	// origin it references, isn't covered yet.
	waitIndex map[ClientID]map[Clock][]ID
}

// NewDocument constructs a Document, applying opts over sensible defaults:
// a random client ID, a fresh GUID from github.com/google/uuid, GC enabled,
// and a 256-entry pending queue.
func NewDocument(opts ...Option) *Document {
	o := &DocOptions{
		clientID:        ClientID(rand.Uint64()),
		guid:            uuid.NewString(),
		pendingCapacity: 256,
		logger:          slog.Default(),
	}
	for _, apply := range opts {
		apply(o)
	}
	d := &Document{
		ClientID:  o.clientID,
		GUID:      o.guid,
		store:     NewBlockStore(),
		roots:     make(map[string]*Branch),
		skipGC:    o.skipGC,
		logger:    o.logger,
		lock:      newWriteLock(),
		waitIndex: make(map[ClientID]map[Clock][]ID),
	}
	pending, err := lru.NewWithEvict[ID, Block](o.pendingCapacity, d.onPendingEvict)
	if err != nil {
		panicInvariant("NewDocument: invalid pending capacity")
	}
	d.pending = pending
	return d
}

// onPendingEvict drops a block from waitIndex when the LRU evicts it, so
// a peer that keeps citing missing dependencies can't grow waitIndex
// without bound either (spec.md DOMAIN STACK note on the LRU-bounded
// pending queue).
func (d *Document) onPendingEvict(id ID, _ Block) {
	for client, byClock := range d.waitIndex {
		for clock, ids := range byClock {
			filtered := ids[:0]
			for _, waiting := range ids {
				if waiting != id {
					filtered = append(filtered, waiting)
				}
			}
			if len(filtered) == 0 {
				delete(byClock, clock)
			} else {
				byClock[clock] = filtered
			}
		}
		if len(byClock) == 0 {
			delete(d.waitIndex, client)
		}
	}
}

// Transact runs fn inside a new Transaction, blocking until the document's
// write lock is available, and commits on return (spec.md §4.7 "blocking-
// acquire").
func (d *Document) Transact(ctx context.Context, origin Any, fn func(*Transaction)) error {
	if err := d.lock.acquire(ctx); err != nil {
		return wrapError(KindTransactionBusy, err, "transact: acquire")
	}
	defer d.lock.release()
	txn := beginTransaction(d, origin, true)
	fn(txn)
	txn.commit()
	d.logger.Debug("transaction committed", "client", d.ClientID, "changed", len(txn.changedList))
	return nil
}

// TryTransact runs fn inside a new Transaction only if the write lock is
// immediately available, returning ErrTransactionBusy otherwise (spec.md
// §4.7 "try-acquire").
func (d *Document) TryTransact(origin Any, fn func(*Transaction)) error {
	if !d.lock.tryAcquire() {
		return ErrTransactionBusy
	}
	defer d.lock.release()
	txn := beginTransaction(d, origin, true)
	fn(txn)
	txn.commit()
	d.logger.Debug("transaction committed", "client", d.ClientID, "changed", len(txn.changedList))
	return nil
}

// GetOrInsertArray returns the named root array branch, creating it as
// TypeArray if it doesn't exist yet.
func (d *Document) GetOrInsertArray(name string) *Branch { return d.getOrInsertRoot(name, TypeArray) }

// GetOrInsertMap returns the named root map branch, creating it as TypeMap
// if it doesn't exist yet.
func (d *Document) GetOrInsertMap(name string) *Branch { return d.getOrInsertRoot(name, TypeMap) }

// GetOrInsertText returns the named root text branch, creating it as
// TypeText if it doesn't exist yet.
func (d *Document) GetOrInsertText(name string) *Branch { return d.getOrInsertRoot(name, TypeText) }

// GetOrInsertXMLFragment returns the named root XML fragment branch,
// creating it as TypeXMLFragment if it doesn't exist yet.
func (d *Document) GetOrInsertXMLFragment(name string) *Branch {
	return d.getOrInsertRoot(name, TypeXMLFragment)
}

func (d *Document) getOrInsertRoot(name string, typeRef TypeRef) *Branch {
	b, ok := d.roots[name]
	if !ok {
		b = NewBranch(typeRef)
		b.Name = name
		d.roots[name] = b
		return b
	}
	b.RepairTypeRef(typeRef)
	return b
}

// EncodeStateAsUpdate returns the bytes a peer at sv needs to catch up to
// this document's current state, encoded in v1 form (spec.md §4.4, §6).
func (d *Document) EncodeStateAsUpdate(sv *StateVector) []byte {
	if sv == nil {
		sv = NewStateVector()
	}
	return EncodeUpdateV1(BuildUpdate(d.store, sv))
}

// EncodeStateVector returns this document's current state vector, encoded.
func (d *Document) EncodeStateVector() []byte {
	return d.store.StateVector().Encode()
}

// ApplyUpdate decodes raw and integrates every block it carries that this
// document hasn't already applied, buffering blocks whose dependencies
// (origin_left/origin_right, or a contiguous predecessor clock) haven't
// arrived yet in the pending queue (spec.md §4.7 "apply_update").
func (d *Document) ApplyUpdate(ctx context.Context, raw []byte) error {
	u, err := DecodeUpdate(raw)
	if err != nil {
		return err
	}
	return d.Transact(ctx, AnyNull(), func(txn *Transaction) {
		d.integrateUpdate(txn, u)
	})
}

func (d *Document) integrateUpdate(txn *Transaction, u *Update) {
	for _, client := range sortedUpdateClients(u) {
		for _, b := range u.Blocks[client] {
			d.integrateOneBlock(txn, b)
		}
	}
	for _, client := range u.DS.Clients() {
		for _, r := range u.DS.Ranges(client) {
			d.markRangeDeleted(txn, client, r)
		}
	}
}

// addPending parks b because it needs client to reach clock before it can
// be retried, and indexes it so drainPending, run after a later block of
// that client integrates, can find and retry it (spec.md §4.2
// "Pending(missing_ids)").
func (d *Document) addPending(b Block, client ClientID, clock Clock) {
	id := b.BlockID()
	d.pending.Add(id, b)
	if d.waitIndex[client] == nil {
		d.waitIndex[client] = make(map[Clock][]ID)
	}
	d.waitIndex[client][clock] = append(d.waitIndex[client][clock], id)
}

// drainPending retries every block waiting on client after client's known
// state has advanced, recursively: satisfying one pending block can push
// client's state further and unblock another. A waiting block's key is the
// clock at which its dependency becomes satisfied; since one covering block
// can jump known state past several queued keys at once (a multi-clock
// item), this scans for every key known now covers rather than matching
// known exactly.
func (d *Document) drainPending(txn *Transaction, client ClientID) {
	byClock, ok := d.waitIndex[client]
	if !ok {
		return
	}
	for {
		known := d.store.GetState(client)
		var ids []ID
		for clock, waiting := range byClock {
			if clock > known {
				continue
			}
			ids = append(ids, waiting...)
			delete(byClock, clock)
		}
		if len(ids) == 0 {
			return
		}
		for _, id := range ids {
			b, ok := d.pending.Get(id)
			if !ok {
				continue
			}
			d.pending.Remove(id)
			d.integrateOneBlock(txn, b)
		}
	}
}

func sortedUpdateClients(u *Update) []ClientID {
	out := make([]ClientID, 0, len(u.Blocks))
	for c := range u.Blocks {
		out = append(out, c)
	}
	sortClientIDs(out)
	return out
}

func (d *Document) integrateOneBlock(txn *Transaction, b Block) {
	client := b.BlockID().Client
	known := d.store.GetState(client)
	if clock := b.BlockID().Clock; clock < known {
		if clock+Clock(b.BlockLen()) <= known {
			return // already have it
		}
		b = trimBlockStart(b, known)
	}
	if b.BlockID().Clock > known {
		d.addPending(b, client, b.BlockID().Clock)
		return
	}
	if it, ok := b.(*Item); ok {
		if missing, ok := d.missingOrigin(it); ok {
			// missing is a clock *inside* the origin block, not its start:
			// the dependency is satisfied once that client's state passes
			// missing.Clock, which GetState only reports as origin.Clock+len
			// once the covering block lands — so wake on missing.Clock+1,
			// the first state value that proves it, rather than
			// missing.Clock itself (which GetState may never equal again).
			d.addPending(b, missing.Client, missing.Clock+1)
			return
		}
	}
	switch blk := b.(type) {
	case *Skip:
		d.store.PushBlock(blk)
	case *GC:
		d.store.PushBlock(blk)
	case *Item:
		d.resolveParent(blk)
		d.store.PushBlock(blk)
		integrateBlock(d.store, blk)
		if blk.Parent.Kind == ParentBranch && blk.Parent.Branch != nil {
			txn.recordChange(blk.Parent.Branch, itemChange{kind: changeInsert, length: blk.Len(OffsetBytes), values: blk.Content.Values, key: blk.ParentSub})
		}
	}
	d.drainPending(txn, client)
}

// missingOrigin reports the first origin ID referenced by it (if any)
// that this store doesn't cover yet, so integration can defer the block
// to the pending queue instead of panicking inside GetItem (spec.md §4.2
// "Pending(missing_ids): origin_left or origin_right references a block
// not yet present").
func (d *Document) missingOrigin(it *Item) (ID, bool) {
	if it.OriginLeft != nil && d.store.GetState(it.OriginLeft.Client) <= it.OriginLeft.Clock {
		return *it.OriginLeft, true
	}
	if it.OriginRight != nil && d.store.GetState(it.OriginRight.Client) <= it.OriginRight.Clock {
		return *it.OriginRight, true
	}
	if it.Parent.Kind == ParentByID && d.store.GetState(it.Parent.ID.Client) <= it.Parent.ID.Clock {
		return it.Parent.ID, true
	}
	return ID{}, false
}

// resolveParent repairs a ParentNamed/ParentByID reference into a direct
// *Branch pointer the first time it's seen locally (spec.md §4.2 point 6
// "parent repair").
func (d *Document) resolveParent(it *Item) {
	switch it.Parent.Kind {
	case ParentNamed:
		b, ok := d.roots[it.Parent.Named]
		if !ok {
			b = NewBranch(TypeUndefined)
			b.Name = it.Parent.Named
			d.roots[it.Parent.Named] = b
		}
		it.Parent = Parent{Kind: ParentBranch, Branch: b}
	case ParentByID:
		owner := d.store.GetItem(it.Parent.ID)
		if owner.Content.Kind != ContentType {
			panicInvariant("resolveParent: owner item is not a type")
		}
		owner.Content.TypeBranch.Item = owner
		it.Parent = Parent{Kind: ParentBranch, Branch: owner.Content.TypeBranch}
	case ParentInherit:
		// missingOrigin already confirmed whichever origin is set is present
		// in the store, and any present item has already been through this
		// same repair, so its Parent is guaranteed to be ParentBranch by now.
		var origin *Item
		if it.OriginLeft != nil {
			origin = d.store.GetItem(*it.OriginLeft)
		} else if it.OriginRight != nil {
			origin = d.store.GetItem(*it.OriginRight)
		} else {
			panicInvariant("resolveParent: ParentInherit with no origin")
		}
		it.Parent = origin.Parent
	}
}

func (d *Document) markRangeDeleted(txn *Transaction, client ClientID, r IDRange) {
	clock := r.Clock
	for clock < r.End() {
		it := d.store.GetItemCleanStart(ID{Client: client, Clock: clock})
		end := r.End()
		if it.ID.Clock+Clock(it.BlockLen()) > end {
			it = d.store.GetItemCleanEnd(ID{Client: client, Clock: end - 1})
		}
		if !it.Deleted {
			it.Deleted = true
			if it.Parent.Kind == ParentBranch && it.Parent.Branch != nil {
				b := it.Parent.Branch
				b.mu.Lock()
				if it.Countable() {
					b.ContentLen -= it.Len(OffsetBytes)
				}
				b.mu.Unlock()
				txn.recordChange(b, itemChange{kind: changeDelete, length: it.Len(OffsetBytes), key: it.ParentSub})
			}
			txn.recordDelete(it.ID, it.BlockLen())
		}
		clock = it.ID.Clock + Clock(it.BlockLen())
	}
}

// PendingClients reports which clients currently have buffered-but-
// unintegrated blocks waiting on a missing predecessor (spec.md §4.7:
// "the document publicly exposes the set of missing IDs for reporting").
func (d *Document) PendingClients() []ClientID {
	seen := map[ClientID]bool{}
	var out []ClientID
	for _, key := range d.pending.Keys() {
		if !seen[key.Client] {
			seen[key.Client] = true
			out = append(out, key.Client)
		}
	}
	sortClientIDs(out)
	return out
}
