package crdt

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Transaction is the single unit of mutation against a Document (spec.md
// §4.7): every read and write happens inside one, it accumulates the
// state this commit touched, and commit runs the compute events →
// dispatch observers → squash pipeline exactly once. Blocks are integrated
// while the transaction runs, not at commit, and commit has no step that
// garbage-collects deleted content.
type Transaction struct {
	doc *Document

	beforeState *StateVector
	afterState  *StateVector
	deleteSet   *DeleteSet

	changed     map[*Branch]bool
	changedList []*Branch
	itemChanges map[*Branch][]itemChange

	origin  Any
	local   bool
	subdocs []string

	committed bool
}

// beginTransaction opens a new transaction against doc. Callers must hold
// doc's write semaphore before calling this; Document.Transact/TryTransact
// do that for you.
func beginTransaction(doc *Document, origin Any, local bool) *Transaction {
	return &Transaction{
		doc:         doc,
		beforeState: doc.store.StateVector(),
		deleteSet:   NewDeleteSet(),
		changed:     make(map[*Branch]bool),
		itemChanges: make(map[*Branch][]itemChange),
		origin:      origin,
		local:       local,
	}
}

// markChanged records that branch was touched during this transaction, so
// its observers run on commit (spec.md §4.7 "changed branch set").
func (txn *Transaction) markChanged(b *Branch) {
	if !txn.changed[b] {
		txn.changed[b] = true
		txn.changedList = append(txn.changedList, b)
	}
}

// recordChange appends an itemChange to the delta being built for branch.
func (txn *Transaction) recordChange(b *Branch, c itemChange) {
	txn.itemChanges[b] = append(txn.itemChanges[b], c)
	txn.markChanged(b)
}

// recordDelete notes id as deleted in this transaction's delete set.
func (txn *Transaction) recordDelete(id ID, length uint32) {
	txn.deleteSet.Insert(id.Client, id.Clock, length)
}

// Origin returns the caller-supplied tag identifying why this transaction
// ran (spec.md §4.7 "origin").
func (txn *Transaction) Origin() Any { return txn.origin }

// Local reports whether this transaction originated from a local mutation
// rather than an incoming remote update.
func (txn *Transaction) Local() bool { return txn.local }

// commit runs the end-of-transaction pipeline: compute each changed
// branch's event, dispatch shallow and deep observers, then — unless the
// document is configured to skip GC — squash mergeable block runs (spec.md
// §4.7 "commit").
func (txn *Transaction) commit() {
	if txn.committed {
		panicInvariant("transaction already committed")
	}
	txn.committed = true
	txn.afterState = txn.doc.store.StateVector()

	events := make(map[*Branch]Event, len(txn.changedList))
	for _, b := range txn.changedList {
		events[b] = Event{Target: b, Delta: newDelta(txn.itemChanges[b]), Keys: changedKeys(txn.itemChanges[b])}
	}
	for _, b := range txn.changedList {
		b.dispatchShallow(txn, events[b])
	}

	roots := make(map[*Branch]bool)
	for _, b := range txn.changedList {
		root := ancestorRoot(b)
		if !roots[root] {
			roots[root] = true
		}
	}
	for root := range roots {
		var bundle []PathedEvent
		for _, b := range txn.changedList {
			if ancestorRoot(b) != root {
				continue
			}
			bundle = append(bundle, PathedEvent{Path: computePath(root, b), Event: events[b]})
		}
		root.dispatchDeep(txn, bundle)
	}

	if !txn.doc.skipGC {
		txn.squashTombstones()
	}
}

func ancestorRoot(b *Branch) *Branch {
	cur := b
	for cur.Item != nil && cur.Item.Parent.Kind == ParentBranch && cur.Item.Parent.Branch != nil {
		cur = cur.Item.Parent.Branch
	}
	return cur
}

// changedKeys collects the distinct map keys touched by changes, in first-
// seen order, for MapEvent deltas (spec.md §4.7 "changed: Option<key>", §4.9
// MapEvent). List-ish branches never set itemChange.key, so this returns nil
// for them.
func changedKeys(changes []itemChange) []string {
	var keys []string
	seen := make(map[string]bool)
	for _, c := range changes {
		if c.key == nil || seen[*c.key] {
			continue
		}
		seen[*c.key] = true
		keys = append(keys, *c.key)
	}
	return keys
}

// squashTombstones walks every client's block list once, merging adjacent
// runs, deleted or live, that Squash is willing to combine (spec.md §4.7
// "squash mergeable tombstones").
func (txn *Transaction) squashTombstones() {
	for _, client := range txn.doc.store.Clients() {
		blocks := txn.doc.store.Blocks(client)
		i := 0
		for i+1 < len(blocks) {
			if txn.doc.store.Squash(client, i) {
				blocks = txn.doc.store.Blocks(client)
				continue
			}
			i++
		}
	}
}

// writeLock serializes Transact/TryTransact across goroutines sharing a
// Document, following the teacher's habit of guarding shared state with a
// dedicated synchronization primitive rather than a bare mutex — here
// golang.org/x/sync/semaphore gives the weighted-1 lock both a blocking
// Acquire and a non-blocking TryAcquire for free (spec.md §4.7 "try-
// acquire vs. blocking-acquire").
type writeLock struct {
	sem *semaphore.Weighted
}

func newWriteLock() *writeLock {
	return &writeLock{sem: semaphore.NewWeighted(1)}
}

func (l *writeLock) acquire(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

func (l *writeLock) tryAcquire() bool {
	return l.sem.TryAcquire(1)
}

func (l *writeLock) release() {
	l.sem.Release(1)
}
