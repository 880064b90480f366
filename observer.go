package crdt

import "sync/atomic"

var observerIDCounter uint64

// ObserverHandle is returned by Observe/ObserveDeep and revokes the
// subscription when passed to Unobserve. It is safe to let a handle be
// garbage collected without calling Unobserve; the branch simply keeps
// calling it until the branch itself is gone.
type ObserverHandle struct {
	id uint64
}

type observerEntry struct {
	id       uint64
	shallow  func(*Transaction, Event)
	deep     func(*Transaction, []PathedEvent)
}

func nextObserverID() uint64 {
	return atomic.AddUint64(&observerIDCounter, 1)
}

// Observe registers fn to run whenever a commit changes this branch
// directly (spec.md §4.9 "shallow observer list").
func (b *Branch) Observe(fn func(*Transaction, Event)) ObserverHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := nextObserverID()
	b.shallow = append(b.shallow, &observerEntry{id: id, shallow: fn})
	return ObserverHandle{id: id}
}

// ObserveDeep registers fn to run whenever a commit changes this branch
// or any of its descendants (spec.md §4.9 "deep observer list"). Commit
// dispatches deep events only to root branches (those with no owning
// item), so an fn registered on a nested branch is never called.
func (b *Branch) ObserveDeep(fn func(*Transaction, []PathedEvent)) ObserverHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := nextObserverID()
	b.deep = append(b.deep, &observerEntry{id: id, deep: fn})
	return ObserverHandle{id: id}
}

// Unobserve revokes a subscription previously returned by Observe or
// ObserveDeep. Safe to call more than once; the second call is a no-op.
func (b *Branch) Unobserve(h ObserverHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shallow = removeObserver(b.shallow, h.id)
	b.deep = removeObserver(b.deep, h.id)
}

func removeObserver(list []*observerEntry, id uint64) []*observerEntry {
	out := list[:0]
	for _, e := range list {
		if e.id != id {
			out = append(out, e)
		}
	}
	return out
}

func (b *Branch) dispatchShallow(txn *Transaction, e Event) {
	b.mu.RLock()
	entries := append([]*observerEntry{}, b.shallow...)
	b.mu.RUnlock()
	for _, e2 := range entries {
		e2.shallow(txn, e)
	}
}

func (b *Branch) dispatchDeep(txn *Transaction, events []PathedEvent) {
	b.mu.RLock()
	entries := append([]*observerEntry{}, b.deep...)
	b.mu.RUnlock()
	for _, e := range entries {
		e.deep(txn, events)
	}
}
