package crdt

// Semantic list/map operations reduce to block inserts and deletes against
// the core (spec.md §1: "their semantic operations reduce to block
// inserts/deletes on the core, which is what we specify").

// InsertText splices s into the list component of b at content-unit index,
// creating one new String-content Item owned by txn's document client.
func (b *Branch) InsertText(txn *Transaction, index uint32, s string) error {
	return b.insertContent(txn, index, ItemContent{Kind: ContentString, Str: s}, uint32(len([]rune(s))))
}

// InsertValues splices vs into the list component of b at content-unit
// index as one JSON-content Item.
func (b *Branch) InsertValues(txn *Transaction, index uint32, vs []Any) error {
	return b.insertContent(txn, index, ItemContent{Kind: ContentJSON, Values: vs}, uint32(len(vs)))
}

func (b *Branch) insertContent(txn *Transaction, index uint32, content ItemContent, length uint32) error {
	if index > b.ContentLength() {
		return newError(KindInvalidOperation, "insert: index beyond content length")
	}
	var left *Item
	var originLeft *ID
	var originRight *ID
	var right *Item

	if index == 0 {
		right = b.Start
	} else {
		target, offset, ok := b.GetAt(index-1, OffsetBytes)
		if !ok {
			return newError(KindInvalidOperation, "insert: index out of range")
		}
		if offset+1 < target.Len(OffsetBytes) {
			// index lands mid-block: split so the insertion point falls
			// exactly on a block boundary (spec.md §8 "insert at index 0
			// and at len" generalizes to any boundary via clean_start).
			target = txn.doc.store.GetItemCleanStart(ID{Client: target.ID.Client, Clock: target.ID.Clock + offset + 1})
			left = target.Left
		} else {
			left = target
		}
		id := left.LastID()
		originLeft = &id
		right = left.Right
	}
	if right != nil {
		id := right.ID
		originRight = &id
	}

	client := txn.doc.ClientID
	clock := txn.doc.store.GetState(client)
	item := &Item{
		ID:          ID{Client: client, Clock: clock},
		OriginLeft:  originLeft,
		OriginRight: originRight,
		Parent:      Parent{Kind: ParentBranch, Branch: b},
		Content:     content,
	}
	txn.doc.store.PushBlock(item)
	integrateBlock(txn.doc.store, item)
	txn.recordChange(b, itemChange{kind: changeInsert, length: length, values: content.Values})
	return nil
}

// RemoveAt marks length content-units starting at index as deleted,
// splitting surrounding blocks so the range boundaries align exactly
// (spec.md §4.6 "applying a delete set").
func (b *Branch) RemoveAt(txn *Transaction, index uint32, length uint32) error {
	if index+length > b.ContentLength() {
		return newError(KindInvalidOperation, "remove: range past content length")
	}
	remaining := length
	cur := index
	for remaining > 0 {
		it, offset, ok := b.GetAt(cur, OffsetBytes)
		if !ok {
			return newError(KindInvalidOperation, "remove: index out of range")
		}
		if offset > 0 {
			it = txn.doc.store.GetItemCleanStart(ID{Client: it.ID.Client, Clock: it.ID.Clock + offset})
		}
		span := it.Len(OffsetBytes)
		if span > remaining {
			it = txn.doc.store.GetItemCleanEnd(ID{Client: it.ID.Client, Clock: it.ID.Clock + remaining - 1})
			span = it.Len(OffsetBytes)
		}
		if !it.Deleted {
			it.Deleted = true
			b.mu.Lock()
			b.ContentLen -= span
			b.mu.Unlock()
			txn.recordChange(b, itemChange{kind: changeDelete, length: span})
			txn.recordDelete(it.ID, it.BlockLen())
		}
		remaining -= span
		cur += span
	}
	return nil
}

// Set binds key to value in the map component of b, marking any previous
// holder deleted (spec.md §4.2 point 2 "map entry splice").
func (b *Branch) Set(txn *Transaction, key string, value Any) error {
	client := txn.doc.ClientID
	clock := txn.doc.store.GetState(client)
	sub := key
	item := &Item{
		ID:        ID{Client: client, Clock: clock},
		Parent:    Parent{Kind: ParentBranch, Branch: b},
		ParentSub: &sub,
		Content:   ItemContent{Kind: ContentJSON, Values: []Any{value}},
	}
	if prev, ok := b.GetKey(key); ok {
		prev.Deleted = true
		txn.recordDelete(prev.ID, prev.BlockLen())
	}
	txn.doc.store.PushBlock(item)
	integrateBlock(txn.doc.store, item)
	txn.recordChange(b, itemChange{kind: changeInsert, length: 1, values: item.Content.Values, key: &sub})
	return nil
}

// RemoveKey deletes key's current binding in the map component, a no-op if
// already absent or already deleted (spec.md invariant 5: "deletion is
// idempotent").
func (b *Branch) RemoveKey(txn *Transaction, key string) error {
	it, ok := b.GetKey(key)
	if !ok {
		return nil
	}
	it.Deleted = true
	txn.recordDelete(it.ID, it.BlockLen())
	txn.recordChange(b, itemChange{kind: changeDelete, length: 1, key: &key})
	return nil
}
