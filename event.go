package crdt

// DeltaOp is one step of a change delta: a run of retained, inserted, or
// deleted countable units, in the order the transaction recorded them
// (spec.md §4.9 "a delta (inserts/deletes/retains with format)").
type DeltaOp struct {
	Retain  uint32
	Insert  []Any
	Delete  uint32
	Format  map[string]Any // non-nil only for Format-carrying retains/inserts
}

// Event is the per-branch change notification dispatched to shallow
// observers on commit. ArrayEvent/MapEvent/TextEvent/XmlEvent in spec.md
// terms collapse to this one struct since their payload shape (a delta,
// plus changed map keys) is identical; the source type is Target.TypeRef.
type Event struct {
	Target *Branch
	Delta  []DeltaOp

	// Keys lists map keys changed in this commit, for map-ish branches.
	Keys []string
}

// newDelta builds a delta covering edits recorded against branch within a
// single transaction, by folding the recorded changes in order: back-to-
// back retains or deletes are summed, and each insert is its own op.
func newDelta(changes []itemChange) []DeltaOp {
	var ops []DeltaOp
	for _, c := range changes {
		switch c.kind {
		case changeRetain:
			if n := len(ops); n > 0 && ops[n-1].Retain > 0 && ops[n-1].Insert == nil && ops[n-1].Delete == 0 {
				ops[n-1].Retain += c.length
			} else {
				ops = append(ops, DeltaOp{Retain: c.length})
			}
		case changeInsert:
			ops = append(ops, DeltaOp{Insert: c.values})
		case changeDelete:
			if n := len(ops); n > 0 && ops[n-1].Delete > 0 && ops[n-1].Insert == nil && ops[n-1].Retain == 0 {
				ops[n-1].Delete += c.length
			} else {
				ops = append(ops, DeltaOp{Delete: c.length})
			}
		}
	}
	return ops
}

type changeKind int

const (
	changeRetain changeKind = iota
	changeInsert
	changeDelete
)

type itemChange struct {
	kind   changeKind
	length uint32
	values []Any

	// key is non-nil for map-ish writes (ParentSub set on the item), so
	// changedKeys can report which map keys a commit touched.
	key *string
}
