package crdt

import (
	"sort"

	"github.com/cshekharsharma/go-yata/internal/varint"
)

// DeleteSet records which clock ranges have been deleted, per client. It
// is the wire-level complement to a StateVector: a state vector says what
// exists, a delete set says which of that existing content is gone.
//
// Encoding (spec.md §4.3, §4.6):
//
//	delete_set := var_uint(num_clients) (var_uint(client) var_uint(num_ranges) (var_uint(clock) var_uint(len))*)*
type DeleteSet struct {
	set *IDSet
}

// NewDeleteSet returns an empty delete set.
func NewDeleteSet() *DeleteSet {
	return &DeleteSet{set: NewIDSet()}
}

// Insert records [clock, clock+length) as deleted for client.
func (ds *DeleteSet) Insert(client ClientID, clock Clock, length uint32) {
	ds.set.Insert(client, clock, length)
}

// Contains reports whether id has been deleted.
func (ds *DeleteSet) Contains(id ID) bool {
	return ds.set.Contains(id)
}

// IsEmpty reports whether no ranges are recorded.
func (ds *DeleteSet) IsEmpty() bool {
	return ds.set.IsEmpty()
}

// Clients lists clients with at least one deleted range, sorted
// ascending — the order the wire encoding uses.
func (ds *DeleteSet) Clients() []ClientID {
	return ds.set.Clients()
}

// Ranges returns the sorted ranges deleted for client.
func (ds *DeleteSet) Ranges(client ClientID) []IDRange {
	return ds.set.Ranges(client)
}

// Merge unions other into ds in place.
func (ds *DeleteSet) Merge(other *DeleteSet) {
	for _, c := range other.Clients() {
		for _, r := range other.Ranges(c) {
			ds.Insert(c, r.Clock, r.Len)
		}
	}
}

// Encode writes the delete set in the binary form shared by v1 and v2.
func (ds *DeleteSet) Encode(w *varint.Writer) {
	clients := ds.Clients()
	w.WriteUvarint(uint64(len(clients)))
	for _, c := range clients {
		ranges := ds.Ranges(c)
		w.WriteUvarint(c)
		w.WriteUvarint(uint64(len(ranges)))
		for _, r := range ranges {
			w.WriteUvarint(uint64(r.Clock))
			w.WriteUvarint(uint64(r.Len))
		}
	}
}

// DecodeDeleteSet reads a delete set previously written by Encode.
func DecodeDeleteSet(r *varint.Reader) (*DeleteSet, error) {
	numClients, err := r.ReadUvarint()
	if err != nil {
		return nil, wrapError(KindMalformedUpdate, err, "delete set: client count")
	}
	ds := NewDeleteSet()
	for i := uint64(0); i < numClients; i++ {
		client, err := r.ReadUvarint()
		if err != nil {
			return nil, wrapError(KindMalformedUpdate, err, "delete set: client id")
		}
		numRanges, err := r.ReadUvarint()
		if err != nil {
			return nil, wrapError(KindMalformedUpdate, err, "delete set: range count")
		}
		for j := uint64(0); j < numRanges; j++ {
			clock, err := r.ReadUvarint()
			if err != nil {
				return nil, wrapError(KindMalformedUpdate, err, "delete set: clock")
			}
			length, err := r.ReadUvarint()
			if err != nil {
				return nil, wrapError(KindMalformedUpdate, err, "delete set: len")
			}
			ds.Insert(client, Clock(clock), uint32(length))
		}
	}
	return ds, nil
}

// sortedClients is a small helper shared by state-vector/delete-set
// formatting code that wants deterministic iteration order.
func sortedClients(m map[ClientID]struct{}) []ClientID {
	out := make([]ClientID, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
