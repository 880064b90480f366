package crdt

import (
	"sort"
	"sync"

	"github.com/cshekharsharma/go-yata/internal/varint"
)

// StateVector maps client -> next clock not yet seen, the watermark a
// replica uses to tell a peer "here is what I already have".
//
// Structurally this is exactly a grow-only counter per client (one slot
// per replica, merge takes the pairwise maximum) — the same
// join-semilattice shape as a state-based G-Counter. It is implemented
// that way deliberately: same mutex-guarded map, same Increment/Merge
// shape, generalized from a single global slot to one slot per
// (client, StateVector) pair.
type StateVector struct {
	mu    sync.RWMutex
	slots map[ClientID]Clock
}

// NewStateVector returns an empty state vector (every client at clock 0).
func NewStateVector() *StateVector {
	return &StateVector{slots: make(map[ClientID]Clock)}
}

// Get returns the next-clock watermark for client, or 0 if unseen.
func (sv *StateVector) Get(client ClientID) Clock {
	sv.mu.RLock()
	defer sv.mu.RUnlock()
	return sv.slots[client]
}

// Set overwrites the watermark for client. Used while building a vector
// from a block store or a decoded update; callers that want a monotonic
// bump should use Advance instead.
func (sv *StateVector) Set(client ClientID, clock Clock) {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	sv.slots[client] = clock
}

// Advance raises client's watermark to clock if clock is higher than what
// is already recorded; never moves a watermark backwards.
func (sv *StateVector) Advance(client ClientID, clock Clock) {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	if clock > sv.slots[client] {
		sv.slots[client] = clock
	}
}

// Clients returns all clients with a recorded watermark, sorted ascending.
func (sv *StateVector) Clients() []ClientID {
	sv.mu.RLock()
	defer sv.mu.RUnlock()
	out := make([]ClientID, 0, len(sv.slots))
	for c := range sv.slots {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Merge folds other's watermarks into sv, taking the maximum per client —
// the join operation of the underlying semilattice. Commutative,
// associative, idempotent, same as GCounter.Merge.
func (sv *StateVector) Merge(other *StateVector) {
	other.mu.RLock()
	defer other.mu.RUnlock()
	sv.mu.Lock()
	defer sv.mu.Unlock()
	for client, clock := range other.slots {
		if clock > sv.slots[client] {
			sv.slots[client] = clock
		}
	}
}

// Clone returns an independent copy.
func (sv *StateVector) Clone() *StateVector {
	sv.mu.RLock()
	defer sv.mu.RUnlock()
	out := NewStateVector()
	for c, clk := range sv.slots {
		out.slots[c] = clk
	}
	return out
}

// Encode writes the state vector per spec.md §4.4:
//
//	var_uint(num_clients) (var_uint(client) var_uint(clock))*
func (sv *StateVector) Encode() []byte {
	sv.mu.RLock()
	defer sv.mu.RUnlock()
	clients := make([]ClientID, 0, len(sv.slots))
	for c := range sv.slots {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i] < clients[j] })

	w := varint.NewWriter(len(clients)*10 + 2)
	w.WriteUvarint(uint64(len(clients)))
	for _, c := range clients {
		w.WriteUvarint(c)
		w.WriteUvarint(uint64(sv.slots[c]))
	}
	return w.Bytes()
}

// DecodeStateVector reads bytes written by Encode.
func DecodeStateVector(data []byte) (*StateVector, error) {
	r := varint.NewReader(data)
	numClients, err := r.ReadUvarint()
	if err != nil {
		return nil, wrapError(KindMalformedUpdate, err, "state vector: client count")
	}
	sv := NewStateVector()
	for i := uint64(0); i < numClients; i++ {
		client, err := r.ReadUvarint()
		if err != nil {
			return nil, wrapError(KindMalformedUpdate, err, "state vector: client id")
		}
		clock, err := r.ReadUvarint()
		if err != nil {
			return nil, wrapError(KindMalformedUpdate, err, "state vector: clock")
		}
		sv.slots[client] = Clock(clock)
	}
	return sv, nil
}
