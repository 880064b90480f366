package crdt

import "fmt"

// ClientID identifies a replica. Assigned once, randomly, per replica and
// never reused for the lifetime of that replica's history.
type ClientID = uint64

// Clock is a per-client monotonically increasing sequence number. Never
// reused: once clock c has been assigned to a block at a client, no later
// block at that client will reuse it.
type Clock = uint32

// ID names a single logical position in the document: the client that
// created it and the clock it was assigned. A block occupies the
// half-open range [ID.Clock, ID.Clock+Len) at ID.Client.
type ID struct {
	Client ClientID
	Clock  Clock
}

func (id ID) String() string {
	return fmt.Sprintf("(%d,%d)", id.Client, id.Clock)
}

// Less orders IDs first by client, then by clock. Used to keep per-client
// sections of an encoded update in a stable, canonical order.
func (id ID) Less(other ID) bool {
	if id.Client != other.Client {
		return id.Client < other.Client
	}
	return id.Clock < other.Clock
}

// IDRange is a half-open clock interval [Clock, Clock+Len) at a single
// client, as used by state vectors' watermark-to-here ranges and the
// per-client block lists.
type IDRange struct {
	Clock Clock
	Len   uint32
}

// End returns the first clock not covered by this range.
func (r IDRange) End() Clock { return r.Clock + r.Len }

// Contains reports whether clock is inside this range.
func (r IDRange) Contains(clock Clock) bool {
	return clock >= r.Clock && clock < r.End()
}

// Overlaps reports whether r and other share at least one clock.
func (r IDRange) Overlaps(other IDRange) bool {
	return r.Clock < other.End() && other.Clock < r.End()
}

// Adjacent reports whether other starts exactly where r ends (or vice
// versa), the condition under which two ranges can be merged into one.
func (r IDRange) Adjacent(other IDRange) bool {
	return r.End() == other.Clock || other.End() == r.Clock
}

// Merge returns the union of r and an adjacent or overlapping other. The
// caller must ensure Adjacent(other) || Overlaps(other) holds.
func (r IDRange) Merge(other IDRange) IDRange {
	start := r.Clock
	if other.Clock < start {
		start = other.Clock
	}
	end := r.End()
	if other.End() > end {
		end = other.End()
	}
	return IDRange{Clock: start, Len: end - start}
}
