package wtecho

// counterTable accumulates the number of bytes received per stream.
// An entry exists only while its stream is open.
type counterTable map[StreamID]uint64

// add creates the entry at zero when absent and returns the new total.
func (t counterTable) add(id StreamID, n int) uint64 {
	t[id] += uint64(n)
	return t[id]
}

func (t counterTable) get(id StreamID) (uint64, bool) {
	total, ok := t[id]
	return total, ok
}

// remove deletes the entry. Removing an absent entry is a no-op.
func (t counterTable) remove(id StreamID) {
	delete(t, id)
}
