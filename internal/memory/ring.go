package memory

// ring is a fixed-capacity FIFO of turns. Pushing into a full ring overwrites the oldest slot.
type ring struct {
	slots []Turn
	head  int
	size  int
}

func newRing(capacity int) *ring {
	return &ring{slots: make([]Turn, capacity)}
}

// push appends t and returns the turn it displaced, if any.
func (r *ring) push(t Turn) (Turn, bool) {
	if r.size < len(r.slots) {
		r.slots[(r.head+r.size)%len(r.slots)] = t
		r.size++
		return Turn{}, false
	}
	evicted := r.slots[r.head]
	r.slots[r.head] = t
	r.head = (r.head + 1) % len(r.slots)
	return evicted, true
}

// at returns the i-th oldest turn.
func (r *ring) at(i int) Turn {
	return r.slots[(r.head+i)%len(r.slots)]
}

func (r *ring) last() (Turn, bool) {
	if r.size == 0 {
		return Turn{}, false
	}
	return r.at(r.size - 1), true
}

func (r *ring) len() int { return r.size }

func (r *ring) reset() {
	clear(r.slots)
	r.head = 0
	r.size = 0
}
