package queue

// Ring is a fixed-capacity, most-recent-first list of tickets. Pushing onto a
// full ring drops the oldest entry.
type Ring struct {
	items    []int
	capacity int
}

func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{
		items:    make([]int, 0, capacity),
		capacity: capacity,
	}
}

func (r *Ring) Push(ticket int) {
	if len(r.items) < r.capacity {
		r.items = append(r.items, 0)
	}
	copy(r.items[1:], r.items[:len(r.items)-1])
	r.items[0] = ticket
}

// Items returns a copy, newest first. Never nil.
func (r *Ring) Items() []int {
	out := make([]int, len(r.items))
	copy(out, r.items)
	return out
}

func (r *Ring) Len() int {
	return len(r.items)
}

func (r *Ring) Cap() int {
	return r.capacity
}

func (r *Ring) Clear() {
	r.items = r.items[:0]
}
