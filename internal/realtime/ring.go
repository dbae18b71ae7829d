package realtime

// Key identifies one row across tables.
type Key struct {
	Table Table  `json:"table"`
	ID    string `json:"id"`
}

type slot[V any] struct {
	key  Key
	val  V
	used bool
}

// ring is a fixed-capacity map that evicts its oldest insertion when full.
// Updating an existing key keeps its position.
type ring[V any] struct {
	slots []slot[V]
	next  int
	index map[Key]int
}

func newRing[V any](capacity int) *ring[V] {
	if capacity < 1 {
		capacity = 1
	}
	return &ring[V]{
		slots: make([]slot[V], capacity),
		index: make(map[Key]int, capacity),
	}
}

func (r *ring[V]) Get(k Key) (V, bool) {
	i, ok := r.index[k]
	if !ok {
		var zero V
		return zero, false
	}
	return r.slots[i].val, true
}

func (r *ring[V]) Has(k Key) bool {
	_, ok := r.index[k]
	return ok
}

func (r *ring[V]) Put(k Key, v V) {
	if i, ok := r.index[k]; ok {
		r.slots[i].val = v
		return
	}
	old := r.slots[r.next]
	if old.used && r.index[old.key] == r.next {
		delete(r.index, old.key)
	}
	r.slots[r.next] = slot[V]{key: k, val: v, used: true}
	r.index[k] = r.next
	r.next = (r.next + 1) % len(r.slots)
}

func (r *ring[V]) Remove(k Key) {
	i, ok := r.index[k]
	if !ok {
		return
	}
	delete(r.index, k)
	r.slots[i] = slot[V]{}
}

func (r *ring[V]) Len() int { return len(r.index) }

// Range calls fn for every live entry until fn returns false.
func (r *ring[V]) Range(fn func(Key, V) bool) {
	for _, s := range r.slots {
		if s.used && !fn(s.key, s.val) {
			return
		}
	}
}
