package bufferpool

// clock implements CLOCK (second-chance) replacement over frame indices
// [0..capacity). Only frames marked evictable (pin == 0) are candidates.
type clock struct {
	ref       []bool
	evictable []bool
	present   []bool
	hand      int
	size      int // number of evictable frames
}

var _ Replacer = (*clock)(nil)

func newClock(capacity int) *clock {
	if capacity <= 0 {
		capacity = 1
	}
	return &clock{
		ref:       make([]bool, capacity),
		evictable: make([]bool, capacity),
		present:   make([]bool, capacity),
	}
}

func (c *clock) valid(id int) bool { return id >= 0 && id < len(c.ref) }

func (c *clock) RecordAccess(id int) {
	if !c.valid(id) {
		return
	}
	c.present[id] = true
	c.ref[id] = true
}

func (c *clock) SetEvictable(id int, evictable bool) {
	if !c.valid(id) || !c.present[id] || c.evictable[id] == evictable {
		return
	}
	c.evictable[id] = evictable
	if evictable {
		c.size++
	} else {
		c.size--
	}
}

// Evict sweeps at most twice around the clock; a referenced frame gets its
// bit cleared and is skipped once.
func (c *clock) Evict() (int, bool) {
	n := len(c.ref)
	if c.size == 0 {
		return -1, false
	}
	for i := 0; i < 2*n; i++ {
		idx := c.hand
		c.hand = (c.hand + 1) % n

		if !c.present[idx] || !c.evictable[idx] {
			continue
		}
		if c.ref[idx] {
			c.ref[idx] = false
			continue
		}
		c.forget(idx)
		return idx, true
	}
	return -1, false
}

func (c *clock) Remove(id int) {
	if !c.valid(id) || !c.present[id] {
		return
	}
	c.forget(id)
}

func (c *clock) forget(id int) {
	if c.evictable[id] {
		c.size--
	}
	c.present[id] = false
	c.evictable[id] = false
	c.ref[id] = false
}

func (c *clock) Size() int { return c.size }
