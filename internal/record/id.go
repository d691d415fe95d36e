package record

import (
	"sync"
	"time"
)

// IDGenerator hands out record ids derived from the creation instant.
//
// Ids are millisecond Unix timestamps, bumped past the last issued id when
// the clock has not advanced, so ids are strictly increasing within a
// process even when many records are created in the same tick.
type IDGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewIDGenerator returns a generator using the wall clock.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{now: time.Now}
}

// NewIDGeneratorWithClock returns a generator reading time from now.
func NewIDGeneratorWithClock(now func() time.Time) *IDGenerator {
	return &IDGenerator{now: now}
}

// Next returns a new unique id.
func (g *IDGenerator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.now().UnixMilli()
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return id
}

// Observe makes sure future ids are greater than every id in records.
func (g *IDGenerator) Observe(records []Record) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, r := range records {
		if r.ID > g.last {
			g.last = r.ID
		}
	}
}
