package music

import "sync"

// Queue holds the pending tracks for every guild, strict FIFO per
// guild. Guilds are fully independent; there is no global ordering.
type Queue struct {
	mu sync.Mutex
	m  map[string][]QueueEntry
}

func NewQueue() *Queue {
	return &Queue{m: make(map[string][]QueueEntry)}
}

// Enqueue appends an entry. limit > 0 caps the queue; exceeding it
// fails with ErrQueueFull.
func (q *Queue) Enqueue(guildID string, e QueueEntry, limit int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if limit > 0 && len(q.m[guildID]) >= limit {
		return ErrQueueFull
	}
	q.m[guildID] = append(q.m[guildID], e)
	return nil
}

// DequeueFront pops the oldest entry, if any.
func (q *Queue) DequeueFront(guildID string) (QueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	entries := q.m[guildID]
	if len(entries) == 0 {
		return QueueEntry{}, false
	}
	e := entries[0]
	rest := entries[1:]
	if len(rest) == 0 {
		delete(q.m, guildID)
	} else {
		q.m[guildID] = rest
	}
	return e, true
}

func (q *Queue) Length(guildID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.m[guildID])
}

// Snapshot returns a copy of the pending entries for display.
func (q *Queue) Snapshot(guildID string) []QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	entries := q.m[guildID]
	if len(entries) == 0 {
		return nil
	}
	out := make([]QueueEntry, len(entries))
	copy(out, entries)
	return out
}

// Clear drops all pending entries for a guild.
func (q *Queue) Clear(guildID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.m, guildID)
}
