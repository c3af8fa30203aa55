package indexsync

import (
	"sync"
	"time"
)

// keyedMutex hands out one mutex per key. Entries are dropped once no
// goroutine holds or waits for them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock blocks until key is free and returns the matching unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.mu.Lock()
	return func() {
		m.mu.Unlock()

		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

// seqTable remembers the last applied sequence number per item for ttl.
type seqTable struct {
	mu        sync.Mutex
	entries   map[string]seqEntry
	ttl       time.Duration
	nowFunc   func() time.Time
	nextSweep int
}

type seqEntry struct {
	seq     int64
	expires time.Time
}

const minSweepSize = 1024

func newSeqTable(ttl time.Duration) *seqTable {
	return &seqTable{
		entries:   make(map[string]seqEntry),
		ttl:       ttl,
		nowFunc:   time.Now,
		nextSweep: minSweepSize,
	}
}

// last returns the last applied sequence for id, if it has not expired.
func (t *seqTable) last(id string) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok {
		return 0, false
	}
	if !t.nowFunc().Before(e.expires) {
		delete(t.entries, id)
		return 0, false
	}
	return e.seq, true
}

// record stores seq for id unless a higher one is already known.
func (t *seqTable) record(id string, seq int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.nowFunc()
	if e, ok := t.entries[id]; ok && e.seq > seq && now.Before(e.expires) {
		return
	}
	t.entries[id] = seqEntry{seq: seq, expires: now.Add(t.ttl)}

	if len(t.entries) >= t.nextSweep {
		t.sweep(now)
		t.nextSweep = max(2*len(t.entries), minSweepSize)
	}
}

func (t *seqTable) sweep(now time.Time) {
	for id, e := range t.entries {
		if !now.Before(e.expires) {
			delete(t.entries, id)
		}
	}
}

func (t *seqTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
