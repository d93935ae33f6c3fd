package bridge

import (
	"strings"
	"sync"
	"time"
)

// Entry is one rendered line of the host log.
type Entry struct {
	Seq      int       `json:"seq"`
	Time     time.Time `json:"time"`
	Severity Severity  `json:"severity"`
	Parts    []string  `json:"parts"`
	Text     string    `json:"text"`
}

// NewEntry stamps msg with the host arrival time.
func NewEntry(at time.Time, msg *Message) Entry {
	parts := append([]string(nil), msg.Args...)
	return Entry{
		Time:     at,
		Severity: msg.Type,
		Parts:    parts,
		Text:     strings.Join(parts, " "),
	}
}

// Log is the host's append-only diagnostics log. Entries keep arrival order
// and are never mutated or removed.
type Log struct {
	mu      sync.RWMutex
	entries []Entry

	notifyMu sync.Mutex
	subs     map[int]func(Entry)
	nextSub  int
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{subs: make(map[int]func(Entry))}
}

// Append adds e at the end of the log, assigns its sequence number and
// notifies subscribers in append order.
func (l *Log) Append(e Entry) Entry {
	l.notifyMu.Lock()
	defer l.notifyMu.Unlock()

	l.mu.Lock()
	e.Seq = len(l.entries) + 1
	e.Parts = append([]string(nil), e.Parts...)
	l.entries = append(l.entries, e)
	l.mu.Unlock()

	for _, fn := range l.subs {
		fn(e)
	}
	return e
}

// Entries returns a copy of all entries in arrival order.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		e.Parts = append([]string(nil), e.Parts...)
		out[i] = e
	}
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Subscribe registers fn to be called with every entry appended after the
// call. The returned function removes the subscription.
func (l *Log) Subscribe(fn func(Entry)) func() {
	l.notifyMu.Lock()
	defer l.notifyMu.Unlock()

	id := l.nextSub
	l.nextSub++
	l.subs[id] = fn

	return func() {
		l.notifyMu.Lock()
		defer l.notifyMu.Unlock()
		delete(l.subs, id)
	}
}
