package bridge

import (
	"sync/atomic"
	"time"
)

// Receiver filters incoming cross-context messages and appends the ones
// carrying the protocol marker to its log.
type Receiver struct {
	log     *Log
	now     func() time.Time
	dropped atomic.Int64
}

// NewReceiver creates a receiver appending to log. A nil log gets a fresh one.
func NewReceiver(log *Log) *Receiver {
	if log == nil {
		log = NewLog()
	}
	return &Receiver{log: log, now: time.Now}
}

// SetClock overrides the arrival clock.
func (r *Receiver) SetClock(now func() time.Time) {
	r.now = now
}

// Receive handles one raw message. Foreign or malformed traffic is dropped
// silently and reported as false.
func (r *Receiver) Receive(raw []byte) (Entry, bool) {
	msg, ok := Decode(raw)
	if !ok {
		r.dropped.Add(1)
		return Entry{}, false
	}
	return r.log.Append(NewEntry(r.now(), msg)), true
}

// Post is Receive without the result, usable as a preview post callback.
func (r *Receiver) Post(raw []byte) {
	r.Receive(raw)
}

// Log returns the receiver's log.
func (r *Receiver) Log() *Log {
	return r.log
}

// Dropped returns how many messages were ignored.
func (r *Receiver) Dropped() int64 {
	return r.dropped.Load()
}
