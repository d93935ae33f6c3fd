package sandbox

import (
	"sort"

	"github.com/dop251/goja"
)

// timer is one pending setTimeout or setInterval callback.
type timer struct {
	id       int64
	due      int64 // virtual milliseconds
	interval int64 // zero for one-shot timers
	fn       goja.Callable
	code     string
	args     []goja.Value
	stopped  bool
}

// timerQueue runs timers on a virtual clock: callbacks fire in due order
// without real waiting.
type timerQueue struct {
	now     int64
	nextID  int64
	pending map[int64]*timer
	current *timer
}

func newTimerQueue() *timerQueue {
	return &timerQueue{pending: make(map[int64]*timer)}
}

func (q *timerQueue) add(t *timer, delay int64, repeat bool) int64 {
	if delay < 0 {
		delay = 0
	}
	q.nextID++
	t.id = q.nextID
	t.due = q.now + delay
	if repeat {
		t.interval = delay
		if t.interval == 0 {
			t.interval = 1
		}
	}
	q.pending[t.id] = t
	return t.id
}

func (q *timerQueue) clear(id int64) {
	delete(q.pending, id)
	if q.current != nil && q.current.id == id {
		q.current.stopped = true
	}
}

// next removes and returns the earliest timer, advancing the clock to it.
// Ties fire in creation order.
func (q *timerQueue) next() *timer {
	if len(q.pending) == 0 {
		return nil
	}
	all := make([]*timer, 0, len(q.pending))
	for _, t := range q.pending {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].due != all[j].due {
			return all[i].due < all[j].due
		}
		return all[i].id < all[j].id
	})
	t := all[0]
	delete(q.pending, t.id)
	if t.due > q.now {
		q.now = t.due
	}
	return t
}

// reschedule puts an interval timer back under its original id unless it
// was cleared while running.
func (q *timerQueue) reschedule(t *timer) {
	if t.stopped {
		return
	}
	t.due = q.now + t.interval
	q.pending[t.id] = t
}

func (q *timerQueue) len() int {
	return len(q.pending)
}
