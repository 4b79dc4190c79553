// timer.go - TSC-driven event scheduler for board devices

package main

import (
	"container/heap"
	"math"
)

// TimerHandle identifies a scheduled event for Cancel.
type TimerHandle uint64

type timerEvent struct {
	deadline uint64
	id       TimerHandle
	seq      uint64
	cb       func()
}

type timerQueue []*timerEvent

func (q timerQueue) Len() int { return len(q) }
func (q timerQueue) Less(i, j int) bool {
	if q[i].deadline != q[j].deadline {
		return q[i].deadline < q[j].deadline
	}
	return q[i].seq < q[j].seq
}
func (q timerQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *timerQueue) Push(x any)   { *q = append(*q, x.(*timerEvent)) }
func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}

// Scheduler runs callbacks when the CPU time-stamp counter passes their
// deadline. Deadlines are absolute TSC values; callbacks run synchronously
// from the CPU's clock period close and may reschedule themselves.
type Scheduler struct {
	tscHz  uint64
	clock  func() uint64
	queue  timerQueue
	live   map[TimerHandle]*timerEvent
	nextID TimerHandle
	seq    uint64
	now    uint64
}

// NewScheduler creates a scheduler whose TSC runs at tscHz ticks per second.
func NewScheduler(tscHz uint64) *Scheduler {
	return &Scheduler{
		tscHz: tscHz,
		live:  make(map[TimerHandle]*timerEvent),
	}
}

// SetClock supplies the TSC source used for relative scheduling.
func (s *Scheduler) SetClock(clock func() uint64) { s.clock = clock }

// Now returns the current TSC as seen by the scheduler.
func (s *Scheduler) Now() uint64 {
	if s.clock != nil {
		if t := s.clock(); t > s.now {
			s.now = t
		}
	}
	return s.now
}

// Hz returns the TSC frequency.
func (s *Scheduler) Hz() uint64 { return s.tscHz }

// UsecToTicks converts microseconds to TSC ticks.
func (s *Scheduler) UsecToTicks(us float64) uint64 {
	return uint64(us * float64(s.tscHz) / 1e6)
}

// TicksToUsec converts TSC ticks to microseconds.
func (s *Scheduler) TicksToUsec(ticks uint64) float64 {
	return float64(ticks) * 1e6 / float64(s.tscHz)
}

// Schedule fires cb delay ticks from now.
func (s *Scheduler) Schedule(delay uint64, cb func()) TimerHandle {
	return s.ScheduleAt(s.Now()+delay, cb)
}

// ScheduleUsec fires cb us microseconds from now.
func (s *Scheduler) ScheduleUsec(us float64, cb func()) TimerHandle {
	return s.Schedule(s.UsecToTicks(us), cb)
}

// ScheduleAt fires cb once the TSC reaches deadline.
func (s *Scheduler) ScheduleAt(deadline uint64, cb func()) TimerHandle {
	s.nextID++
	s.seq++
	e := &timerEvent{deadline: deadline, id: s.nextID, seq: s.seq, cb: cb}
	heap.Push(&s.queue, e)
	s.live[e.id] = e
	return e.id
}

// Cancel removes a pending event. Cancelling a fired or unknown handle is a
// no-op.
func (s *Scheduler) Cancel(h TimerHandle) {
	if e, ok := s.live[h]; ok {
		e.cb = nil
		delete(s.live, h)
	}
}

// Pending reports whether h has not yet fired or been cancelled.
func (s *Scheduler) Pending(h TimerHandle) bool {
	_, ok := s.live[h]
	return ok
}

// NextDeadline returns the earliest live deadline, or MaxUint64 when idle.
func (s *Scheduler) NextDeadline() uint64 {
	for len(s.queue) > 0 && s.queue[0].cb == nil {
		heap.Pop(&s.queue)
	}
	if len(s.queue) == 0 {
		return math.MaxUint64
	}
	return s.queue[0].deadline
}

// ProcessDue runs every event whose deadline is at or before now, in
// deadline order.
func (s *Scheduler) ProcessDue(now uint64) {
	if now > s.now {
		s.now = now
	}
	for s.NextDeadline() <= now {
		e := heap.Pop(&s.queue).(*timerEvent)
		delete(s.live, e.id)
		e.cb()
	}
}

// Reset drops every pending event.
func (s *Scheduler) Reset() {
	s.queue = s.queue[:0]
	clear(s.live)
}
