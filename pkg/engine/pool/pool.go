// Package pool implements the executor's thread pool: a bounded number of
// worker goroutines pumping a lock-free MPMC task queue, with an explicit
// pause/resume gate so the audio thread can drive worker activity in lock
// step with chunk boundaries. Completion of a batch of submitted work is
// NOT tracked by the pool itself; that is the executor's job (an atomic
// task counter plus a binary semaphore, see engine.Executor). The pool
// only guarantees that paused workers stop
// dequeuing and resumed workers keep draining until told to stop again.
package pool

import (
	"sync"
	"sync/atomic"
)

// Task is the unit of work submitted to the pool: a fixed-size descriptor
// naming the Runner plus the (stage, voice, task) coordinates and per-run
// figures it needs. Modeling the payload as a typed value rather than a
// closure or an opaque byte block keeps enqueue/dequeue allocation-free:
// ring slots copy the struct, and nothing escapes to the heap per task.
type Task struct {
	Runner Runner

	Stage      int32
	Voice      int32
	Index      int32
	Frames     int32
	SampleRate float64
}

// Runner executes task descriptors. The executor implements it once and
// names itself in every descriptor it submits. RunTask must not block; the
// real-time discipline requires every task to complete promptly.
type Runner interface {
	RunTask(t Task)
}

// ringQueue is a lock-free, fixed-capacity MPMC circular buffer sized to
// the graph's max task concurrency. Each slot carries a sequence stamp that
// doubles as the publish barrier: a producer only stores its task after
// claiming the slot, and only bumps the stamp after the store, so a consumer
// racing on the same slot spins on the stamp instead of observing a
// half-written entry. Producers and consumers each advance their own atomic
// cursor with the same CAS-retry shape as the buffer allocator's free list.
type ringQueue struct {
	slots []ringSlot
	mask  uint32

	head atomic.Uint32 // next sequence a producer claims
	tail atomic.Uint32 // next sequence a consumer claims
}

type ringSlot struct {
	seq  atomic.Uint32
	task Task
}

func newRingQueue(capacity int) *ringQueue {
	c := nextPow2(capacity)
	q := &ringQueue{
		slots: make([]ringSlot, c),
		mask:  uint32(c - 1),
	}
	for i := range q.slots {
		q.slots[i].seq.Store(uint32(i))
	}
	return q
}

func nextPow2(n int) int {
	// Minimum 2: the sequence-stamp scheme needs at least one lap of slack
	// to tell a full slot from an empty one.
	p := 2
	for p < n {
		p <<= 1
	}
	return p
}

// push enqueues t. Asserts capacity rather than blocking: maxTasks is sized
// from the graph's max concurrency, so a full queue means that bound was
// wrong.
func (q *ringQueue) push(t Task) {
	pos := q.head.Load()
	for {
		s := &q.slots[pos&q.mask]
		switch d := int32(s.seq.Load() - pos); {
		case d == 0:
			if q.head.CompareAndSwap(pos, pos+1) {
				s.task = t
				s.seq.Store(pos + 1)
				return
			}
			pos = q.head.Load()
		case d < 0:
			// The slot still holds an entry from a full lap ago.
			panic("thread pool: task queue capacity exceeded")
		default:
			pos = q.head.Load()
		}
	}
}

// pop dequeues a task, or returns a zero Task and false if the queue is
// empty.
func (q *ringQueue) pop() (Task, bool) {
	pos := q.tail.Load()
	for {
		s := &q.slots[pos&q.mask]
		switch d := int32(s.seq.Load() - (pos + 1)); {
		case d == 0:
			if q.tail.CompareAndSwap(pos, pos+1) {
				t := s.task
				s.task = Task{}
				s.seq.Store(pos + q.mask + 1)
				return t, true
			}
			pos = q.tail.Load()
		case d < 0:
			return Task{}, false
		default:
			pos = q.tail.Load()
		}
	}
}

// Len reports the number of tasks currently queued, used by Stop to report
// unexecuted work. It is a snapshot of the cursors, exact once producers and
// consumers have quiesced (which is the only time Stop reads it).
func (q *ringQueue) Len() int {
	n := int(int32(q.head.Load() - q.tail.Load()))
	if n < 0 {
		return 0
	}
	return n
}

// Pool is the executor's thread pool. With threadCount == 0 it has no
// worker goroutines at all: Resume drains the queue inline on the calling
// (audio) goroutine, the standard real-time-safe configuration.
type Pool struct {
	queue       *ringQueue
	threadCount int

	paused  atomic.Bool
	wake    chan struct{}
	stopCh  chan struct{}
	workers sync.WaitGroup
}

// New constructs a pool with the given worker count and queue capacity.
// maxTasks must equal the graph's max concurrency figure. With startPaused,
// workers are still spawned immediately; they simply sit idle until the
// first Resume.
func New(threadCount, maxTasks int, startPaused bool) *Pool {
	p := &Pool{
		queue:  newRingQueue(maxTasks),
		stopCh: make(chan struct{}),
		wake:   make(chan struct{}, 1),
	}
	p.threadCount = threadCount
	p.paused.Store(startPaused)

	for i := 0; i < threadCount; i++ {
		p.workers.Add(1)
		go p.workerLoop()
	}
	return p
}

// AddTask enqueues a task. Safe to call from a worker goroutine, which is
// how a completed task submits its newly-ready successors. With
// threadCount == 0 there are no workers to race with: AddTask is only ever
// called from the inline Resume drain loop or from the audio thread itself.
func (p *Pool) AddTask(t Task) {
	p.queue.push(t)
	p.nudge()
}

func (p *Pool) nudge() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Resume opens the gate. With threadCount == 0 it synchronously drains the
// queue (including any successors newly-ready tasks enqueue) on the
// calling goroutine before returning. With worker goroutines present, it
// only wakes them; the caller is responsible for its own completion
// signal (the executor's all_tasks_complete_signal), since the pool has no
// way to know when a fork/join batch — as opposed to the queue merely
// being momentarily empty — has actually finished.
func (p *Pool) Resume() {
	p.paused.Store(false)
	if p.threadCount == 0 {
		for {
			t, ok := p.queue.pop()
			if !ok {
				return
			}
			t.Runner.RunTask(t)
		}
	}
	p.nudge()
}

// Pause sets the pause flag. Not a hard stop: in-flight tasks complete, but
// workers stop dequeuing further entries once they next check the flag.
func (p *Pool) Pause() {
	p.paused.Store(true)
}

// Stop joins all worker goroutines and returns the number of unexecuted
// queued tasks (callers assert this is zero at shutdown).
func (p *Pool) Stop() int {
	close(p.stopCh)
	p.workers.Wait()
	return p.queue.Len()
}

func (p *Pool) workerLoop() {
	defer p.workers.Done()
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		if p.paused.Load() {
			select {
			case <-p.wake:
			case <-p.stopCh:
				return
			}
			continue
		}

		t, ok := p.queue.pop()
		if !ok {
			select {
			case <-p.wake:
			case <-p.stopCh:
				return
			}
			continue
		}

		t.Runner.RunTask(t)
	}
}
