// sim/kernel.go
package sim

import (
	"container/heap"
	"fmt"

	"github.com/sirupsen/logrus"
)

// event is a pending resumption: a continuation due at a simulated instant.
// seq is assigned at Schedule time and breaks ties between events due at the
// same instant, so same-instant events always execute in submission order.
type event struct {
	due float64
	seq int64
	run func()
}

// eventHeap implements heap.Interface and orders events by (due, seq).
// See canonical Golang example here: https://pkg.go.dev/container/heap#example-package-IntHeap
type eventHeap []*event

func (eq eventHeap) Len() int { return len(eq) }
func (eq eventHeap) Less(i, j int) bool {
	if eq[i].due != eq[j].due {
		return eq[i].due < eq[j].due
	}
	return eq[i].seq < eq[j].seq
}
func (eq eventHeap) Swap(i, j int) { eq[i], eq[j] = eq[j], eq[i] }

func (eq *eventHeap) Push(x any) {
	*eq = append(*eq, x.(*event))
}

func (eq *eventHeap) Pop() any {
	old := *eq
	n := len(old)
	item := old[n-1]
	*eq = old[0 : n-1]
	return item
}

// Kernel is the virtual clock and event loop that drives the whole
// simulation. Jobs and devices are cooperative tasks: every blocking
// operation (timeout, mutex wait, container wait, polling retry) registers a
// continuation with the kernel or with a resource primitive and returns.
// Exactly one continuation runs between suspension points, so no task ever
// observes a torn intermediate state.
type Kernel struct {
	now     float64
	nextSeq int64
	queue   eventHeap
}

// NewKernel creates a kernel with the clock at zero and an empty event queue.
func NewKernel() *Kernel {
	return &Kernel{queue: make(eventHeap, 0)}
}

// Now returns the current simulated time.
func (k *Kernel) Now() float64 {
	return k.now
}

// Pending returns the number of events waiting in the queue.
func (k *Kernel) Pending() int {
	return len(k.queue)
}

// Schedule enqueues run to execute at now+delay. A negative delay is a
// programming error and panics; the simulation cannot go back in time.
func (k *Kernel) Schedule(delay float64, run func()) {
	if delay < 0 {
		panic(fmt.Sprintf("kernel: negative delay %v scheduled at t=%v", delay, k.now))
	}
	ev := &event{due: k.now + delay, seq: k.nextSeq, run: run}
	k.nextSeq++
	heap.Push(&k.queue, ev)
}

// Run repeatedly pops the earliest event, advances the clock to its due time
// and invokes its continuation, until the queue is empty or the horizon is
// reached. until <= 0 means no horizon: run until the queue drains. When the
// horizon cuts the run short, the clock is left exactly at the horizon.
func (k *Kernel) Run(until float64) {
	for len(k.queue) > 0 {
		ev := heap.Pop(&k.queue).(*event)
		if until > 0 && ev.due > until {
			heap.Push(&k.queue, ev)
			k.now = until
			logrus.Infof("[t=%.2f] horizon reached, %d events pending", k.now, len(k.queue))
			return
		}
		// advance the clock, then process the event
		k.now = ev.due
		ev.run()
	}
	logrus.Infof("[t=%.2f] event queue drained", k.now)
}
