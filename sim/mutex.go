// sim/mutex.go
package sim

// Admission priorities for a device's allocation gate. Maintenance always
// outranks jobs so a due maintenance window is the next holder.
const (
	PriorityMaintenance = 1
	PriorityJob         = 2
)

// mutexWaiter is a suspended Acquire: the requested priority, an arrival
// order token, and the continuation that receives the lock.
type mutexWaiter struct {
	priority int
	arrival  int64
	grant    func(release func())
}

// PriorityMutex is a single-holder lock whose waiters are served by lowest
// priority number first and, within a priority, in arrival order. Each device
// owns one to serialize allocation transactions.
type PriorityMutex struct {
	kernel      *Kernel
	held        bool
	nextArrival int64
	waiters     []*mutexWaiter
}

// NewPriorityMutex creates an unheld mutex.
func NewPriorityMutex(kernel *Kernel) *PriorityMutex {
	return &PriorityMutex{kernel: kernel}
}

// Held reports whether the mutex currently has a holder.
func (m *PriorityMutex) Held() bool { return m.held }

// Waiting returns the number of suspended acquirers.
func (m *PriorityMutex) Waiting() int { return len(m.waiters) }

// Acquire requests the lock at the given priority. grant runs once the lock
// is held and receives a release func that must be called exactly when the
// holder's scope ends; calling it more than once is a no-op. If the lock is
// free and nobody waits, grant runs immediately without yielding control.
func (m *PriorityMutex) Acquire(priority int, grant func(release func())) {
	w := &mutexWaiter{priority: priority, arrival: m.nextArrival, grant: grant}
	m.nextArrival++
	if !m.held && len(m.waiters) == 0 {
		m.held = true
		grant(m.releaseOnce())
		return
	}
	m.waiters = append(m.waiters, w)
}

// releaseOnce builds the idempotent release handle for the current holder.
func (m *PriorityMutex) releaseOnce() func() {
	released := false
	return func() {
		if released {
			return
		}
		released = true
		m.release()
	}
}

// release hands the lock to the best-ranked waiter, if any. The new holder
// is resumed through the kernel at the current instant, preserving
// deterministic ordering against other same-instant events.
func (m *PriorityMutex) release() {
	m.held = false
	if len(m.waiters) == 0 {
		return
	}
	best := 0
	for i, w := range m.waiters {
		if w.priority < m.waiters[best].priority ||
			(w.priority == m.waiters[best].priority && w.arrival < m.waiters[best].arrival) {
			best = i
		}
	}
	w := m.waiters[best]
	m.waiters = append(m.waiters[:best], m.waiters[best+1:]...)
	m.held = true
	m.kernel.Schedule(0, func() { w.grant(m.releaseOnce()) })
}
