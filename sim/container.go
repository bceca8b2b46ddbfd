// sim/container.go
package sim

import "fmt"

// containerWaiter is a suspended Acquire: the amount requested plus the
// continuation to resume once the level covers it.
type containerWaiter struct {
	amount int64
	cont   func()
}

// Container is a counting semaphore over an integer level in [0, capacity].
// It models device capacity: qubits on a quantum device, CPU units and
// memory bandwidth on a compute device.
//
// Waiters are FIFO: on every release the kernel wakes waiters strictly in
// arrival order, re-checking the level for each, and stops at the first
// waiter it cannot satisfy. A waiter for a large amount therefore blocks
// later smaller requests behind it rather than being skipped.
type Container struct {
	kernel   *Kernel
	name     string
	capacity int64
	level    int64
	waiters  []containerWaiter
}

// NewContainer creates a full container of the given capacity.
func NewContainer(kernel *Kernel, name string, capacity int64) *Container {
	if capacity <= 0 {
		panic(fmt.Sprintf("container %s: capacity must be positive, got %d", name, capacity))
	}
	return &Container{kernel: kernel, name: name, capacity: capacity, level: capacity}
}

// Name returns the container's name, used in logs.
func (c *Container) Name() string { return c.name }

// Level returns the currently available amount.
func (c *Container) Level() int64 { return c.level }

// Capacity returns the fixed capacity.
func (c *Container) Capacity() int64 { return c.capacity }

// Waiting returns the number of suspended acquirers.
func (c *Container) Waiting() int { return len(c.waiters) }

// Acquire takes amount units, running cont once they are held. If the level
// covers the request and nobody is queued ahead, cont runs immediately
// without yielding control; otherwise the caller is suspended in FIFO order.
//
// A request that can never be satisfied (negative, or above capacity) is a
// structural fault and returns an error synchronously; cont will not run and
// nothing is taken. Callers holding sibling resources must release them
// before propagating (compensating rollback).
func (c *Container) Acquire(amount int64, cont func()) error {
	if amount < 0 {
		return fmt.Errorf("container %s: negative acquire amount %d", c.name, amount)
	}
	if amount > c.capacity {
		return fmt.Errorf("container %s: acquire of %d exceeds capacity %d", c.name, amount, c.capacity)
	}
	if len(c.waiters) == 0 && c.level >= amount {
		c.level -= amount
		cont()
		return nil
	}
	c.waiters = append(c.waiters, containerWaiter{amount: amount, cont: cont})
	return nil
}

// Release returns amount units, clamped so the level never exceeds capacity,
// and wakes satisfiable waiters in arrival order.
func (c *Container) Release(amount int64) {
	if amount < 0 {
		panic(fmt.Sprintf("container %s: negative release amount %d", c.name, amount))
	}
	c.level += amount
	if c.level > c.capacity {
		c.level = c.capacity
	}
	c.wake()
}

// wake resumes queued waiters front-to-back while the level covers them.
// Resumptions are scheduled at the current instant so they execute in
// deterministic submission order after the releasing task suspends.
func (c *Container) wake() {
	for len(c.waiters) > 0 && c.level >= c.waiters[0].amount {
		w := c.waiters[0]
		c.waiters = c.waiters[1:]
		c.level -= w.amount
		c.kernel.Schedule(0, w.cont)
	}
}
