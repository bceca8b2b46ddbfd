// sim/qdevice.go
package sim

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"
)

// Constants of the CLOPS-based processing-time model.
const (
	procTimeM = 100
	procTimeK = 10
)

// QuantumDevice models one QPU: a qubit topology, a container over the
// qubit count, and a priority mutex serializing allocation against
// maintenance. Allocation itself goes through the shared Allocator so graph
// mutations across all devices stay inside one critical section.
type QuantumDevice struct {
	Profile  DeviceProfile
	Topology *Topology
	Qubits   *Container

	kernel *Kernel
	alloc  *Allocator
	ledger *JobRecordLedger
	bus    *EventBus
	gate   *PriorityMutex
	rng    *rand.Rand

	maintLock bool
}

// NewQuantumDevice builds a device from a profile. rng drives the
// maintenance warm-up delay and must come from the maintenance subsystem
// stream.
func NewQuantumDevice(kernel *Kernel, alloc *Allocator, ledger *JobRecordLedger, bus *EventBus, profile DeviceProfile, rng *rand.Rand) *QuantumDevice {
	topo := NewTopology(profile.Edges)
	return &QuantumDevice{
		Profile:  profile,
		Topology: topo,
		Qubits:   NewContainer(kernel, profile.Name+"/qubits", int64(topo.NumQubits())),
		kernel:   kernel,
		alloc:    alloc,
		ledger:   ledger,
		bus:      bus,
		gate:     NewPriorityMutex(kernel),
		rng:      rng,
	}
}

func (d *QuantumDevice) DeviceName() string     { return d.Profile.Name }
func (d *QuantumDevice) DeviceType() string     { return DeviceTypeQPU }
func (d *QuantumDevice) UnderMaintenance() bool { return d.maintLock }
func (d *QuantumDevice) Gate() *PriorityMutex   { return d.gate }
func (d *QuantumDevice) NumQubits() int         { return d.Topology.NumQubits() }

// ProcessTime estimates how long the job runs on this device, in
// sim-minutes: M*K*shots*log2(qvol)/clops/60, or the profile override.
func (d *QuantumDevice) ProcessTime(job *QJob) float64 {
	if d.Profile.ProcessTimeOverride > 0 {
		return d.Profile.ProcessTimeOverride
	}
	return float64(procTimeM*procTimeK*job.NumShots) * math.Log2(d.Profile.QuantumVolume) / d.Profile.CLOPS / 60
}

// ProcessJob runs the job's quantum phase: find a connected qubit subset,
// hold that much qubit capacity, reserve the subset, wait out the processing
// time, then release everything. While no subset is available or the device
// is under maintenance, the job polls at 1 time unit.
func (d *QuantumDevice) ProcessJob(job *QJob, done func()) {
	logrus.Infof("[t=%.2f] %s received job %d requiring %d qubits (%d free)",
		d.kernel.Now(), d.Profile.Name, job.ID, job.NumQubits, d.Qubits.Level())

	d.ledger.Log(job.ID, EventDeviceName, d.Profile.Name)
	d.ledger.Log(job.ID, "qpu_arrive", round(d.kernel.Now(), 4))
	d.bus.Publish(EventDeviceStart, map[string]any{
		"device":    d.Profile.Name,
		"job_id":    job.ID,
		"timestamp": round(d.kernel.Now(), 2),
	})
	d.tryAllocate(job, done)
}

// tryAllocate is the admission loop: selection failure and the maintenance
// flag are both bounded retries, never errors.
func (d *QuantumDevice) tryAllocate(job *QJob, done func()) {
	selected := d.alloc.Select(d.Topology, job.NumQubits)
	if selected == nil || d.maintLock {
		logrus.Debugf("[t=%.2f] job %d waiting for %s", d.kernel.Now(), job.ID, d.Profile.Name)
		d.kernel.Schedule(1, func() { d.tryAllocate(job, done) })
		return
	}
	d.ledger.Log(job.ID, "qpu_units", job.NumQubits)
	if err := d.Qubits.Acquire(int64(job.NumQubits), func() { d.execute(job, selected, done) }); err != nil {
		// Select returned a subset, so the request fits the device.
		panic(fmt.Sprintf("%s: qubit acquire for job %d: %v", d.Profile.Name, job.ID, err))
	}
}

func (d *QuantumDevice) execute(job *QJob, selected []int64, done func()) {
	d.alloc.Reserve(d.Topology, selected)
	processTime := d.ProcessTime(job)
	logrus.Infof("[t=%.2f] job %d will take %.4f sim-mins on %s",
		d.kernel.Now(), job.ID, processTime, d.Profile.Name)

	d.kernel.Schedule(processTime, func() {
		d.bus.Publish(EventDeviceFinish, map[string]any{
			"device":    d.Profile.Name,
			"job_id":    job.ID,
			"timestamp": round(d.kernel.Now(), 2),
		})
		d.Qubits.Release(int64(job.NumQubits))
		d.alloc.Release(d.Topology, selected)
		logrus.Infof("[t=%.2f] job %d completed on %s", d.kernel.Now(), job.ID, d.Profile.Name)
		done()
	})
}

// StartMaintenance launches the periodic maintenance process: after a random
// warm-up, the device repeatedly waits out the maintenance interval, blocks
// new admission, takes the gate at the highest priority for the maintenance
// duration, then reopens. In-flight allocations are never preempted. The
// process has no terminal state; it ends with the simulation.
func (d *QuantumDevice) StartMaintenance() {
	if d.Profile.MaintenanceInterval <= 0 || d.Profile.MaintenanceDuration <= 0 {
		return
	}
	warmup := float64(60 + d.rng.Intn(61))
	d.kernel.Schedule(warmup, d.maintenanceCycle)
}

func (d *QuantumDevice) maintenanceCycle() {
	d.kernel.Schedule(d.Profile.MaintenanceInterval, func() {
		d.maintLock = true
		d.gate.Acquire(PriorityMaintenance, func(release func()) {
			logrus.Infof("[t=%.2f] %s under maintenance for %.1f",
				d.kernel.Now(), d.Profile.Name, d.Profile.MaintenanceDuration)
			d.kernel.Schedule(d.Profile.MaintenanceDuration, func() {
				d.maintLock = false
				release()
				d.maintenanceCycle()
			})
		})
	})
}
