// sim/cdevice.go
package sim

import (
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"
)

// Default compute-device capacities.
const (
	DefaultCPUCapacity   = 100
	DefaultMemBWCapacity = 200
)

// ComputeDevice models one classical node: a container of CPU units and a
// container of memory-bandwidth units, acquired in that order.
type ComputeDevice struct {
	name     string
	CPUUnits *Container
	MemBW    *Container

	kernel *Kernel
	ledger *JobRecordLedger
	bus    *EventBus
	gate   *PriorityMutex
	rng    *rand.Rand
}

// NewComputeDevice builds a compute device. rng drives per-job durations and
// CPU unit draws and must come from the compute subsystem stream.
func NewComputeDevice(kernel *Kernel, ledger *JobRecordLedger, bus *EventBus, name string, cpuCapacity, memBWCapacity int64, rng *rand.Rand) *ComputeDevice {
	return &ComputeDevice{
		name:     name,
		CPUUnits: NewContainer(kernel, name+"/cpu", cpuCapacity),
		MemBW:    NewContainer(kernel, name+"/mem_bw", memBWCapacity),
		kernel:   kernel,
		ledger:   ledger,
		bus:      bus,
		gate:     NewPriorityMutex(kernel),
		rng:      rng,
	}
}

func (d *ComputeDevice) DeviceName() string     { return d.name }
func (d *ComputeDevice) DeviceType() string     { return DeviceTypeCPU }
func (d *ComputeDevice) UnderMaintenance() bool { return false }
func (d *ComputeDevice) Gate() *PriorityMutex   { return d.gate }

// ProcessJob runs the job's classical phase: draw a randomized demand,
// acquire CPU units then memory bandwidth, hold both for a randomized
// duration in [1,3], then return all capacity.
//
// The two acquisitions are not atomic: a structural fault on the bandwidth
// acquire releases the already-held CPU units before propagating. A
// bandwidth acquire that merely blocks keeps the CPU units held and waits.
func (d *ComputeDevice) ProcessJob(job *QJob, done func()) {
	duration := 1 + 2*d.rng.Float64()
	cpuUnits := int64(4 + d.rng.Intn(7))
	memBW := job.MemBW
	if memBW == 0 {
		memBW = 20
	}

	d.ledger.Log(job.ID, EventDeviceName, d.name)
	d.ledger.Log(job.ID, "cpu_arrive", round(d.kernel.Now(), 4))
	d.ledger.Log(job.ID, "cpu_units", int(cpuUnits))
	d.ledger.Log(job.ID, "cpu_mem_bw", int(memBW))

	err := d.CPUUnits.Acquire(cpuUnits, func() {
		if err := d.MemBW.Acquire(memBW, func() { d.execute(job, duration, cpuUnits, memBW, done) }); err != nil {
			// compensating rollback before propagating the fault
			d.CPUUnits.Release(cpuUnits)
			panic(fmt.Sprintf("%s: mem_bw acquire for job %d: %v", d.name, job.ID, err))
		}
	})
	if err != nil {
		panic(fmt.Sprintf("%s: cpu acquire for job %d: %v", d.name, job.ID, err))
	}
}

func (d *ComputeDevice) execute(job *QJob, duration float64, cpuUnits, memBW int64, done func()) {
	logrus.Infof("[t=%.2f] job %d running on %s for %.1f (cpu_units=%d, mem_bw=%d)",
		d.kernel.Now(), job.ID, d.name, duration, cpuUnits, memBW)

	d.kernel.Schedule(duration, func() {
		d.bus.Publish(EventDeviceFinish, map[string]any{
			"device":    d.name,
			"job_id":    job.ID,
			"timestamp": round(d.kernel.Now(), 2),
		})
		d.CPUUnits.Release(cpuUnits)
		d.MemBW.Release(memBW)
		done()
	})
}
