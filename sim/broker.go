// sim/broker.go
package sim

import (
	"math/rand"
	"sort"
	"strconv"

	"github.com/sirupsen/logrus"
)

// Broker names accepted by configuration.
const (
	BrokerCapacity = "capacity"
	BrokerSerial   = "serial"
)

// pollInterval is the capacity broker's fixed retry granularity when no
// device qualifies. Admission latency is quantized at this step; it is a
// bounded busy-wait, not an event-driven wakeup.
const pollInterval = 0.5

// Broker sequences one job at a time through its phases. Run registers
// continuations with the kernel and returns; done fires when the job is
// terminal. The same broker instance serves every job in a run.
type Broker interface {
	Run(job *QJob, done func())
}

// CapacityBroker is the primary strategy: per iteration it selects a QPU and
// then a CPU by available capacity, runs each phase to completion, and
// derives per-phase metrics from the ledger.
type CapacityBroker struct {
	kernel  *Kernel
	devices []Device
	ledger  *JobRecordLedger
}

// NewCapacityBroker creates a capacity-aware broker over the device fleet.
func NewCapacityBroker(kernel *Kernel, devices []Device, ledger *JobRecordLedger) *CapacityBroker {
	return &CapacityBroker{kernel: kernel, devices: devices, ledger: ledger}
}

// Run drives the job through QPU->CPU iterations until the required count.
func (b *CapacityBroker) Run(job *QJob, done func()) {
	if job.Iterations <= 0 {
		job.Iterations = 1
	}
	b.iterate(job, done)
}

func (b *CapacityBroker) iterate(job *QJob, done func()) {
	if job.Iteration >= job.Iterations {
		b.recordMakespan(job)
		done()
		return
	}
	b.selectQPU(job, done)
}

func (b *CapacityBroker) selectQPU(job *QJob, done func()) {
	needed := job.NumQubits
	if needed < 1 {
		needed = 1
	}
	dev := b.pickQPU(needed)
	if dev == nil {
		b.kernel.Schedule(pollInterval, func() { b.selectQPU(job, done) })
		return
	}
	b.phaseStart(job, PhaseQPU)
	dev.ProcessJob(job, func() {
		b.phaseEnd(job, PhaseQPU)
		b.recordPhaseMetrics(job, PhaseQPU, job.Iteration)
		b.selectCPU(job, done)
	})
}

func (b *CapacityBroker) selectCPU(job *QJob, done func()) {
	needCPU, needBW := job.CPUNeeds()
	dev := b.pickCPU(needCPU, needBW)
	if dev == nil {
		b.kernel.Schedule(pollInterval, func() { b.selectCPU(job, done) })
		return
	}
	b.phaseStart(job, PhaseCPU)
	dev.ProcessJob(job, func() {
		b.phaseEnd(job, PhaseCPU)
		b.recordPhaseMetrics(job, PhaseCPU, job.Iteration)
		job.Iteration++
		logrus.Infof("[t=%.2f] job %d iteration %d/%d complete",
			b.kernel.Now(), job.ID, job.Iteration, job.Iterations)
		b.iterate(job, done)
	})
}

// pickQPU returns the eligible quantum device with the most free qubits, or
// nil. Eligible: not under maintenance, free level covers the requirement,
// and the device physically fits the job.
func (b *CapacityBroker) pickQPU(needed int) *QuantumDevice {
	var candidates []*QuantumDevice
	for _, dev := range b.devices {
		q, ok := dev.(*QuantumDevice)
		if !ok || q.UnderMaintenance() {
			continue
		}
		if q.Qubits.Level() >= int64(needed) && q.NumQubits() >= needed {
			candidates = append(candidates, q)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	// most free first, to spread load and reduce future blocking
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Qubits.Level() > candidates[j].Qubits.Level()
	})
	return candidates[0]
}

// pickCPU returns the eligible compute device with the most free CPU units,
// ties broken by most free memory bandwidth, or nil.
func (b *CapacityBroker) pickCPU(needCPU, needBW int64) *ComputeDevice {
	var candidates []*ComputeDevice
	for _, dev := range b.devices {
		c, ok := dev.(*ComputeDevice)
		if !ok || c.UnderMaintenance() {
			continue
		}
		if c.CPUUnits.Level() >= needCPU && c.MemBW.Level() >= needBW {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].CPUUnits.Level() != candidates[j].CPUUnits.Level() {
			return candidates[i].CPUUnits.Level() > candidates[j].CPUUnits.Level()
		}
		return candidates[i].MemBW.Level() > candidates[j].MemBW.Level()
	})
	return candidates[0]
}

func (b *CapacityBroker) phaseStart(job *QJob, phase string) {
	job.Phase = phase
	b.ledger.Log(job.ID, phase+"_start", round(b.kernel.Now(), 4))
}

func (b *CapacityBroker) phaseEnd(job *QJob, phase string) {
	b.ledger.Log(job.ID, phase+"_finish", round(b.kernel.Now(), 4))
}

// recordPhaseMetrics derives wait/service/turnaround for one completed phase
// iteration from the raw stamps. Missing stamps are warned about and
// skipped, never fatal.
func (b *CapacityBroker) recordPhaseMetrics(job *QJob, phase string, iter int) {
	arrive, okArr := b.ledger.LatestTime(job.ID, phase+"_arrive")
	start, okStart := b.ledger.LatestTime(job.ID, phase+"_start")
	finish, okFin := b.ledger.LatestTime(job.ID, phase+"_finish")
	if !okArr || !okStart || !okFin {
		logrus.Warnf("[t=%.2f] missing stamps for job %d %s (arrive=%v start=%v finish=%v)",
			b.kernel.Now(), job.ID, phase, okArr, okStart, okFin)
		return
	}
	wait := round(start-arrive, 4)
	svc := round(finish-start, 4)
	turn := round(finish-arrive, 4)
	b.ledger.Log(job.ID, phaseMetricKey(phase, "wait", iter), wait)
	b.ledger.Log(job.ID, phaseMetricKey(phase, "svc", iter), svc)
	b.ledger.Log(job.ID, phaseMetricKey(phase, "turn", iter), turn)
	logrus.Infof("[t=%.2f] job %d %s metrics (iter %d): wait=%v, svc=%v, turn=%v",
		b.kernel.Now(), job.ID, phase, iter, wait, svc, turn)
}

// recordMakespan logs the one terminal metric: final CPU finish minus job
// arrival, recorded once per job.
func (b *CapacityBroker) recordMakespan(job *QJob) {
	t0, ok0 := b.ledger.LatestTime(job.ID, EventArrival)
	if !ok0 {
		t0, ok0 = b.ledger.LatestTime(job.ID, "qpu_arrive")
	}
	tf, okF := b.ledger.LatestTime(job.ID, "cpu_finish")
	if !ok0 || !okF {
		logrus.Warnf("[t=%.2f] missing stamps for job %d makespan", b.kernel.Now(), job.ID)
		return
	}
	makespan := round(tf-t0, 4)
	b.ledger.Log(job.ID, EventMakespan, makespan)
	logrus.Infof("[t=%.2f] job %d makespan=%v", b.kernel.Now(), job.ID, makespan)
}

// SerialBroker is the simpler strategy: a uniformly random device of any
// type, a 1-time-unit poll while it is under maintenance, then the device
// gate at job priority and a single ProcessJob to completion. No phase
// iteration and no capacity-based selection.
type SerialBroker struct {
	kernel  *Kernel
	devices []Device
	rng     *rand.Rand
}

// NewSerialBroker creates a serial broker over the device fleet. rng must
// come from the serial subsystem stream.
func NewSerialBroker(kernel *Kernel, devices []Device, rng *rand.Rand) *SerialBroker {
	return &SerialBroker{kernel: kernel, devices: devices, rng: rng}
}

// Run assigns a random device and processes the job on it.
func (b *SerialBroker) Run(job *QJob, done func()) {
	dev := b.devices[b.rng.Intn(len(b.devices))]
	b.admit(dev, job, done)
}

func (b *SerialBroker) admit(dev Device, job *QJob, done func()) {
	if dev.UnderMaintenance() {
		logrus.Infof("[t=%.2f] job %d waiting, %s under maintenance",
			b.kernel.Now(), job.ID, dev.DeviceName())
		b.kernel.Schedule(1, func() { b.admit(dev, job, done) })
		return
	}
	dev.Gate().Acquire(PriorityJob, func(release func()) {
		dev.ProcessJob(job, func() {
			release()
			done()
		})
	})
}

func phaseMetricKey(phase, metric string, iter int) string {
	return phase + "_" + metric + "_" + strconv.Itoa(iter)
}
