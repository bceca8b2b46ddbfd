// sim/qcloud.go
package sim

import (
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
)

// Bulk allocation policies for jobs too large for any single device.
const (
	AllocationFast  = "fast"
	AllocationSmart = "smart"
)

// Inter-device communication constants: per-qubit link delay and the fixed
// classical-feedback delay appended to each hop.
const (
	commDelayPerQubit = 0.02
	commFeedbackDelay = 0.02
	commFidelityDecay = 0.94
)

// QCloud splits jobs whose qubit requirement exceeds any single device
// across several QPUs: it gathers eligible devices, splits the requirement,
// acquires every hold, pays pairwise communication delays, waits out the
// slowest device, then releases everything and records the estimated result
// fidelity.
type QCloud struct {
	kernel *Kernel
	alloc  *Allocator
	ledger *JobRecordLedger
	mode   string
}

// NewQCloud creates the bulk allocator with the given policy.
func NewQCloud(kernel *Kernel, alloc *Allocator, ledger *JobRecordLedger, mode string) (*QCloud, error) {
	switch mode {
	case AllocationFast, AllocationSmart:
	default:
		return nil, fmt.Errorf("invalid allocation mode %q: choose %q or %q", mode, AllocationFast, AllocationSmart)
	}
	return &QCloud{kernel: kernel, alloc: alloc, ledger: ledger, mode: mode}, nil
}

// Mode returns the active allocation policy.
func (c *QCloud) Mode() string { return c.mode }

// eligibleDevice is one QPU that can host a share of a split job.
type eligibleDevice struct {
	dev   *QuantumDevice
	nodes []int64
}

// AllocateLargeJob runs the whole bulk pipeline for one job over the fleet.
// done fires after fidelity is recorded.
func (c *QCloud) AllocateLargeJob(job *QJob, devices []Device, done func()) {
	var qpus []*QuantumDevice
	for _, dev := range devices {
		if q, ok := dev.(*QuantumDevice); ok {
			qpus = append(qpus, q)
		}
	}
	if len(qpus) < 2 {
		logrus.Warnf("[t=%.2f] job %d needs at least two quantum devices to split, fleet has %d",
			c.kernel.Now(), job.ID, len(qpus))
		done()
		return
	}
	c.gather(job, qpus, done)
}

// gather polls at 1 time unit until at least two devices are eligible.
// Eligibility requires the per-device share both in free level and as a
// non-null topology selection.
func (c *QCloud) gather(job *QJob, qpus []*QuantumDevice, done func()) {
	share := ceilDiv(job.NumQubits, len(qpus))
	var eligible []eligibleDevice
	for _, q := range qpus {
		if q.Qubits.Level() < int64(share) {
			continue
		}
		if nodes := c.alloc.Select(q.Topology, share); nodes != nil {
			eligible = append(eligible, eligibleDevice{dev: q, nodes: nodes})
		}
	}
	if len(eligible) < 2 {
		logrus.Infof("[t=%.2f] insufficient connected devices for job %d, retrying", c.kernel.Now(), job.ID)
		c.kernel.Schedule(1, func() { c.gather(job, qpus, done) })
		return
	}
	selected := eligible
	if c.mode == AllocationSmart {
		selected = smartSubset(eligible, job.NumQubits)
	}
	c.acquire(job, selected, splitRequirement(job.NumQubits, len(selected)), 0, done)
}

// smartSubset sorts eligible devices by ascending error score and returns
// the minimal-count prefix whose combined free capacity covers the
// requirement (never fewer than two devices).
func smartSubset(eligible []eligibleDevice, requirement int) []eligibleDevice {
	sorted := make([]eligibleDevice, len(eligible))
	copy(sorted, eligible)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].dev.Profile.ErrorScore < sorted[j].dev.Profile.ErrorScore
	})
	var combined int64
	for count, e := range sorted {
		combined += e.dev.Qubits.Level()
		if count+1 >= 2 && combined >= int64(requirement) {
			return sorted[:count+1]
		}
	}
	return sorted
}

// splitRequirement divides the qubit requirement evenly, with the remainder
// distributed one each to the first devices in list order.
func splitRequirement(requirement, count int) []int64 {
	base := requirement / count
	rem := requirement % count
	shares := make([]int64, count)
	for i := range shares {
		shares[i] = int64(base)
		if i < rem {
			shares[i]++
		}
	}
	return shares
}

// acquire takes each device's share in list order, holding the device gate
// only around the capacity grab.
func (c *QCloud) acquire(job *QJob, selected []eligibleDevice, shares []int64, i int, done func()) {
	if i == len(selected) {
		c.communicate(job, selected, shares, 0, done)
		return
	}
	dev := selected[i].dev
	dev.Gate().Acquire(PriorityJob, func(release func()) {
		err := dev.Qubits.Acquire(shares[i], func() {
			release()
			logrus.Infof("[t=%.2f] job %d allocated %d qubits on %s (error score %.4f)",
				c.kernel.Now(), job.ID, shares[i], dev.Profile.Name, dev.Profile.ErrorScore)
			c.ledger.Log(job.ID, EventDeviceProc, round(c.kernel.Now(), 4))
			c.acquire(job, selected, shares, i+1, done)
		})
		if err != nil {
			release()
			panic(fmt.Sprintf("%s: bulk qubit acquire for job %d: %v", dev.Profile.Name, job.ID, err))
		}
	})
}

// communicate pays the link delay for each adjacent pair in allocation
// order: combined qubit count times the per-qubit delay, then the fixed
// classical-feedback delay.
func (c *QCloud) communicate(job *QJob, selected []eligibleDevice, shares []int64, i int, done func()) {
	if i >= len(selected)-1 {
		c.process(job, selected, shares, done)
		return
	}
	commTime := commDelayPerQubit * float64(shares[i]+shares[i+1])
	logrus.Infof("[t=%.2f] communication between %s and %s started",
		c.kernel.Now(), selected[i].dev.Profile.Name, selected[i+1].dev.Profile.Name)
	c.ledger.Log(job.ID, EventCommTime, round(commTime, 4))
	c.kernel.Schedule(commTime, func() {
		c.kernel.Schedule(commFeedbackDelay, func() {
			c.communicate(job, selected, shares, i+1, done)
		})
	})
}

// process waits out the slowest device, releases all holds, then records
// fidelity.
func (c *QCloud) process(job *QJob, selected []eligibleDevice, shares []int64, done func()) {
	maxTime := 0.0
	for _, e := range selected {
		if pt := e.dev.ProcessTime(job); pt > maxTime {
			maxTime = pt
		}
	}
	c.kernel.Schedule(maxTime, func() {
		for i, e := range selected {
			e.dev.Qubits.Release(shares[i])
			c.ledger.Log(job.ID, EventDeviceDone, round(c.kernel.Now(), 4))
			logrus.Infof("[t=%.2f] job %d completed on %s", c.kernel.Now(), job.ID, e.dev.Profile.Name)
		}
		c.ledger.Log(job.ID, EventFidelity, round(c.estimateFidelity(job, selected), 4))
		done()
	})
}

// estimateFidelity is the documented fidelity model: per device,
// (1-avg_single_qubit_error)^depth * (1-avg_readout_error)^sqrt(qubits per
// device), averaged, then decayed once per inter-device connection.
func (c *QCloud) estimateFidelity(job *QJob, selected []eligibleDevice) float64 {
	if len(selected) == 0 {
		return -1.0
	}
	qubitsPerDevice := float64(job.NumQubits / len(selected))
	sum := 0.0
	for _, e := range selected {
		single := math.Pow(1-e.dev.Profile.AvgSingleQubitError, float64(job.Depth))
		readout := math.Pow(1-e.dev.Profile.AvgReadoutError, math.Sqrt(qubitsPerDevice))
		sum += single * readout
	}
	avg := sum / float64(len(selected))
	penalty := math.Pow(commFidelityDecay, float64(len(selected)-1))
	return avg * penalty
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
