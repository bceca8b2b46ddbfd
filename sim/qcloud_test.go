package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBulkFleet(k *Kernel, alloc *Allocator, ledger *JobRecordLedger, profiles ...DeviceProfile) []Device {
	bus := NewEventBus()
	devices := make([]Device, 0, len(profiles))
	for _, p := range profiles {
		devices = append(devices, newTestQPU(k, alloc, ledger, bus, p))
	}
	return devices
}

func TestSplitRequirement_EvenWithRemainderUpFront(t *testing.T) {
	assert.Equal(t, []int64{4, 4}, splitRequirement(8, 2))
	assert.Equal(t, []int64{4, 3, 3}, splitRequirement(10, 3))
	assert.Equal(t, []int64{3, 3, 2, 2}, splitRequirement(10, 4))
}

func TestSmartSubset_MinimalPrefixByErrorScore(t *testing.T) {
	// GIVEN three eligible 10-qubit devices with distinct error scores
	k := NewKernel()
	alloc := NewAllocator()
	ledger := NewJobRecordLedger()
	devices := newBulkFleet(k, alloc, ledger,
		DeviceProfile{Name: "best", Edges: RingEdges(10), ErrorScore: 0.01},
		DeviceProfile{Name: "worst", Edges: RingEdges(10), ErrorScore: 0.05},
		DeviceProfile{Name: "middle", Edges: RingEdges(10), ErrorScore: 0.02},
	)
	eligible := make([]eligibleDevice, len(devices))
	for i, d := range devices {
		eligible[i] = eligibleDevice{dev: d.(*QuantumDevice)}
	}

	// WHEN 15 qubits must be covered
	subset := smartSubset(eligible, 15)

	// THEN the two lowest-error devices suffice and the worst one is dropped
	require.Len(t, subset, 2)
	assert.Equal(t, "best", subset[0].dev.Profile.Name)
	assert.Equal(t, "middle", subset[1].dev.Profile.Name)
}

func TestSmartSubset_NeverFewerThanTwoDevices(t *testing.T) {
	// Even when the best device alone covers the requirement, a split job
	// spans at least two devices.
	k := NewKernel()
	alloc := NewAllocator()
	ledger := NewJobRecordLedger()
	devices := newBulkFleet(k, alloc, ledger,
		DeviceProfile{Name: "big", Edges: RingEdges(20), ErrorScore: 0.01},
		DeviceProfile{Name: "small", Edges: RingEdges(5), ErrorScore: 0.02},
	)
	eligible := []eligibleDevice{
		{dev: devices[0].(*QuantumDevice)},
		{dev: devices[1].(*QuantumDevice)},
	}

	subset := smartSubset(eligible, 8)

	assert.Len(t, subset, 2)
}

func TestQCloud_AllocateLargeJob_FastPipeline(t *testing.T) {
	// GIVEN two 5-qubit devices with fixed processing times
	k := NewKernel()
	alloc := NewAllocator()
	ledger := NewJobRecordLedger()
	devices := newBulkFleet(k, alloc, ledger,
		DeviceProfile{
			Name: "q0", Edges: RingEdges(5), ProcessTimeOverride: 2.0,
			ErrorScore: 0.01, AvgSingleQubitError: 0.001, AvgReadoutError: 0.01,
		},
		DeviceProfile{
			Name: "q1", Edges: RingEdges(5), ProcessTimeOverride: 3.0,
			ErrorScore: 0.02, AvgSingleQubitError: 0.002, AvgReadoutError: 0.02,
		},
	)
	cloud, err := NewQCloud(k, alloc, ledger, AllocationFast)
	require.NoError(t, err)

	// WHEN an 8-qubit job (too large for either device) runs
	job := &QJob{ID: 9, NumQubits: 8, Depth: 10, NumShots: 100}
	finished := -1.0
	cloud.AllocateLargeJob(job, devices, func() { finished = k.Now() })
	k.Run(0)

	// THEN the makespan is one 8-qubit link delay, one feedback delay, and
	// the slowest device's processing time
	assert.InDelta(t, 0.16+0.02+3.0, finished, 1e-9)

	// and every hold was returned
	for _, d := range devices {
		assert.Equal(t, int64(5), d.(*QuantumDevice).Qubits.Level())
	}

	row := ledger.Record(9)
	require.NotNil(t, row)
	assert.Equal(t, 0.16, row[EventCommTime])
	assert.Len(t, row[EventDeviceProc], 2)
	assert.Len(t, row[EventDeviceDone], 2)

	// fidelity: per-device single and readout terms averaged, decayed once
	// for the single inter-device connection
	f0 := math.Pow(1-0.001, 10) * math.Pow(1-0.01, 2)
	f1 := math.Pow(1-0.002, 10) * math.Pow(1-0.02, 2)
	want := round((f0+f1)/2*commFidelityDecay, 4)
	fidelity, ok := ledger.LatestTime(9, EventFidelity)
	require.True(t, ok)
	assert.Equal(t, want, fidelity)
}

func TestQCloud_Gather_RetriesUntilTwoDevicesEligible(t *testing.T) {
	// GIVEN one device fully drained until t=2.5
	k := NewKernel()
	alloc := NewAllocator()
	ledger := NewJobRecordLedger()
	devices := newBulkFleet(k, alloc, ledger,
		DeviceProfile{Name: "q0", Edges: RingEdges(5), ProcessTimeOverride: 1.0},
		DeviceProfile{Name: "q1", Edges: RingEdges(5), ProcessTimeOverride: 1.0},
	)
	q1 := devices[1].(*QuantumDevice)
	require.NoError(t, q1.Qubits.Acquire(5, func() {}))
	k.Schedule(2.5, func() { q1.Qubits.Release(5) })

	cloud, err := NewQCloud(k, alloc, ledger, AllocationFast)
	require.NoError(t, err)

	// WHEN the split job arrives at t=0
	finished := -1.0
	cloud.AllocateLargeJob(&QJob{ID: 10, NumQubits: 8, Depth: 5}, devices, func() { finished = k.Now() })
	k.Run(0)

	// THEN gathering polls at unit intervals and completes after t=3
	assert.InDelta(t, 3+0.16+0.02+1.0, finished, 1e-9)
}

func TestQCloud_AllocateLargeJob_NeedsTwoQPUs(t *testing.T) {
	k := NewKernel()
	alloc := NewAllocator()
	ledger := NewJobRecordLedger()
	devices := newBulkFleet(k, alloc, ledger,
		DeviceProfile{Name: "only", Edges: RingEdges(5)})
	cloud, err := NewQCloud(k, alloc, ledger, AllocationFast)
	require.NoError(t, err)

	done := false
	cloud.AllocateLargeJob(&QJob{ID: 11, NumQubits: 8}, devices, func() { done = true })

	assert.True(t, done)
	assert.Equal(t, 0, k.Pending())
}

func TestNewQCloud_RejectsUnknownMode(t *testing.T) {
	_, err := NewQCloud(NewKernel(), NewAllocator(), NewJobRecordLedger(), "greedy")
	assert.Error(t, err)
}
