package sim

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQPU(k *Kernel, alloc *Allocator, ledger *JobRecordLedger, bus *EventBus, profile DeviceProfile) *QuantumDevice {
	return NewQuantumDevice(k, alloc, ledger, bus, profile, rand.New(rand.NewSource(1)))
}

func TestQuantumDevice_ProcessTime_CLOPSFormula(t *testing.T) {
	k := NewKernel()
	d := newTestQPU(k, NewAllocator(), NewJobRecordLedger(), NewEventBus(), DeviceProfile{
		Name:          "qdev",
		Edges:         RingEdges(5),
		CLOPS:         1400,
		QuantumVolume: 32,
	})
	job := &QJob{ID: 1, NumShots: 10000}

	// 100*10*10000*log2(32)/1400/60
	assert.InDelta(t, 595.2381, d.ProcessTime(job), 1e-4)
}

func TestQuantumDevice_ProcessTime_Override(t *testing.T) {
	k := NewKernel()
	d := newTestQPU(k, NewAllocator(), NewJobRecordLedger(), NewEventBus(), DeviceProfile{
		Name:                "qdev",
		Edges:               RingEdges(5),
		ProcessTimeOverride: 2.5,
	})

	assert.Equal(t, 2.5, d.ProcessTime(&QJob{ID: 1, NumShots: 10000}))
}

func TestQuantumDevice_ProcessJob_FullRingRoundTrip(t *testing.T) {
	// GIVEN an idle 5-qubit ring device with a fixed processing time
	k := NewKernel()
	ledger := NewJobRecordLedger()
	d := newTestQPU(k, NewAllocator(), ledger, NewEventBus(), DeviceProfile{
		Name:                "qdev",
		Edges:               RingEdges(5),
		ProcessTimeOverride: 2.0,
	})
	job := &QJob{ID: 7, NumQubits: 5, NumShots: 100}

	// WHEN a job needing all five qubits runs to completion
	finished := -1.0
	d.ProcessJob(job, func() { finished = k.Now() })
	k.Run(0)

	// THEN it held the device for the processing time and restored it fully
	assert.Equal(t, 2.0, finished)
	assert.Equal(t, int64(5), d.Qubits.Level())
	assert.Equal(t, 5, d.Topology.EdgeCount())
	assert.Equal(t, 5, d.Topology.FreeCount())

	row := ledger.Record(7)
	require.NotNil(t, row)
	assert.Equal(t, "qdev", row[EventDeviceName])
	assert.Equal(t, 0.0, row["qpu_arrive"])
	assert.Equal(t, 5, row["qpu_units"])
}

func TestQuantumDevice_ProcessJob_SecondJobPollsUntilRelease(t *testing.T) {
	// GIVEN a ring device occupied by a 4-qubit job until t=2
	k := NewKernel()
	d := newTestQPU(k, NewAllocator(), NewJobRecordLedger(), NewEventBus(), DeviceProfile{
		Name:                "qdev",
		Edges:               RingEdges(5),
		ProcessTimeOverride: 2.0,
	})
	d.ProcessJob(&QJob{ID: 1, NumQubits: 4}, func() {})

	// WHEN a second 4-qubit job arrives at t=0
	finished := -1.0
	d.ProcessJob(&QJob{ID: 2, NumQubits: 4}, func() { finished = k.Now() })
	k.Run(0)

	// THEN it polls at unit intervals, admits at t=2 and finishes at t=4
	assert.Equal(t, 4.0, finished)
	assert.Equal(t, int64(5), d.Qubits.Level())
}

func TestQuantumDevice_Maintenance_BlocksAdmission(t *testing.T) {
	// GIVEN a device already under maintenance
	k := NewKernel()
	d := newTestQPU(k, NewAllocator(), NewJobRecordLedger(), NewEventBus(), DeviceProfile{
		Name:                "qdev",
		Edges:               RingEdges(5),
		ProcessTimeOverride: 1.0,
	})
	d.maintLock = true

	// WHEN a job arrives and maintenance ends at t=2.5
	finished := -1.0
	d.ProcessJob(&QJob{ID: 1, NumQubits: 3}, func() { finished = k.Now() })
	k.Schedule(2.5, func() { d.maintLock = false })
	k.Run(0)

	// THEN the job is admitted on its first poll after reopening
	assert.Equal(t, 4.0, finished)
}

func TestQuantumDevice_Maintenance_CycleTogglesLock(t *testing.T) {
	// GIVEN a maintenance schedule and a mirrored rng to predict the warm-up
	k := NewKernel()
	mirror := rand.New(rand.NewSource(11))
	warmup := float64(60 + mirror.Intn(61))
	d := NewQuantumDevice(k, NewAllocator(), NewJobRecordLedger(), NewEventBus(), DeviceProfile{
		Name:                "qdev",
		Edges:               RingEdges(5),
		MaintenanceInterval: 10,
		MaintenanceDuration: 2,
	}, rand.New(rand.NewSource(11)))

	// WHEN the process passes warm-up plus one interval
	d.StartMaintenance()
	k.Run(warmup + 10.5)

	// THEN the device is closed for the maintenance duration, then reopens
	assert.True(t, d.UnderMaintenance())
	k.Run(warmup + 12.5)
	assert.False(t, d.UnderMaintenance())
}

func TestQuantumDevice_StartMaintenance_DisabledSchedulesNothing(t *testing.T) {
	k := NewKernel()
	d := newTestQPU(k, NewAllocator(), NewJobRecordLedger(), NewEventBus(), DeviceProfile{
		Name:  "qdev",
		Edges: RingEdges(5),
	})

	d.StartMaintenance()

	assert.Equal(t, 0, k.Pending())
}
