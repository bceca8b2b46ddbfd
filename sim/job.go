// sim/job.go
package sim

import "fmt"

// Job phases as recorded on the job while a broker sequences it.
const (
	PhaseQPU = "qpu"
	PhaseCPU = "cpu"
)

// QJob is one unit of work flowing through the cloud: a quantum circuit plus
// the classical post-processing it iterates with. Created by the job feed at
// arrival, mutated by the broker (phase, iteration) and terminal once the
// final iteration's classical phase completes.
type QJob struct {
	ID          int
	NumQubits   int
	Depth       int
	NumShots    int
	Priority    int
	ArrivalTime float64

	// Iterations is the number of QPU->CPU rounds required; Iteration is the
	// count completed so far.
	Iterations int
	Iteration  int
	Phase      string

	// Optional classical-phase demand. Zero means the defaults apply: the
	// broker assumes 8 CPU units for eligibility and devices use 20 units of
	// memory bandwidth.
	CPUUnits int64
	MemBW    int64
}

// CPUNeeds returns the (cpu units, memory bandwidth) pair used for
// compute-device eligibility checks.
func (j *QJob) CPUNeeds() (int64, int64) {
	cpu := j.CPUUnits
	if cpu == 0 {
		cpu = 8
	}
	bw := j.MemBW
	if bw == 0 {
		bw = 20
	}
	return cpu, bw
}

func (j *QJob) String() string {
	return fmt.Sprintf("QJob(id=%d, qubits=%d, depth=%d, shots=%d, priority=%d, arrival=%.2f, iterations=%d)",
		j.ID, j.NumQubits, j.Depth, j.NumShots, j.Priority, j.ArrivalTime, j.Iterations)
}
