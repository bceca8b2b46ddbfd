// sim/metrics.go
// Derives run-wide summary statistics from the job record ledger.

package sim

import "fmt"

// Summary aggregates per-phase and terminal metrics over every job in a
// ledger for final reporting.
type Summary struct {
	Jobs          int // jobs with at least one ledger entry
	CompletedJobs int // jobs with a makespan entry

	AvgQPUWait    float64
	AvgQPUService float64
	AvgCPUWait    float64
	AvgCPUService float64
	AvgMakespan   float64
	AvgFidelity   float64
}

// Summarize walks the ledger and averages the derived phase metrics. Phase
// metrics are lists when a job iterates; every iteration contributes one
// sample.
func Summarize(l *JobRecordLedger) Summary {
	var s Summary
	var qpuWait, qpuSvc, cpuWait, cpuSvc, makespan, fidelity accumulator
	for _, id := range l.JobIDs() {
		s.Jobs++
		row := l.Record(id)
		for event, value := range row {
			switch {
			case event == EventMakespan:
				makespan.addAll(value)
			case event == EventFidelity:
				fidelity.addAll(value)
			case matchPhaseMetric(event, "qpu_wait_"):
				qpuWait.addAll(value)
			case matchPhaseMetric(event, "qpu_svc_"):
				qpuSvc.addAll(value)
			case matchPhaseMetric(event, "cpu_wait_"):
				cpuWait.addAll(value)
			case matchPhaseMetric(event, "cpu_svc_"):
				cpuSvc.addAll(value)
			}
		}
		if _, ok := row[EventMakespan]; ok {
			s.CompletedJobs++
		}
	}
	s.AvgQPUWait = qpuWait.mean()
	s.AvgQPUService = qpuSvc.mean()
	s.AvgCPUWait = cpuWait.mean()
	s.AvgCPUService = cpuSvc.mean()
	s.AvgMakespan = makespan.mean()
	s.AvgFidelity = fidelity.mean()
	return s
}

// Print displays the summary at the end of a run.
func (s Summary) Print() {
	fmt.Println("=== Simulation Summary ===")
	fmt.Printf("Jobs observed        : %d\n", s.Jobs)
	fmt.Printf("Jobs completed       : %d\n", s.CompletedJobs)
	if s.CompletedJobs > 0 {
		fmt.Printf("Average QPU wait     : %.4f\n", s.AvgQPUWait)
		fmt.Printf("Average QPU service  : %.4f\n", s.AvgQPUService)
		fmt.Printf("Average CPU wait     : %.4f\n", s.AvgCPUWait)
		fmt.Printf("Average CPU service  : %.4f\n", s.AvgCPUService)
		fmt.Printf("Average makespan     : %.4f\n", s.AvgMakespan)
	}
	if s.AvgFidelity > 0 {
		fmt.Printf("Average fidelity     : %.4f\n", s.AvgFidelity)
	}
}

// accumulator keeps a running sum/count over scalar-or-list ledger values.
type accumulator struct {
	sum   float64
	count int
}

func (a *accumulator) addAll(value any) {
	switch v := value.(type) {
	case float64:
		a.sum += v
		a.count++
	case int:
		a.sum += float64(v)
		a.count++
	case []any:
		for _, item := range v {
			a.addAll(item)
		}
	}
}

func (a *accumulator) mean() float64 {
	if a.count == 0 {
		return 0
	}
	return a.sum / float64(a.count)
}

// matchPhaseMetric reports whether event is prefix followed by a digit-only
// iteration index.
func matchPhaseMetric(event, prefix string) bool {
	if len(event) <= len(prefix) || event[:len(prefix)] != prefix {
		return false
	}
	for _, r := range event[len(prefix):] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
