// sim/ledger.go
package sim

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Event names recorded in the ledger by devices, brokers and the cloud.
const (
	EventArrival    = "arrival"
	EventDeviceName = "devc_name"
	EventDeviceProc = "devc_proc"
	EventDeviceDone = "devc_finish"
	EventCommTime   = "comm_time"
	EventFidelity   = "fidelity"
	EventMakespan   = "makespan"
)

// JobRecordLedger is the append-only per-job event and metric store. Each job
// id maps event names to a timestamp (or value), promoted to a list when the
// same event repeats across iterations. Entries are never deleted during a
// run; consumers read, they do not mutate.
type JobRecordLedger struct {
	records map[int]map[string]any
}

// NewJobRecordLedger creates an empty ledger.
func NewJobRecordLedger() *JobRecordLedger {
	return &JobRecordLedger{records: make(map[int]map[string]any)}
}

// Log appends value under (jobID, event). The first value for an event is
// stored as a scalar; repeats promote the entry to a list in append order.
func (l *JobRecordLedger) Log(jobID int, event string, value any) {
	row, ok := l.records[jobID]
	if !ok {
		row = make(map[string]any)
		l.records[jobID] = row
	}
	prev, ok := row[event]
	if !ok {
		row[event] = value
		return
	}
	if list, isList := prev.([]any); isList {
		row[event] = append(list, value)
		return
	}
	row[event] = []any{prev, value}
}

// Record returns a job's full event map, or nil if the job is unknown.
// The returned map is the ledger's own storage: read-only by contract.
func (l *JobRecordLedger) Record(jobID int) map[string]any {
	return l.records[jobID]
}

// All returns every job record, keyed by job id. Read-only by contract.
func (l *JobRecordLedger) All() map[int]map[string]any {
	return l.records
}

// JobIDs returns the recorded job ids in ascending order.
func (l *JobRecordLedger) JobIDs() []int {
	ids := make([]int, 0, len(l.records))
	for id := range l.records {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Latest returns the most recent value logged for (jobID, event).
func (l *JobRecordLedger) Latest(jobID int, event string) (any, bool) {
	row, ok := l.records[jobID]
	if !ok {
		return nil, false
	}
	v, ok := row[event]
	if !ok {
		return nil, false
	}
	if list, isList := v.([]any); isList {
		return list[len(list)-1], true
	}
	return v, true
}

// LatestTime returns the most recent value for (jobID, event) as a float64.
// Non-numeric entries report absent.
func (l *JobRecordLedger) LatestTime(jobID int, event string) (float64, bool) {
	v, ok := l.Latest(jobID, event)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Snapshot renders the whole ledger with sorted job ids and event names.
// Two runs with the same seed and job feed produce byte-identical snapshots.
func (l *JobRecordLedger) Snapshot() string {
	var sb strings.Builder
	for _, id := range l.JobIDs() {
		row := l.records[id]
		events := make([]string, 0, len(row))
		for ev := range row {
			events = append(events, ev)
		}
		sort.Strings(events)
		fmt.Fprintf(&sb, "job %d\n", id)
		for _, ev := range events {
			fmt.Fprintf(&sb, "  %s: %v\n", ev, row[ev])
		}
	}
	return sb.String()
}

// round rounds v to the given number of decimal places. Ledger timestamps
// are recorded at 4 places, arrivals and bus payloads at 2, matching the
// reporting precision downstream consumers expect.
func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
