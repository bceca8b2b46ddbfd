// sim/feed.go
package sim

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Feed methods accepted by configuration.
const (
	FeedGenerator  = "generator"
	FeedDispatcher = "dispatcher"
)

// minDispatchDelay is the floor on the wait before injecting a dispatched
// job, so two file rows never collapse into the same submission instant.
const minDispatchDelay = 0.01

// JobSpec is one job descriptor as read from a feed file.
type JobSpec struct {
	JobID       int     `json:"job_id"`
	NumQubits   int     `json:"num_qubits"`
	Depth       int     `json:"depth"`
	NumShots    int     `json:"num_shots"`
	Priority    int     `json:"priority"`
	ArrivalTime float64 `json:"arrival_time"`
	Iterations  int     `json:"iterations"`
}

// jobsFile is the JSON feed file shape.
type jobsFile struct {
	Jobs []JobSpec `json:"jobs"`
}

// JobFeed produces job arrivals: either generated from a random model or
// dispatched from a CSV/JSON file. Each arriving job is logged to the ledger
// and handed to the broker as an independent task.
type JobFeed struct {
	kernel *Kernel
	ledger *JobRecordLedger
	broker Broker
	method string

	// interarrival is the generator's inter-arrival model.
	interarrival func() float64
	rng          *rand.Rand

	jobs   []JobSpec
	nextID int
}

// NewJobFeed validates the configuration and, for the dispatcher method,
// loads the job file. Invalid method, missing file path or unsupported
// extension are fatal configuration errors reported before the simulation
// starts.
//
// model may be nil: the default generator model is Exp(3) inter-arrivals.
func NewJobFeed(kernel *Kernel, ledger *JobRecordLedger, broker Broker, method string, model func() float64, filePath string, rng *rand.Rand) (*JobFeed, error) {
	f := &JobFeed{
		kernel: kernel,
		ledger: ledger,
		broker: broker,
		method: method,
		rng:    rng,
		nextID: 1,
	}
	switch method {
	case FeedGenerator:
		f.interarrival = model
		if f.interarrival == nil {
			f.interarrival = func() float64 { return rng.ExpFloat64() / 3 }
		}
	case FeedDispatcher:
		if filePath == "" {
			return nil, fmt.Errorf("job feed: file path must be provided when method is %q", FeedDispatcher)
		}
		var err error
		switch strings.ToLower(filepath.Ext(filePath)) {
		case ".csv":
			f.jobs, err = f.loadCSV(filePath)
		case ".json":
			f.jobs, err = f.loadJSON(filePath)
		default:
			err = fmt.Errorf("unsupported file format %q: use a .csv or .json file", filepath.Ext(filePath))
		}
		if err != nil {
			return nil, fmt.Errorf("job feed: %w", err)
		}
	default:
		return nil, fmt.Errorf("job feed: invalid method %q: choose %q or %q", method, FeedGenerator, FeedDispatcher)
	}
	return f, nil
}

// Start launches the feed as a kernel task.
func (f *JobFeed) Start() {
	switch f.method {
	case FeedDispatcher:
		f.dispatch(0)
	case FeedGenerator:
		f.generate()
	}
}

// dispatch injects file jobs one after another, waiting until each job's
// arrival time (floored at minDispatchDelay from now).
func (f *JobFeed) dispatch(i int) {
	if i >= len(f.jobs) {
		return
	}
	spec := f.jobs[i]
	delay := spec.ArrivalTime - f.kernel.Now()
	if delay < minDispatchDelay {
		delay = minDispatchDelay
	}
	f.kernel.Schedule(delay, func() {
		f.inject(&QJob{
			ID:          spec.JobID,
			NumQubits:   spec.NumQubits,
			Depth:       spec.Depth,
			NumShots:    spec.NumShots,
			Priority:    spec.Priority,
			ArrivalTime: spec.ArrivalTime,
			Iterations:  spec.Iterations,
		})
		f.dispatch(i + 1)
	})
}

// generate produces a random job per inter-arrival draw, forever; the run
// horizon bounds it.
func (f *JobFeed) generate() {
	f.kernel.Schedule(f.interarrival(), func() {
		job := &QJob{
			ID:          f.nextID,
			NumShots:    10000 + f.rng.Intn(5001),
			Depth:       5 + f.rng.Intn(16),
			NumQubits:   5 + f.rng.Intn(16),
			Priority:    1 + f.rng.Intn(2),
			ArrivalTime: f.kernel.Now(),
			Iterations:  1,
		}
		f.nextID++
		f.inject(job)
		f.generate()
	})
}

func (f *JobFeed) inject(job *QJob) {
	logrus.Infof("[t=%.2f] job %d arrived: %v", f.kernel.Now(), job.ID, job)
	f.ledger.Log(job.ID, EventArrival, round(f.kernel.Now(), 2))
	f.broker.Run(job, func() {})
}

// loadCSV reads a header-keyed CSV job file. Blank arrival_time defaults to
// the current simulated time; blank iterations defaults to 1.
func (f *JobFeed) loadCSV(path string) ([]JobSpec, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: empty file", path)
	}
	col := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		col[strings.TrimSpace(name)] = i
	}
	for _, name := range []string{"job_id", "num_qubits", "depth", "num_shots", "priority", "arrival_time", "iterations"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", path, name)
		}
	}

	var jobs []JobSpec
	for rowIdx, row := range rows[1:] {
		get := func(name string) string { return strings.TrimSpace(row[col[name]]) }
		spec := JobSpec{ArrivalTime: f.kernel.Now(), Iterations: 1}
		if spec.JobID, err = strconv.Atoi(get("job_id")); err != nil {
			return nil, fmt.Errorf("%s row %d: job_id: %w", path, rowIdx+2, err)
		}
		if spec.NumQubits, err = strconv.Atoi(get("num_qubits")); err != nil {
			return nil, fmt.Errorf("%s row %d: num_qubits: %w", path, rowIdx+2, err)
		}
		if spec.Depth, err = strconv.Atoi(get("depth")); err != nil {
			return nil, fmt.Errorf("%s row %d: depth: %w", path, rowIdx+2, err)
		}
		if spec.NumShots, err = strconv.Atoi(get("num_shots")); err != nil {
			return nil, fmt.Errorf("%s row %d: num_shots: %w", path, rowIdx+2, err)
		}
		if spec.Priority, err = strconv.Atoi(get("priority")); err != nil {
			return nil, fmt.Errorf("%s row %d: priority: %w", path, rowIdx+2, err)
		}
		if s := get("arrival_time"); s != "" {
			if spec.ArrivalTime, err = strconv.ParseFloat(s, 64); err != nil {
				return nil, fmt.Errorf("%s row %d: arrival_time: %w", path, rowIdx+2, err)
			}
		}
		if s := get("iterations"); s != "" {
			if spec.Iterations, err = strconv.Atoi(s); err != nil {
				return nil, fmt.Errorf("%s row %d: iterations: %w", path, rowIdx+2, err)
			}
		}
		jobs = append(jobs, spec)
	}
	return jobs, nil
}

// loadJSON reads a {"jobs": [...]} job file.
func (f *JobFeed) loadJSON(path string) ([]JobSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var jf jobsFile
	if err := json.Unmarshal(data, &jf); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for i := range jf.Jobs {
		if jf.Jobs[i].Iterations == 0 {
			jf.Jobs[i].Iterations = 1
		}
	}
	return jf.Jobs, nil
}
