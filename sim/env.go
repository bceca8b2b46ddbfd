// sim/env.go
package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Config selects how an Environment is assembled. Zero values fall back to
// the defaults noted per field.
type Config struct {
	Seed       int64  // RNG master seed
	Broker     string // BrokerCapacity (default) or BrokerSerial
	Feed       string // FeedGenerator (default) or FeedDispatcher
	FeedFile   string // job file for the dispatcher
	Allocation string // AllocationFast (default) or AllocationSmart

	// Devices lists preset profile names to instantiate; the name "cpu"
	// adds a default-capacity compute device. Default fleet: ibm_guadalupe,
	// ibm_tokyo and one compute device.
	Devices []string

	// CatalogPath optionally loads a YAML device catalog before the fleet
	// is built.
	CatalogPath string

	// Maintenance enables the periodic maintenance process on every
	// quantum device.
	Maintenance bool

	// InterarrivalModel overrides the generator feed's Exp(3) model.
	InterarrivalModel func() float64
}

// Environment wires a complete simulation: kernel, event bus, ledger,
// shared allocator, device fleet, broker, bulk allocator and job feed.
type Environment struct {
	Kernel  *Kernel
	Bus     *EventBus
	Ledger  *JobRecordLedger
	Alloc   *Allocator
	Cloud   *QCloud
	Broker  Broker
	Devices []Device
	Feed    *JobFeed
	RNG     *PartitionedRNG
}

// NewEnvironment assembles an environment from the config. Configuration
// errors (unknown broker, feed or allocation mode, bad device name, bad
// feed or catalog file) are returned before any simulation state exists.
func NewEnvironment(cfg Config) (*Environment, error) {
	e := &Environment{
		Kernel: NewKernel(),
		Bus:    NewEventBus(),
		Ledger: NewJobRecordLedger(),
		Alloc:  NewAllocator(),
		RNG:    NewPartitionedRNG(NewSimulationKey(cfg.Seed)),
	}

	if cfg.CatalogPath != "" {
		if _, err := LoadCatalog(cfg.CatalogPath); err != nil {
			return nil, err
		}
	}

	names := cfg.Devices
	if len(names) == 0 {
		names = []string{"ibm_guadalupe", "ibm_tokyo", "cpu"}
	}
	cpuCount := 0
	for _, name := range names {
		if name == "cpu" {
			cpuCount++
			dev := NewComputeDevice(e.Kernel, e.Ledger, e.Bus,
				fmt.Sprintf("cpu-%d", cpuCount),
				DefaultCPUCapacity, DefaultMemBWCapacity,
				e.RNG.ForSubsystem(SubsystemCompute))
			e.Devices = append(e.Devices, dev)
			continue
		}
		profile, ok := LookupProfile(name)
		if !ok {
			return nil, fmt.Errorf("unknown device preset %q", name)
		}
		dev := NewQuantumDevice(e.Kernel, e.Alloc, e.Ledger, e.Bus, profile,
			e.RNG.ForSubsystem(SubsystemMaintenance))
		e.Devices = append(e.Devices, dev)
	}

	broker := cfg.Broker
	if broker == "" {
		broker = BrokerCapacity
	}
	switch broker {
	case BrokerCapacity:
		e.Broker = NewCapacityBroker(e.Kernel, e.Devices, e.Ledger)
	case BrokerSerial:
		e.Broker = NewSerialBroker(e.Kernel, e.Devices, e.RNG.ForSubsystem(SubsystemSerial))
	default:
		return nil, fmt.Errorf("invalid broker %q: choose %q or %q", broker, BrokerCapacity, BrokerSerial)
	}

	allocation := cfg.Allocation
	if allocation == "" {
		allocation = AllocationFast
	}
	cloud, err := NewQCloud(e.Kernel, e.Alloc, e.Ledger, allocation)
	if err != nil {
		return nil, err
	}
	e.Cloud = cloud

	feedMethod := cfg.Feed
	if feedMethod == "" {
		feedMethod = FeedGenerator
	}
	feed, err := NewJobFeed(e.Kernel, e.Ledger, e.Broker, feedMethod,
		cfg.InterarrivalModel, cfg.FeedFile, e.RNG.ForSubsystem(SubsystemFeed))
	if err != nil {
		return nil, err
	}
	e.Feed = feed

	if cfg.Maintenance {
		for _, dev := range e.Devices {
			if q, ok := dev.(*QuantumDevice); ok {
				q.StartMaintenance()
			}
		}
	}
	return e, nil
}

// Run starts the job feed and drives the kernel until the horizon (or until
// the event queue drains, when until <= 0).
func (e *Environment) Run(until float64) {
	logrus.Infof("starting simulation: %d devices, seed=%d", len(e.Devices), e.RNG.Key())
	e.Feed.Start()
	e.Kernel.Run(until)
	logrus.Infof("[t=%.2f] simulation ended", e.Kernel.Now())
}
