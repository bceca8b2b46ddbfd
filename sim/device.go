// sim/device.go
package sim

// Device type tags used by brokers to filter candidates per phase.
const (
	DeviceTypeQPU = "QPU"
	DeviceTypeCPU = "CPU"
)

// Device is one capacity-owning processing resource in the cloud. Both
// variants expose a suspending ProcessJob: it registers continuations with
// the kernel and returns immediately; done runs once the job's work on the
// device is complete and all holds are released.
type Device interface {
	DeviceName() string
	DeviceType() string

	// UnderMaintenance reports the admission-time maintenance flag. In-flight
	// work is never preempted; the flag only blocks new admission.
	UnderMaintenance() bool

	// Gate is the device's priority mutex, serializing allocation
	// transactions against maintenance windows.
	Gate() *PriorityMutex

	ProcessJob(job *QJob, done func())
}
