package process

import "github.com/cockroachdb/errors"

var (
	// ErrProcessGone is returned when the target process no longer exists.
	ErrProcessGone = errors.New("process does not exist")
	// ErrUnsupported is returned on platforms without job control signals.
	ErrUnsupported = errors.New("process control is not supported on this platform")
)

// Signaller sends control signals to processes by id and reaps them.
type Signaller interface {
	// Terminate asks the process to exit gracefully.
	Terminate(pid int) error
	// Kill forces the process to exit.
	Kill(pid int) error
	// Stop suspends the process.
	Stop(pid int) error
	// Continue resumes a suspended process.
	Continue(pid int) error
	// Reap checks without blocking whether the process has exited,
	// collecting its exit status when it is a child of this process.
	Reap(pid int) (exited bool, err error)
}

// NewSignaller returns the Signaller for the host platform.
func NewSignaller() Signaller {
	return newOSSignaller()
}
