//go:build unix

package process

import (
	"syscall"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

type unixSignaller struct{}

func newOSSignaller() Signaller {
	return unixSignaller{}
}

func (unixSignaller) Terminate(pid int) error { return send(pid, unix.SIGTERM) }
func (unixSignaller) Kill(pid int) error      { return send(pid, unix.SIGKILL) }
func (unixSignaller) Stop(pid int) error      { return send(pid, unix.SIGSTOP) }
func (unixSignaller) Continue(pid int) error  { return send(pid, unix.SIGCONT) }

func send(pid int, sig unix.Signal) error {
	if pid <= 0 {
		return errors.Newf("invalid pid %d", pid)
	}
	if err := unix.Kill(pid, sig); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return ErrProcessGone
		}
		return errors.Wrapf(err, "failed to send %s to pid %d", unix.SignalName(sig), pid)
	}
	return nil
}

// Reap collects the exit status of a child without blocking. Processes that are
// not our children (launched detached through a shell) cannot be waited for, so
// their liveness is checked with signal 0 instead.
func (unixSignaller) Reap(pid int) (bool, error) {
	if pid <= 0 {
		return true, nil
	}

	var status unix.WaitStatus
	wpid, err := unix.Wait4(pid, &status, unix.WNOHANG, nil)
	switch {
	case err == nil:
		return wpid == pid, nil
	case errors.Is(err, unix.EINTR):
		return false, nil
	case errors.Is(err, unix.ECHILD):
		return !alive(pid), nil
	default:
		return false, errors.Wrapf(err, "failed to wait for pid %d", pid)
	}
}

// alive reports whether a process with the given id exists.
func alive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// sysProcAttr places the player in its own process group so terminal
// signals aimed at this program do not reach it directly.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
