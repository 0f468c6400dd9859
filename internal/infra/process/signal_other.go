//go:build !unix

package process

import "syscall"

type unsupportedSignaller struct{}

func newOSSignaller() Signaller {
	return unsupportedSignaller{}
}

func (unsupportedSignaller) Terminate(int) error    { return ErrUnsupported }
func (unsupportedSignaller) Kill(int) error         { return ErrUnsupported }
func (unsupportedSignaller) Stop(int) error         { return ErrUnsupported }
func (unsupportedSignaller) Continue(int) error     { return ErrUnsupported }
func (unsupportedSignaller) Reap(int) (bool, error) { return true, ErrUnsupported }

func sysProcAttr() *syscall.SysProcAttr {
	return nil
}
