// Package backtrace records the diagnostic cause of a failed syscall so the
// invocation's caller can report it postmortem.
package backtrace

import (
	"fmt"

	"github.com/filecoin-project/go-fvm/kernel"
)

// Cause identifies the syscall whose failure terminated or was last
// reported during an invocation.
type Cause struct {
	// Module and Function name the syscall, e.g. "actor", "create_actor".
	Module   string
	Function string
	// Message and Code come from the recoverable error the syscall produced.
	Message string
	Code    kernel.ErrorNumber
}

// FromSyscall builds a Cause from a recoverable syscall failure.
func FromSyscall(module, function string, err *kernel.SyscallError) *Cause {
	return &Cause{
		Module:   module,
		Function: function,
		Message:  err.Message,
		Code:     err.Code,
	}
}

func (c *Cause) String() string {
	return fmt.Sprintf("%s::%s -- %s (%d: %s)", c.Module, c.Function, c.Message, uint32(c.Code), c.Code)
}
