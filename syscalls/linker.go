package syscalls

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/filecoin-project/go-fvm/kernel"
)

// Linker registers syscalls under (module, name) pairs and instantiates the
// resulting host modules into a wazero runtime. One Linker serves one
// runtime; syscalls are bound before the first guest is instantiated.
type Linker[K kernel.Kernel] struct {
	rt       wazero.Runtime
	builders map[string]wazero.HostModuleBuilder
	order    []string
	log      logrus.Ext1FieldLogger
}

// NewLinker creates a Linker for the given runtime.
func NewLinker[K kernel.Kernel](rt wazero.Runtime) *Linker[K] {
	return &Linker[K]{
		rt:       rt,
		builders: make(map[string]wazero.HostModuleBuilder),
		log:      logrus.StandardLogger(),
	}
}

// SetLogger replaces the logger used for per-syscall tracing.
func (l *Linker[K]) SetLogger(log logrus.Ext1FieldLogger) {
	l.log = log
}

func (l *Linker[K]) builder(module string) wazero.HostModuleBuilder {
	b, ok := l.builders[module]
	if !ok {
		b = l.rt.NewHostModuleBuilder(module)
		l.builders[module] = b
		l.order = append(l.order, module)
	}
	return b
}

// Instantiate compiles and instantiates every bound host module. Guests
// compiled afterwards can import the syscalls.
func (l *Linker[K]) Instantiate(ctx context.Context) error {
	for _, module := range l.order {
		if _, err := l.builders[module].Instantiate(ctx); err != nil {
			return fmt.Errorf("instantiating syscall module %q: %w", module, err)
		}
	}
	return nil
}

// mustMemoryView captures the calling guest's linear memory for the span of
// one host call.
func mustMemoryView(mod api.Module, module, name string) *Memory {
	mem := mod.Memory()
	if mem == nil {
		panic(&Trap{Module: module, Name: name, Abort: Abort{
			Fatal: kernel.Fatalf("guest module exports no memory"),
		}})
	}
	buf, ok := mem.Read(0, mem.Size())
	if !ok {
		panic(&Trap{Module: module, Name: name, Abort: Abort{
			Fatal: kernel.Fatalf("reading guest memory of size %d", mem.Size()),
		}})
	}
	return NewMemory(buf)
}

// mustGasGlobal resolves the guest's exported gas counter.
func mustGasGlobal(mod api.Module, module, name string) api.MutableGlobal {
	g, ok := mod.ExportedGlobal(GasGlobalName).(api.MutableGlobal)
	if !ok {
		panic(&Trap{Module: module, Name: name, Abort: Abort{
			Fatal: kernel.Fatalf("guest module exports no mutable %q global", GasGlobalName),
		}})
	}
	return g
}
