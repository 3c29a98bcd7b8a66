// Package vm wraps the wasmtime engine/linker construction that every guest
// invocation in booster shares: a single Engine and Linker live for the
// process lifetime, while Module and Store come and go as modules reload
// and stores are leased from the pool.
package vm

import (
	"fmt"

	"github.com/bytecodealliance/wasmtime-go/v14"

	"github.com/oriys/booster/internal/config"
)

// Runtime bundles the process-lifetime wasmtime objects: the Engine (compiled
// code cache, epoch/fuel configuration) and the Linker (WASI + host imports).
// Both are safe for concurrent use across leased Stores.
type Runtime struct {
	Engine *wasmtime.Engine
	Linker *wasmtime.Linker
}

// NewRuntime builds the Engine with fuel consumption enabled (the execution
// pool sets fuel to the maximum value before every run; no fuel-based yield
// interval is configured) and a Linker
// with WASI preview1 imports defined. Host-call namespaces (bosbase_postgres,
// bosbase_redis) are added separately by the hostabi package once the
// backend adapters are constructed.
func NewRuntime(cfg config.WasmtimeConfig) (*Runtime, error) {
	engineCfg := wasmtime.NewConfig()
	engineCfg.SetConsumeFuel(true)

	if cfg.TuneDefaults {
		if cfg.MemoryReservation != nil {
			engineCfg.SetMemoryReservation(*cfg.MemoryReservation)
		}
		if cfg.MemoryGuardSize != nil {
			engineCfg.SetMemoryGuardSize(*cfg.MemoryGuardSize)
		}
		if cfg.MemoryReservationGrowth != nil {
			engineCfg.SetMemoryReservationForGrowth(*cfg.MemoryReservationGrowth)
		}
	}

	engine := wasmtime.NewEngineWithConfig(engineCfg)

	linker := wasmtime.NewLinker(engine)
	if err := linker.DefineWasi(); err != nil {
		return nil, fmt.Errorf("define wasi imports: %w", err)
	}

	return &Runtime{Engine: engine, Linker: linker}, nil
}

// CompileFile compiles a single .wasm file into a Module using this
// Runtime's Engine. Callers (the reload pipeline) are responsible for
// deciding which candidate file to compile.
func (r *Runtime) CompileFile(path string) (*wasmtime.Module, error) {
	mod, err := wasmtime.NewModuleFromFile(r.Engine, path)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", path, err)
	}
	return mod, nil
}
