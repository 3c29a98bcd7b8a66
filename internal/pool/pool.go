// Package pool manages the single-module wasmtime execution pool: a
// bounded-concurrency, generation-tagged free-list of Store instances that
// are reused across guest invocations.
//
// # Design rationale
//
// Creating a wasmtime Store and instantiating a module is cheap compared to
// a process fork but not free, so warm Stores are kept on a LIFO free list
// and handed out to callers via Lease. Unlike a VM pool that serves many
// distinct functions, booster ever runs one module at a time — the pool
// exists to bound concurrency and amortise Store setup, not to multiplex
// across tenants.
//
// # Pool topology
//
// A single Pool instance owns the current Module (behind a RWMutex so the
// reload pipeline can swap it without stopping in-flight leases), a
// monotonically increasing generation counter, and a LIFO free list of
// pooledStore values tagged with the generation they were built against.
//
// # Concurrency model
//
// A buffered channel used as a counting semaphore bounds how many Leases
// can be outstanding at once (BOOSTER_POOL_MAX). Acquiring a Lease blocks
// until a slot is free. The free list itself is guarded by a plain mutex;
// contention there is expected to be negligible relative to module
// execution time.
//
// # Invariants
//
//   - len(outstanding leases) <= maxConcurrency at all times.
//   - A pooledStore popped from the free list is only reused if its
//     generation matches the pool's current generation; otherwise it is
//     discarded and a fresh Store is built against the current Module.
//   - Release always returns the semaphore slot, even when the Store itself
//     is discarded instead of recycled.
//   - instantiations on a pooledStore never exceeds MaxStoreInstantiations;
//     Run replaces the Store and resets the counter once the limit is hit.
//
// # Failure behaviour
//
// If Run's linker.Instantiate call fails with wasmtime's "too many
// instances" trap, the Store is discarded and instantiation is retried once
// against a freshly built Store. Any other instantiation or execution error
// is returned to the caller without a retry.
package pool

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bytecodealliance/wasmtime-go/v14"

	"github.com/oriys/booster/internal/logging"
	"github.com/oriys/booster/internal/metrics"
	"github.com/oriys/booster/internal/vm"
)

// MaxStoreInstantiations caps how many times a single Store is reused
// before the pool forces a fresh one, bounding wasmtime's internal
// per-store resource bookkeeping from growing unbounded across a long-lived
// daemon.
const MaxStoreInstantiations = 1000

// Result is the output of a single guest invocation.
type Result struct {
	Stdout string
	Stderr string
}

type pooledStore struct {
	generation     uint64
	instantiations uint64
	store          *wasmtime.Store
}

// Pool serves leases of a single loaded wasm Module against a bounded
// concurrency budget.
type Pool struct {
	runtime *vm.Runtime

	moduleMu sync.RWMutex
	module   *wasmtime.Module

	generationMu sync.Mutex
	generation   uint64

	freeMu sync.Mutex
	free   []pooledStore

	sem chan struct{}

	maxOutputBytes int
}

// New builds a Pool bound to runtime and serving module, admitting at most
// maxConcurrency simultaneous leases.
func New(runtime *vm.Runtime, module *wasmtime.Module, maxConcurrency, maxOutputBytes int) *Pool {
	return &Pool{
		runtime:        runtime,
		module:         module,
		sem:            make(chan struct{}, maxConcurrency),
		maxOutputBytes: maxOutputBytes,
	}
}

// UpdateModule swaps in a newly compiled module, bumps the generation, and
// drops every Store currently on the free list — they were built against
// linker imports and module instance state tied to the superseded module.
// Leases already in flight keep running against the module they were
// issued with; they simply don't return their Store to the free list on
// release once they observe the generation has moved on.
func (p *Pool) UpdateModule(module *wasmtime.Module) {
	p.moduleMu.Lock()
	p.module = module
	p.moduleMu.Unlock()

	p.generationMu.Lock()
	p.generation++
	p.generationMu.Unlock()

	p.freeMu.Lock()
	p.free = nil
	p.freeMu.Unlock()
}

func (p *Pool) currentGeneration() uint64 {
	p.generationMu.Lock()
	defer p.generationMu.Unlock()
	return p.generation
}

func (p *Pool) currentModule() *wasmtime.Module {
	p.moduleMu.RLock()
	defer p.moduleMu.RUnlock()
	return p.module
}

// lease acquires a concurrency slot and returns a pooledStore: either reused
// from the free list (if its generation still matches) or freshly built.
func (p *Pool) lease(ctx context.Context) (pooledStore, error) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return pooledStore{}, ctx.Err()
	}

	gen := p.currentGeneration()

	p.freeMu.Lock()
	var candidate *pooledStore
	if n := len(p.free); n > 0 {
		last := p.free[n-1]
		p.free = p.free[:n-1]
		candidate = &last
	}
	p.freeMu.Unlock()

	if m := metrics.Active(); m != nil {
		m.PoolInFlight.Inc()
	}

	if candidate != nil && candidate.generation == gen {
		return *candidate, nil
	}

	store := wasmtime.NewStore(p.runtime.Engine)
	store.SetConsumeFuel(true)
	return pooledStore{generation: gen, store: store}, nil
}

// release returns the concurrency slot and, if ps's generation still
// matches the pool's current generation, pushes the Store back onto the
// free list for reuse.
func (p *Pool) release(ps pooledStore) {
	defer func() { <-p.sem }()

	if m := metrics.Active(); m != nil {
		m.PoolInFlight.Dec()
	}

	if ps.generation != p.currentGeneration() {
		return
	}
	p.freeMu.Lock()
	p.free = append(p.free, ps)
	p.freeMu.Unlock()
}

// Run leases a Store, instantiates the current module with a fresh WASI
// context (stdout/stderr captured, NAME set to name), calls its _start
// export, and returns the captured output. The leased Store is always
// returned to the pool (or discarded, if stale) before Run returns.
func (p *Pool) Run(ctx context.Context, name string) (Result, error) {
	ps, err := p.lease(ctx)
	if err != nil {
		return Result{}, err
	}
	defer func() { p.release(ps) }()

	if ps.instantiations >= MaxStoreInstantiations {
		ps.store = wasmtime.NewStore(p.runtime.Engine)
		ps.store.SetConsumeFuel(true)
		ps.instantiations = 0
		if m := metrics.Active(); m != nil {
			m.PoolRecycles.Inc()
		}
	}

	stdout, stderr, cleanup, err := newOutputCapture(p.maxOutputBytes)
	if err != nil {
		return Result{}, fmt.Errorf("create output capture: %w", err)
	}
	defer cleanup()

	wasiCfg := wasmtime.NewWasiConfig()
	wasiCfg.SetStdoutFile(stdout.Name())
	wasiCfg.SetStderrFile(stderr.Name())
	wasiCfg.SetEnv([]string{"NAME"}, []string{name})
	ps.store.SetWasi(wasiCfg)

	if err := ps.store.SetFuel(^uint64(0)); err != nil {
		return Result{}, fmt.Errorf("set fuel: %w", err)
	}

	module := p.currentModule()

	instance, err := p.runtime.Linker.Instantiate(ps.store, module)
	if err != nil {
		if isTooManyInstances(err) {
			ps.store = wasmtime.NewStore(p.runtime.Engine)
			ps.store.SetConsumeFuel(true)
			ps.store.SetWasi(wasiCfg)
			ps.instantiations = 0
			instance, err = p.runtime.Linker.Instantiate(ps.store, module)
		}
		if err != nil {
			return Result{}, fmt.Errorf("instantiate module: %w", err)
		}
	}
	ps.instantiations++

	start := instance.GetFunc(ps.store, "_start")
	if start == nil {
		return Result{}, fmt.Errorf("module has no _start export")
	}
	if _, err := start.Call(ps.store); err != nil {
		logging.Op().Debug("guest trapped", "module", name, "error", err)
		return Result{}, fmt.Errorf("run _start: %w", err)
	}

	out, errOut, err := readOutputCapture(stdout, stderr, p.maxOutputBytes)
	if err != nil {
		return Result{}, err
	}
	return Result{Stdout: out, Stderr: errOut}, nil
}

func isTooManyInstances(err error) bool {
	return strings.Contains(err.Error(), "too many") || strings.Contains(err.Error(), "instance count too high")
}

// awaitShutdown waits until every outstanding lease has drained, up to a
// deadline, by taking every semaphore slot.
func (p *Pool) awaitShutdown(ctx context.Context, maxConcurrency int) error {
	for i := 0; i < maxConcurrency; i++ {
		select {
		case p.sem <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Drain blocks until all in-flight leases complete or the context expires.
func (p *Pool) Drain(ctx context.Context, maxConcurrency int) error {
	return p.awaitShutdown(ctx, maxConcurrency)
}
