package pool

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytecodealliance/wasmtime-go/v14"

	"github.com/oriys/booster/internal/config"
	"github.com/oriys/booster/internal/vm"
)

// helloWat is a minimal WASI-p1 guest: it imports wasi_snapshot_preview1's
// fd_write, writes "hi\n" to stdout, and returns cleanly. It stands in for
// the compile_wasi_module fixture original_source/booster/src/pool.rs uses
// in its own #[tokio::test] suite.
const helloWat = `
(module
  (import "wasi_snapshot_preview1" "fd_write"
    (func $fd_write (param i32 i32 i32 i32) (result i32)))
  (memory (export "memory") 1)
  (data (i32.const 8) "hi\n")
  (func (export "_start")
    (i32.store (i32.const 0) (i32.const 8))
    (i32.store (i32.const 4) (i32.const 3))
    (drop (call $fd_write (i32.const 1) (i32.const 0) (i32.const 1) (i32.const 100)))))
`

func mustRuntime(t *testing.T) *vm.Runtime {
	t.Helper()
	rt, err := vm.NewRuntime(config.WasmtimeConfig{TuneDefaults: false})
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	return rt
}

func mustCompile(t *testing.T, rt *vm.Runtime, wat string) *wasmtime.Module {
	t.Helper()
	wasm, err := wasmtime.Wat2Wasm(wat)
	if err != nil {
		t.Fatalf("wat2wasm: %v", err)
	}
	mod, err := wasmtime.NewModule(rt.Engine, wasm)
	if err != nil {
		t.Fatalf("compile module: %v", err)
	}
	return mod
}

// TestPoolRunReturnsOutput mirrors pool.rs's test_pool_run_returns_output.
func TestPoolRunReturnsOutput(t *testing.T) {
	rt := mustRuntime(t)
	mod := mustCompile(t, rt, helloWat)

	p := New(rt, mod, 2, 1<<20)

	result, err := p.Run(context.Background(), "world")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Stdout != "hi\n" {
		t.Fatalf("stdout = %q, want %q", result.Stdout, "hi\n")
	}
}

// TestUpdateModuleTakesEffect mirrors pool.rs's test_update_module_takes_effect:
// leases taken after UpdateModule must run the new module, and the
// generation bump must invalidate the free list.
func TestUpdateModuleTakesEffect(t *testing.T) {
	rt := mustRuntime(t)
	mod1 := mustCompile(t, rt, helloWat)

	p := New(rt, mod1, 1, 1<<20)
	if _, err := p.Run(context.Background(), "a"); err != nil {
		t.Fatalf("first run: %v", err)
	}

	genBefore := p.currentGeneration()

	mod2 := mustCompile(t, rt, strings.Replace(helloWat, `"hi\n"`, `"yo\n"`, 1))
	p.UpdateModule(mod2)

	if p.currentGeneration() != genBefore+1 {
		t.Fatalf("generation did not advance: before=%d after=%d", genBefore, p.currentGeneration())
	}

	p.freeMu.Lock()
	freeLen := len(p.free)
	p.freeMu.Unlock()
	if freeLen != 0 {
		t.Fatalf("free list should be cleared after UpdateModule, got %d entries", freeLen)
	}

	result, err := p.Run(context.Background(), "b")
	if err != nil {
		t.Fatalf("run against new module: %v", err)
	}
	if result.Stdout != "yo\n" {
		t.Fatalf("stdout after UpdateModule = %q, want %q", result.Stdout, "yo\n")
	}
}

// TestConcurrencyIsLimited mirrors pool.rs's test_concurrency_is_limited:
// with maxConcurrency=2 and 10 concurrent callers, peak in-flight leases
// must never exceed 2.
func TestConcurrencyIsLimited(t *testing.T) {
	rt := mustRuntime(t)
	mod := mustCompile(t, rt, helloWat)

	const maxConcurrency = 2
	p := New(rt, mod, maxConcurrency, 1<<20)

	var inFlight int64
	var peak int64
	var peakMu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			ps, err := p.lease(context.Background())
			if err != nil {
				t.Errorf("lease: %v", err)
				return
			}
			n := atomic.AddInt64(&inFlight, 1)

			peakMu.Lock()
			if n > peak {
				peak = n
			}
			peakMu.Unlock()

			time.Sleep(5 * time.Millisecond)

			atomic.AddInt64(&inFlight, -1)
			p.release(ps)
		}()
	}
	wg.Wait()

	if peak > maxConcurrency {
		t.Fatalf("peak concurrency %d exceeded limit %d", peak, maxConcurrency)
	}
}
