// Package sanitizerhost hosts out-of-core sanitizer plugins as WASI
// modules, producing the captoken.SanitizerReceipt a PolicyDecisionEngine
// evaluation consults to clear taint flags on an otherwise-tainted input.
// Sanitizer execution itself is genuinely outside this core's scope — this
// package is a thin, deny-by-default adapter, never imported by
// pkg/decision's hot path. Its tests cover the stdout flag parsing only.
package sanitizerhost

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/flywheel-sh/fcpcore/pkg/captoken"
	"github.com/flywheel-sh/fcpcore/pkg/labels"
	"github.com/flywheel-sh/fcpcore/pkg/objectid"
)

// Config bounds a hosted sanitizer module's resource usage.
type Config struct {
	MemoryLimitBytes uint64
	CPUTimeLimit     time.Duration
}

// Host runs sanitizer WASM modules under wazero with no filesystem,
// network, or ambient authority: a deny-by-default sandbox narrowed to
// the sanitizer use case.
type Host struct {
	runtime wazero.Runtime
	config  wazero.ModuleConfig
	limits  Config
}

// NewHost creates a wazero runtime with the given resource limits.
func NewHost(ctx context.Context, cfg Config) (*Host, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitBytes > 0 {
		pages := uint32(cfg.MemoryLimitBytes / (64 * 1024))
		if pages == 0 {
			pages = 1
		}
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(pages)
	}

	r := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	wasi_snapshot_preview1.MustInstantiate(ctx, r)

	modCfg := wazero.NewModuleConfig().
		WithName("fcp-sanitizer").
		WithStartFunctions("_start")
	// Deny-by-default: no WithFSConfig, no WithSysNanotime, no WithRandSource.

	return &Host{runtime: r, config: modCfg, limits: cfg}, nil
}

// Run executes a sanitizer WASM module against input, parses its stdout as
// a cleared-flags manifest, and mints the corresponding SanitizerReceipt.
// The module receives input on stdin and writes one cleared taint flag per
// line of stdout; anything on stderr fails the run.
func (h *Host) Run(ctx context.Context, wasmBytes []byte, receiptID string, input []byte, coveredInputs []objectid.ObjectId) (captoken.SanitizerReceipt, error) {
	if h.limits.CPUTimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.limits.CPUTimeLimit)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	modCfg := h.config.
		WithStdin(bytes.NewReader(input)).
		WithStdout(&stdout).
		WithStderr(&stderr)

	compiled, err := h.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return captoken.SanitizerReceipt{}, fmt.Errorf("sanitizerhost: compilation failed: %w", err)
	}
	defer func() { _ = compiled.Close(ctx) }()

	mod, err := h.runtime.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		if ctx.Err() != nil {
			return captoken.SanitizerReceipt{}, fmt.Errorf("sanitizerhost: execution timed out after %v", h.limits.CPUTimeLimit)
		}
		return captoken.SanitizerReceipt{}, fmt.Errorf("sanitizerhost: instantiation failed: %w", err)
	}
	defer func() { _ = mod.Close(ctx) }()

	if stderr.Len() > 0 {
		return captoken.SanitizerReceipt{}, fmt.Errorf("sanitizerhost: module reported error: %s", stderr.String())
	}

	flags := parseClearedFlags(stdout.Bytes())
	return captoken.SanitizerReceipt{
		ReceiptID:     receiptID,
		ClearedFlags:  flags,
		CoveredInputs: coveredInputs,
		IssuedAt:      time.Now().Unix(),
	}, nil
}

// Close shuts down the wazero runtime.
func (h *Host) Close(ctx context.Context) error {
	return h.runtime.Close(ctx)
}

func parseClearedFlags(out []byte) []labels.TaintFlag {
	var flags []labels.TaintFlag
	for _, line := range bytes.Split(out, []byte("\n")) {
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 {
			continue
		}
		flags = append(flags, labels.TaintFlag(trimmed))
	}
	return flags
}
