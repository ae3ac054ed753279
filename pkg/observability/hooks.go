// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about pipeline execution, worker validation, cache
// operations, and model calls.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// This approach:
//   - Avoids import cycles (hooks are registered by main, not by libraries)
//   - Keeps the core library dependency-free from observability frameworks
//   - Allows different backends (OpenTelemetry, Prometheus, DataDog, etc.)
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetPipelineHooks(&myPipelineHooks{})
//	    observability.SetWorkerHooks(&myWorkerHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Worker().OnValidateStart(ctx, operation)
//	// ... run the worker ...
//	observability.Worker().OnValidateComplete(ctx, operation, stage, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Pipeline Hooks
// =============================================================================

// PipelineHooks receives events from the generation pipeline.
type PipelineHooks interface {
	// Attempt events cover one full generate-validate cycle.
	OnAttemptStart(ctx context.Context, attempt int, temperature float64)
	OnAttemptComplete(ctx context.Context, attempt int, stage string, duration time.Duration, success bool)

	// Repair events cover one spacing-repair cycle.
	OnRepairStart(ctx context.Context, attempt int, violations int)
	OnRepairComplete(ctx context.Context, attempt int, duration time.Duration, resolved bool)
}

// =============================================================================
// Worker Hooks
// =============================================================================

// WorkerHooks receives events from worker-process validation.
type WorkerHooks interface {
	// OnValidateStart records the start of a worker operation.
	OnValidateStart(ctx context.Context, operation string)

	// OnValidateComplete records a finished worker operation. stage is the
	// failing stage, or empty on success; err reports process-level failures
	// such as spawn errors and timeouts.
	OnValidateComplete(ctx context.Context, operation, stage string, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// Model Hooks
// =============================================================================

// ModelHooks receives events from language-model calls.
type ModelHooks interface {
	// OnRequest records an outgoing model request.
	OnRequest(ctx context.Context, provider, model string, temperature float64)

	// OnResponse records a model response.
	OnResponse(ctx context.Context, provider, model string, chars int, duration time.Duration)

	// OnError records a model call failure (network failure, timeout, quota).
	OnError(ctx context.Context, provider, model string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopPipelineHooks is a no-op implementation of PipelineHooks.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnAttemptStart(context.Context, int, float64)                        {}
func (NoopPipelineHooks) OnAttemptComplete(context.Context, int, string, time.Duration, bool) {}
func (NoopPipelineHooks) OnRepairStart(context.Context, int, int)                             {}
func (NoopPipelineHooks) OnRepairComplete(context.Context, int, time.Duration, bool)          {}

// NoopWorkerHooks is a no-op implementation of WorkerHooks.
type NoopWorkerHooks struct{}

func (NoopWorkerHooks) OnValidateStart(context.Context, string) {}
func (NoopWorkerHooks) OnValidateComplete(context.Context, string, string, time.Duration, error) {
}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopModelHooks is a no-op implementation of ModelHooks.
type NoopModelHooks struct{}

func (NoopModelHooks) OnRequest(context.Context, string, string, float64)            {}
func (NoopModelHooks) OnResponse(context.Context, string, string, int, time.Duration) {}
func (NoopModelHooks) OnError(context.Context, string, string, error)                {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	pipelineHooks PipelineHooks = NoopPipelineHooks{}
	workerHooks   WorkerHooks   = NoopWorkerHooks{}
	cacheHooks    CacheHooks    = NoopCacheHooks{}
	modelHooks    ModelHooks    = NoopModelHooks{}
	hooksMu       sync.RWMutex
)

// SetPipelineHooks registers custom pipeline hooks.
// This should be called once at application startup before any pipeline operations.
func SetPipelineHooks(h PipelineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		pipelineHooks = h
	}
}

// SetWorkerHooks registers custom worker hooks.
// This should be called once at application startup before any validations.
func SetWorkerHooks(h WorkerHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		workerHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetModelHooks registers custom model hooks.
// This should be called once at application startup before any model calls.
func SetModelHooks(h ModelHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		modelHooks = h
	}
}

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return pipelineHooks
}

// Worker returns the registered worker hooks.
func Worker() WorkerHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return workerHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Model returns the registered model hooks.
func Model() ModelHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return modelHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	pipelineHooks = NoopPipelineHooks{}
	workerHooks = NoopWorkerHooks{}
	cacheHooks = NoopCacheHooks{}
	modelHooks = NoopModelHooks{}
}
