// Package router implements the routing core: for each request it
// consults the cache, then walks the capability's backends in priority
// order, enforcing daily quotas and health cooldowns, until one
// produces a result. Callers see a single logical service; which engine
// answered is reported, never required.
package router

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/voxmux/voxmux/cache"
	"github.com/voxmux/voxmux/conversation"
	"github.com/voxmux/voxmux/logger"
	"github.com/voxmux/voxmux/providers"
	"github.com/voxmux/voxmux/quota"
	"github.com/voxmux/voxmux/telemetry"
	"github.com/voxmux/voxmux/types"
)

// Defaults for the routing knobs.
const (
	DefaultCallTimeout   = 30 * time.Second
	DefaultCooldown      = 30 * time.Second
	DefaultCacheTTL      = time.Hour
	DefaultMaxConcurrent = 16
	DefaultSessionIdle   = 30 * time.Minute

	// ledgerKeepDays is how many days of quota records Maintain keeps.
	// Yesterday must survive for the midnight release edge.
	ledgerKeepDays = 2
)

// Observer receives routing measurements. The prometheus metrics
// package implements it; a nil observer disables instrumentation.
type Observer interface {
	ObserveRequest(capability, backend, status string, latency time.Duration)
	ObserveCacheLookup(capability string, hit bool)
	ObserveFallbackDepth(capability string, depth int)
	SetQuotaUsage(backend string, used, limit int)
}

// Router mediates requests across the registered backends.
type Router struct {
	registry      *providers.Registry
	ledger        *quota.Ledger
	cache         cache.Cache
	conversations *conversation.Manager

	callTimeout time.Duration
	cooldown    time.Duration
	cacheTTL    time.Duration
	sessionIdle time.Duration

	sem      *semaphore.Weighted
	tracer   trace.Tracer
	observer Observer

	hits   atomic.Uint64
	misses atomic.Uint64
}

// Option configures a Router.
type Option func(*Router)

// WithCallTimeout bounds each provider invocation.
func WithCallTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.callTimeout = d
		}
	}
}

// WithCooldown sets how long a failed backend is skipped.
func WithCooldown(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.cooldown = d
		}
	}
}

// WithCacheTTL sets the lifetime of stored responses.
func WithCacheTTL(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.cacheTTL = d
		}
	}
}

// WithMaxConcurrent caps simultaneous provider invocations.
func WithMaxConcurrent(n int64) Option {
	return func(r *Router) {
		if n > 0 {
			r.sem = semaphore.NewWeighted(n)
		}
	}
}

// WithSessionIdle sets the idle bound used by Maintain to evict
// conversation sessions.
func WithSessionIdle(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.sessionIdle = d
		}
	}
}

// WithTracer enables span creation per handled request.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Router) {
		r.tracer = tracer
	}
}

// WithObserver wires a metrics sink.
func WithObserver(obs Observer) Option {
	return func(r *Router) {
		r.observer = obs
	}
}

// New creates a Router over the given registry, ledger, cache, and
// conversation manager.
func New(registry *providers.Registry, ledger *quota.Ledger, c cache.Cache, conv *conversation.Manager, opts ...Option) *Router {
	r := &Router{
		registry:      registry,
		ledger:        ledger,
		cache:         c,
		conversations: conv,
		callTimeout:   DefaultCallTimeout,
		cooldown:      DefaultCooldown,
		cacheTTL:      DefaultCacheTTL,
		sessionIdle:   DefaultSessionIdle,
		sem:           semaphore.NewWeighted(DefaultMaxConcurrent),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle routes one request. It returns the result, an outcome
// describing how it was obtained, and an error when no backend could
// serve the request.
func (r *Router) Handle(ctx context.Context, capability types.Capability, req types.Request) (types.Result, Outcome, error) {
	outcome := Outcome{RequestID: uuid.NewString()}
	if !capability.Valid() {
		return types.Result{}, outcome, ErrUnknownCapability
	}

	ctx = logger.WithRequestID(ctx, outcome.RequestID)
	ctx = logger.WithCapability(ctx, string(capability))
	if req.SessionID != "" {
		ctx = logger.WithSessionID(ctx, req.SessionID)
	}

	if r.tracer != nil {
		var span trace.Span
		ctx, span = r.tracer.Start(ctx, "router.Handle",
			trace.WithAttributes(telemetry.AttrCapability.String(string(capability))))
		defer func() {
			span.SetAttributes(
				telemetry.AttrCacheHit.Bool(outcome.CacheHit),
				telemetry.AttrBackend.String(outcome.Backend),
			)
			span.End()
		}()
	}

	// Chat requests carry their bounded history into the provider call.
	isChat := capability == types.CapabilityChat
	if isChat && req.SessionID != "" && r.conversations != nil {
		req.Messages = r.conversations.Context(ctx, req.SessionID)
	}

	fingerprint := cache.Fingerprint(capability, req)

	if !req.NoCache {
		if result, ok := r.lookupCache(ctx, capability, fingerprint); ok {
			outcome.CacheHit = true
			outcome.Backend = result.Backend
			r.recordChatTurns(ctx, isChat, req, result)
			return result, outcome, nil
		}
	}

	result, err := r.walk(ctx, capability, req, fingerprint, &outcome)
	if err != nil {
		return types.Result{}, outcome, err
	}
	r.recordChatTurns(ctx, isChat, req, result)
	return result, outcome, nil
}

// walk tries each backend for the capability in priority order.
func (r *Router) walk(ctx context.Context, capability types.Capability, req types.Request, fingerprint string, outcome *Outcome) (types.Result, error) {
	backends := r.registry.BackendsFor(capability)

	var lastErr error
	for _, b := range backends {
		if !r.registry.Healthy(b.Name) {
			outcome.Attempts = append(outcome.Attempts, Attempt{Backend: b.Name, Reason: SkipUnhealthy})
			continue
		}
		if !r.ledger.Reserve(b.Name) {
			outcome.Attempts = append(outcome.Attempts, Attempt{Backend: b.Name, Reason: SkipQuota, Err: providers.ErrQuotaExhausted})
			logger.Debug("backend quota exhausted", "backend", b.Name)
			continue
		}
		// Quota is checked before the limiter so a quota-skip does not
		// burn a throttle token.
		if !r.registry.Allow(b.Name) {
			r.ledger.Release(b.Name)
			outcome.Attempts = append(outcome.Attempts, Attempt{Backend: b.Name, Reason: SkipThrottled})
			logger.Debug("backend throttled", "backend", b.Name)
			continue
		}

		result, err := r.invoke(ctx, b, req)
		if err != nil {
			r.ledger.Release(b.Name)
			r.publishQuota(b.Name)

			// Caller cancellation is not a backend fault.
			if ctx.Err() != nil {
				return types.Result{}, ctx.Err()
			}

			r.registry.MarkUnhealthy(b.Name, r.cooldown)
			logger.BackendFailure(b.Name, string(capability), err)
			if r.observer != nil {
				r.observer.ObserveRequest(string(capability), b.Name, "error", result.Latency)
			}
			outcome.Attempts = append(outcome.Attempts, Attempt{Backend: b.Name, Reason: SkipFailed, Err: err})
			lastErr = err
			continue
		}

		r.registry.MarkHealthy(b.Name)
		r.publishQuota(b.Name)

		result.Backend = b.Name
		outcome.Backend = b.Name
		logger.BackendResponse(b.Name, string(capability), result.Latency)
		if r.observer != nil {
			r.observer.ObserveRequest(string(capability), b.Name, "ok", result.Latency)
			r.observer.ObserveFallbackDepth(string(capability), len(outcome.Attempts))
		}

		if !req.NoCache {
			r.storeCache(ctx, capability, fingerprint, result)
		}
		return result, nil
	}

	return types.Result{}, &ExhaustedError{
		Capability: capability,
		Attempts:   len(outcome.Attempts),
		LastErr:    lastErr,
	}
}

// invoke runs one provider call under the concurrency cap and the
// per-call timeout.
func (r *Router) invoke(ctx context.Context, b *providers.Backend, req types.Request) (types.Result, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return types.Result{}, err
	}
	defer r.sem.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	logger.BackendCall(b.Name, string(b.Capability))
	start := time.Now()
	result, err := b.Provider.Invoke(callCtx, req)
	result.Latency = time.Since(start)
	return result, err
}

// lookupCache returns a replayed result on a live cache hit. Cache
// failures are logged and treated as misses; the cache is an
// accelerator, not a dependency.
func (r *Router) lookupCache(ctx context.Context, capability types.Capability, fingerprint string) (types.Result, bool) {
	payload, ok, err := r.cache.Lookup(ctx, capability, fingerprint)
	if err != nil {
		logger.Warn("cache lookup failed", "error", err)
		return types.Result{}, false
	}
	if r.observer != nil {
		r.observer.ObserveCacheLookup(string(capability), ok)
	}
	if !ok {
		r.misses.Add(1)
		return types.Result{}, false
	}

	var result types.Result
	if err := json.Unmarshal(payload, &result); err != nil {
		logger.Warn("cache entry corrupt, dropping", "error", err)
		_ = r.cache.Invalidate(ctx, capability, fingerprint)
		r.misses.Add(1)
		return types.Result{}, false
	}

	r.hits.Add(1)
	logger.Debug("cache hit", "backend", result.Backend)
	return result, true
}

func (r *Router) storeCache(ctx context.Context, capability types.Capability, fingerprint string, result types.Result) {
	payload, err := json.Marshal(result)
	if err != nil {
		logger.Warn("cache encode failed", "error", err)
		return
	}
	if err := r.cache.Store(ctx, capability, fingerprint, payload, r.cacheTTL); err != nil {
		logger.Warn("cache store failed", "error", err)
	}
}

// recordChatTurns appends both turns of a completed chat exchange to
// the session history. Cache hits record too, so the conversation stays
// coherent no matter where the reply came from.
func (r *Router) recordChatTurns(ctx context.Context, isChat bool, req types.Request, result types.Result) {
	if !isChat || req.SessionID == "" || r.conversations == nil {
		return
	}
	if req.Text != "" {
		r.conversations.Append(ctx, req.SessionID, types.RoleUser, req.Text)
	}
	if result.Text != "" {
		r.conversations.Append(ctx, req.SessionID, types.RoleAssistant, result.Text)
	}
}

func (r *Router) publishQuota(backend string) {
	if r.observer == nil {
		return
	}
	used, limit := r.ledger.Usage(backend)
	r.observer.SetQuotaUsage(backend, used, limit)
}

// BackendStatus is one backend's line in a status report.
type BackendStatus struct {
	Name       string           `json:"name"`
	Capability types.Capability `json:"capability"`
	Locality   types.Locality   `json:"locality"`
	UsedToday  int              `json:"used_today"`
	Limit      int              `json:"limit"`
	Healthy    bool             `json:"healthy"`
}

// Status is a point-in-time report of the routing core.
type Status struct {
	Backends     []BackendStatus `json:"backends"`
	CacheSize    int             `json:"cache_size"`
	CacheHits    uint64          `json:"cache_hits"`
	CacheMisses  uint64          `json:"cache_misses"`
	CacheHitRate float64         `json:"cache_hit_rate"`
}

// Status reports per-backend quota and health plus cache statistics.
func (r *Router) Status(ctx context.Context) Status {
	var s Status
	for _, b := range r.registry.All() {
		used, limit := r.ledger.Usage(b.Name)
		s.Backends = append(s.Backends, BackendStatus{
			Name:       b.Name,
			Capability: b.Capability,
			Locality:   b.Locality,
			UsedToday:  used,
			Limit:      limit,
			Healthy:    r.registry.Healthy(b.Name),
		})
	}

	if size, err := r.cache.Len(ctx); err == nil {
		s.CacheSize = size
	}
	s.CacheHits = r.hits.Load()
	s.CacheMisses = r.misses.Load()
	if total := s.CacheHits + s.CacheMisses; total > 0 {
		s.CacheHitRate = float64(s.CacheHits) / float64(total)
	}
	return s
}

// ResetSession clears a conversation's history.
func (r *Router) ResetSession(ctx context.Context, sessionID string) {
	if r.conversations != nil {
		r.conversations.Clear(ctx, sessionID)
	}
}

// History returns a copy of a conversation's bounded history.
func (r *Router) History(ctx context.Context, sessionID string) []types.Message {
	if r.conversations == nil {
		return nil
	}
	return r.conversations.Context(ctx, sessionID)
}

// Maintain runs periodic housekeeping until the context is cancelled:
// cache sweeps, quota record pruning, and stale session eviction.
func (r *Router) Maintain(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept := r.cache.Sweep(ctx)
			pruned := r.ledger.Prune(ledgerKeepDays)
			evicted := 0
			if r.conversations != nil {
				evicted = r.conversations.EvictStale(ctx, r.sessionIdle)
			}
			logger.Debug("maintenance pass",
				"cache_swept", swept,
				"quota_pruned", pruned,
				"sessions_evicted", evicted)
		}
	}
}

// Close shuts down every registered provider.
func (r *Router) Close() error {
	return r.registry.Close()
}
