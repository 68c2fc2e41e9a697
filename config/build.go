package config

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/voxmux/voxmux/cache"
	"github.com/voxmux/voxmux/conversation"
	"github.com/voxmux/voxmux/credentials"
	vmprom "github.com/voxmux/voxmux/metrics/prometheus"
	"github.com/voxmux/voxmux/providers"
	"github.com/voxmux/voxmux/quota"
	"github.com/voxmux/voxmux/router"
	"github.com/voxmux/voxmux/statestore"
	"github.com/voxmux/voxmux/telemetry"
	"github.com/voxmux/voxmux/types"
)

// Runtime holds the components built from a configuration. Close it
// when done.
type Runtime struct {
	Router   *router.Router
	Registry *providers.Registry
	Ledger   *quota.Ledger
	Cache    cache.Cache

	// Exporter is nil unless metrics.addr is configured. The caller
	// starts it.
	Exporter *vmprom.Exporter

	shutdown []func(context.Context) error
}

// Close releases the runtime's resources.
func (r *Runtime) Close(ctx context.Context) error {
	var firstErr error
	if err := r.Router.Close(); err != nil {
		firstErr = err
	}
	for _, fn := range r.shutdown {
		if err := fn(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Build constructs the routing core described by the configuration.
func (c *Config) Build(ctx context.Context) (*Runtime, error) {
	rt := &Runtime{}

	registry := providers.NewRegistry()
	ledger := quota.NewLedger()

	for i := range c.Backends {
		b := &c.Backends[i]
		cred, err := credentials.Resolve(ctx, credentials.ResolverConfig{
			BackendType: b.Type,
			Key:         b.Key,
			Cloud:       b.Cloud,
			ConfigDir:   c.ConfigDir,
		})
		if err != nil {
			return nil, fmt.Errorf("backend %q: resolving credentials: %w", b.Name, err)
		}

		desc := providers.Descriptor{
			Name:       b.Name,
			Capability: types.Capability(b.Capability),
			Locality:   b.locality(),
			Priority:   b.Priority,
			DailyLimit: b.DailyLimit,
			RPS:        b.RPS,
			Burst:      b.Burst,
		}
		provider, err := providers.CreateFromSpec(ctx, providers.Spec{
			Type:       b.Type,
			Descriptor: desc,
			BaseURL:    b.BaseURL,
			Model:      b.Model,
			Voice:      b.Voice,
			Credential: cred,
			Reply:      b.Reply,
		})
		if err != nil {
			return nil, fmt.Errorf("backend %q: %w", b.Name, err)
		}

		if err := registry.Register(desc, provider); err != nil {
			return nil, fmt.Errorf("backend %q: %w", b.Name, err)
		}
		ledger.Register(b.Name, b.DailyLimit)
	}

	respCache := c.buildCache(rt)

	var convOpts []conversation.ManagerOption
	if c.Conversation.MaxMessages > 0 {
		convOpts = append(convOpts, conversation.WithMaxMessages(c.Conversation.MaxMessages))
	}
	if rc := c.Conversation.Redis; rc != nil {
		client := newRedisClient(rc)
		store := statestore.NewRedisStore(client, statestore.WithPrefix(rc.Prefix))
		convOpts = append(convOpts, conversation.WithSnapshotStore(store))
		rt.shutdown = append(rt.shutdown, func(context.Context) error { return client.Close() })
	}
	conversations := conversation.NewManager(convOpts...)

	routerOpts := []router.Option{
		router.WithCallTimeout(parseDuration(c.Router.CallTimeout, router.DefaultCallTimeout)),
		router.WithCooldown(parseDuration(c.Router.Cooldown, router.DefaultCooldown)),
		router.WithCacheTTL(parseDuration(c.Cache.TTL, router.DefaultCacheTTL)),
		router.WithSessionIdle(parseDuration(c.Conversation.MaxIdle, router.DefaultSessionIdle)),
	}
	if c.Router.MaxConcurrent > 0 {
		routerOpts = append(routerOpts, router.WithMaxConcurrent(int64(c.Router.MaxConcurrent)))
	}

	if c.Metrics.Addr != "" {
		exporter, err := vmprom.NewExporter(c.Metrics.Addr)
		if err != nil {
			return nil, fmt.Errorf("building metrics exporter: %w", err)
		}
		rt.Exporter = exporter
		routerOpts = append(routerOpts, router.WithObserver(vmprom.NewRecorder()))
	}

	if c.Telemetry.Endpoint != "" {
		name := c.Telemetry.ServiceName
		if name == "" {
			name = "voxmux"
		}
		tp, err := telemetry.NewTracerProvider(ctx, c.Telemetry.Endpoint, name)
		if err != nil {
			return nil, fmt.Errorf("building tracer provider: %w", err)
		}
		routerOpts = append(routerOpts, router.WithTracer(telemetry.Tracer(tp)))
		rt.shutdown = append(rt.shutdown, tp.Shutdown)
	}

	rt.Registry = registry
	rt.Ledger = ledger
	rt.Cache = respCache
	rt.Router = router.New(registry, ledger, respCache, conversations, routerOpts...)
	return rt, nil
}

func (c *Config) buildCache(rt *Runtime) cache.Cache {
	if rc := c.Cache.Redis; rc != nil {
		var opts []cache.RedisOption
		if rc.Prefix != "" {
			opts = append(opts, cache.WithRedisPrefix(rc.Prefix))
		}
		client := newRedisClient(rc)
		rt.shutdown = append(rt.shutdown, func(context.Context) error { return client.Close() })
		return cache.NewRedisCache(client, opts...)
	}
	var opts []cache.MemoryOption
	if c.Cache.MaxEntries > 0 {
		opts = append(opts, cache.WithMaxEntries(c.Cache.MaxEntries))
	}
	return cache.NewMemoryCache(opts...)
}

func newRedisClient(rc *RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
}
