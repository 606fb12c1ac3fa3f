package registry

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/okafor/toolmux/internal/observability"
	"github.com/okafor/toolmux/internal/tracing"
	"github.com/okafor/toolmux/pkg/executor"
)

// Registry is the in-memory capability catalog. It caches enabled tools
// only: a disabled entry is indistinguishable from an unknown one
// through Get. Dynamic changes are written through to the optional
// Store; the catalog file is never rewritten.
type Registry struct {
	mu          sync.RWMutex
	tools       map[string]ToolConfig
	catalogPath string
	store       Store
}

// New creates a registry reading from the catalog file at catalogPath
// (optional) and persisting dynamic changes to store (optional).
func New(catalogPath string, store Store) *Registry {
	observability.EnsureRegistered()
	return &Registry{
		tools:       make(map[string]ToolConfig),
		catalogPath: catalogPath,
		store:       store,
	}
}

// Load populates the cache from the catalog file, then overlays
// persisted entries so dynamic registrations survive restarts. Only
// enabled entries are cached.
func (r *Registry) Load(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "toolmux.registry", "registry.load")
	defer span.End()

	loaded := make(map[string]ToolConfig)

	if r.catalogPath != "" {
		if _, err := os.Stat(r.catalogPath); err == nil {
			fromFile, err := LoadCatalog(r.catalogPath)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return err
			}
			for name, tc := range fromFile {
				if tc.Enabled {
					loaded[name] = tc
				}
			}
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat catalog: %w", err)
		}
	}

	if r.store != nil {
		stored, err := r.store.LoadAll(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("failed to load persisted tools: %w", err)
		}
		for _, tc := range stored {
			if tc.Enabled {
				loaded[tc.Name] = tc
			} else {
				// A persisted disable wins over the catalog file.
				delete(loaded, tc.Name)
			}
		}
	}

	r.mu.Lock()
	r.tools = loaded
	r.mu.Unlock()

	observability.RecordCatalogReload()
	observability.SetCatalogTools(len(loaded))
	log.Info().
		Int("tools", len(loaded)).
		Str("catalog", r.catalogPath).
		Msg("Tool registry loaded")

	return nil
}

// Get returns the configuration for an enabled tool. The second return
// is false both for unknown and for disabled names.
func (r *Registry) Get(name string) (ToolConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tc, ok := r.tools[name]
	return tc, ok
}

// ListAll returns every enabled entry, sorted by name.
func (r *Registry) ListAll() []ToolConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ToolConfig, 0, len(r.tools))
	for _, tc := range r.tools {
		out = append(out, tc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Register adds or replaces a cache entry and persists it.
func (r *Registry) Register(ctx context.Context, tc ToolConfig) error {
	ctx, span := tracing.StartSpan(ctx, "toolmux.registry", "registry.register",
		attribute.String("tool", tc.Name),
	)
	defer span.End()

	if err := tc.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	tc.Enabled = true

	if r.store != nil {
		if err := r.store.UpsertTool(ctx, tc); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	r.mu.Lock()
	r.tools[tc.Name] = tc
	count := len(r.tools)
	r.mu.Unlock()

	observability.RecordRegistryOp("register")
	observability.SetCatalogTools(count)
	log.Info().Str("tool", tc.Name).Msg("Tool registered")

	return nil
}

// RegisterTool is a convenience for dynamic registration from name and
// parts, mirroring the gateway surface.
func (r *Registry) RegisterTool(ctx context.Context, name, displayName, command string, capabilities []string, args []string, cfg StatefulConfig) error {
	caps, err := ParseCapabilities(capabilities)
	if err != nil {
		return err
	}
	return r.Register(ctx, ToolConfig{
		Name:         name,
		DisplayName:  displayName,
		Command:      command,
		Args:         args,
		Capabilities: caps,
		Enabled:      true,
		Config:       cfg,
	})
}

// Disable removes the entry from the cache and marks it disabled in
// persisted storage. It never touches live sessions: terminating them
// is the caller's separate responsibility.
func (r *Registry) Disable(ctx context.Context, name string) error {
	ctx, span := tracing.StartSpan(ctx, "toolmux.registry", "registry.disable",
		attribute.String("tool", name),
	)
	defer span.End()

	r.mu.Lock()
	_, cached := r.tools[name]
	delete(r.tools, name)
	count := len(r.tools)
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.SetEnabled(ctx, name, false); err != nil {
			// The cache removal stands: Get must report absent even if
			// the persisted flag could not be flipped.
			log.Warn().Str("tool", name).Err(err).Msg("Failed to persist tool disable")
			if !cached {
				span.RecordError(err)
				return err
			}
		}
	}

	observability.RecordRegistryOp("disable")
	observability.SetCatalogTools(count)
	log.Info().Str("tool", name).Msg("Tool disabled")

	return nil
}

// FindByCapability returns the names of enabled tools carrying the
// given capability tag, sorted.
func (r *Registry) FindByCapability(c Capability) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for name, tc := range r.tools {
		if HasCapability(tc.Capabilities, c) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Spec returns the execution spec for an enabled tool. It satisfies the
// process manager's catalog dependency.
func (r *Registry) Spec(name string) (executor.Spec, bool) {
	tc, ok := r.Get(name)
	if !ok {
		return executor.Spec{}, false
	}
	return tc.Spec(), true
}
