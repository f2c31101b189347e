package tools

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/Rubr1c/discord-ai-sdk-sub000/pkg/models"
)

// Invocable is a tool bound to a request context and ready for the model
// to call. Execute reports its own failures through ToolResult.Error; a
// returned error is reserved for conditions the tool could not observe
// (context cancellation, panic recovery in the runner).
type Invocable interface {
	// Name returns the tool name used for model function calling.
	Name() string

	// Description tells the model what the tool does.
	Description() string

	// Schema returns the JSON Schema for the tool's parameters.
	Schema() json.RawMessage

	// Execute runs the tool with schema-conforming JSON parameters.
	Execute(ctx context.Context, params json.RawMessage) (*models.ToolResult, error)
}

// Factory binds an unbound tool descriptor to the current request, fixing
// the tenant and channel the action operates on.
type Factory func(req *models.Request) Invocable

// Descriptor is an unbound catalog entry: a unique name, the safety tier
// the tool declares, and the factory producing a bound invocable.
type Descriptor struct {
	Name string
	Tier SafetyTier
	New  Factory
}

// CapFunc resolves the effective safety cap for a request. The lookup may
// block on I/O; a failure propagates to the caller unretried.
type CapFunc func(ctx context.Context, req *models.Request) (SafetyTier, error)

// Cap is the tagged union of a constant safety cap and a per-tenant
// resolver, with a single Resolve operation.
type Cap struct {
	tier    SafetyTier
	resolve CapFunc
}

// StaticCap returns a cap fixed at the given tier.
func StaticCap(tier SafetyTier) Cap {
	return Cap{tier: tier}
}

// CapResolver returns a cap resolved per request.
func CapResolver(fn CapFunc) Cap {
	return Cap{resolve: fn}
}

// Resolve yields the effective cap for the request.
func (c Cap) Resolve(ctx context.Context, req *models.Request) (SafetyTier, error) {
	if c.resolve == nil {
		return c.tier, nil
	}
	return c.resolve(ctx, req)
}

// Registry is the runtime tool catalog: a name-keyed set of descriptors
// plus the active safety cap. Mutation is expected between requests, not
// during them; lookups take defensive snapshots so the orchestrator cannot
// alias catalog state mid-request.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Descriptor
	cap   Cap
}

// NewRegistry creates an empty registry with the cap set to TierHigh, which
// admits every tool unconditionally.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Descriptor),
		cap:   StaticCap(TierHigh),
	}
}

// Add inserts a descriptor under its name. When the name already exists and
// overwrite is false, it fails with a DUPLICATE_TOOL error; with overwrite
// true it replaces silently.
func (r *Registry) Add(desc Descriptor, overwrite bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[desc.Name]; exists && !overwrite {
		return models.ErrDuplicateTool(desc.Name)
	}
	r.tools[desc.Name] = desc
	return nil
}

// Remove deletes the named descriptor, reporting absence via false.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; !exists {
		return false
	}
	delete(r.tools, name)
	return true
}

// Has reports whether the named tool is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Get returns the named descriptor and whether it was found.
func (r *Registry) Get(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.tools[name]
	return desc, ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns a snapshot of the full catalog regardless of the cap.
func (r *Registry) All() map[string]Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot(func(Descriptor) bool { return true })
}

// Available resolves the active cap for the request's tenant and returns a
// snapshot of the descriptors admitted under it. A cap of TierHigh returns
// the full catalog without comparing individual tiers; otherwise only
// descriptors with tier <= cap are included. Raising the cap never removes
// a previously available tool.
func (r *Registry) Available(ctx context.Context, req *models.Request) (map[string]Descriptor, error) {
	r.mu.RLock()
	activeCap := r.cap
	r.mu.RUnlock()

	tier, err := activeCap.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if tier == TierHigh {
		return r.snapshot(func(Descriptor) bool { return true }), nil
	}
	return r.snapshot(func(d Descriptor) bool { return d.Tier <= tier }), nil
}

// SetCap replaces the active safety cap policy.
func (r *Registry) SetCap(cap Cap) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cap = cap
}

// snapshot copies matching descriptors into a fresh map. Callers must hold
// at least a read lock.
func (r *Registry) snapshot(match func(Descriptor) bool) map[string]Descriptor {
	out := make(map[string]Descriptor, len(r.tools))
	for name, desc := range r.tools {
		if match(desc) {
			out[name] = desc
		}
	}
	return out
}

// Bind resolves the available descriptors for the request and binds each
// factory to it, producing the invocable set handed to the model runner.
func (r *Registry) Bind(ctx context.Context, req *models.Request) (map[string]Invocable, error) {
	available, err := r.Available(ctx, req)
	if err != nil {
		return nil, err
	}
	bound := make(map[string]Invocable, len(available))
	for name, desc := range available {
		if desc.New == nil {
			continue
		}
		bound[name] = desc.New(req)
	}
	return bound, nil
}
