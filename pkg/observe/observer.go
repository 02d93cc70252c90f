package observe

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hostconform/hostconform/pkg/manifest"
)

// ErrUnavailable indicates a domain's state source could not be reached
// (e.g. the container runtime is down). The reconciliation run skips the
// domain with a warning instead of aborting.
var ErrUnavailable = errors.New("state observer unavailable")

// Item is a single observed resource. It mirrors the shape of a manifest
// entry but represents current reality; it is never persisted by the core.
type Item struct {
	// Domain is the resource category.
	Domain manifest.Domain `json:"domain"`

	// ID is the identifier, unique within the domain.
	ID string `json:"id"`

	// Attrs holds the observed attributes.
	Attrs map[string]string `json:"attrs"`
}

// Key returns the composite key "prefix.identifier".
func (i Item) Key() string {
	return i.Domain.Prefix() + "." + i.ID
}

// Attr returns the named attribute value, or "" when absent.
func (i Item) Attr(name string) string {
	return i.Attrs[name]
}

// Observer produces the observed-state snapshot for a domain. Implementations
// live outside the core (package manager queries, systemctl, the container
// runtime API) and must honor the supplied context deadline.
type Observer interface {
	Observe(ctx context.Context, domain manifest.Domain) ([]Item, error)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, domain manifest.Domain) ([]Item, error)

// Observe calls the wrapped function.
func (f ObserverFunc) Observe(ctx context.Context, domain manifest.Domain) ([]Item, error) {
	return f(ctx, domain)
}

// Registry maps domains to their observers.
type Registry struct {
	mu        sync.RWMutex
	observers map[manifest.Domain]Observer
}

// NewRegistry creates an empty observer registry.
func NewRegistry() *Registry {
	return &Registry{observers: make(map[manifest.Domain]Observer)}
}

// Register binds an observer to a domain, replacing any previous binding.
func (r *Registry) Register(d manifest.Domain, o Observer) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if o == nil {
		return fmt.Errorf("observer for %s is nil", d)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers[d] = o
	return nil
}

// Lookup returns the observer bound to a domain.
func (r *Registry) Lookup(d manifest.Domain) (Observer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.observers[d]
	return o, ok
}

// Domains returns the registered domains in fixed execution order.
func (r *Registry) Domains() []manifest.Domain {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]manifest.Domain, 0, len(r.observers))
	for _, d := range manifest.Domains {
		if _, ok := r.observers[d]; ok {
			out = append(out, d)
		}
	}
	return out
}
