package registry

import (
	"context"
	"slices"
	"sync"

	"github.com/samber/lo"
)

// StaticRegistry keeps instances in memory. TTLs are ignored.
type StaticRegistry struct {
	mu        sync.Mutex
	instances map[string][]ServiceInstance
	watchers  map[string][]chan []ServiceInstance
}

func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{
		instances: make(map[string][]ServiceInstance),
		watchers:  make(map[string][]chan []ServiceInstance),
	}
}

// NewStaticRegistryFor returns a registry serving addrs for serviceName.
func NewStaticRegistryFor(serviceName string, addrs ...string) *StaticRegistry {
	r := NewStaticRegistry()
	r.instances[serviceName] = lo.Map(addrs, func(addr string, _ int) ServiceInstance {
		return ServiceInstance{Addr: addr, Weight: 1}
	})
	return r
}

// Register adds instance, replacing one with the same address.
func (r *StaticRegistry) Register(_ context.Context, serviceName string, instance ServiceInstance, _ int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	insts := lo.Reject(r.instances[serviceName], func(i ServiceInstance, _ int) bool { return i.Addr == instance.Addr })
	r.instances[serviceName] = append(insts, instance)
	r.notify(serviceName)
	return nil
}

func (r *StaticRegistry) Deregister(_ context.Context, serviceName string, addr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[serviceName] = lo.Reject(r.instances[serviceName], func(i ServiceInstance, _ int) bool { return i.Addr == addr })
	r.notify(serviceName)
	return nil
}

func (r *StaticRegistry) Discover(_ context.Context, serviceName string) ([]ServiceInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.instances[serviceName]), nil
}

// Watch emits the current list immediately and again after every change.
// A watcher that falls behind only sees the latest list.
func (r *StaticRegistry) Watch(ctx context.Context, serviceName string) <-chan []ServiceInstance {
	ch := make(chan []ServiceInstance, 1)
	r.mu.Lock()
	ch <- slices.Clone(r.instances[serviceName])
	r.watchers[serviceName] = append(r.watchers[serviceName], ch)
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		defer r.mu.Unlock()
		r.watchers[serviceName] = lo.Without(r.watchers[serviceName], ch)
		close(ch)
	}()
	return ch
}

// notify must be called with r.mu held.
func (r *StaticRegistry) notify(serviceName string) {
	list := r.instances[serviceName]
	for _, ch := range r.watchers[serviceName] {
		select {
		case <-ch:
		default:
		}
		ch <- slices.Clone(list)
	}
}
