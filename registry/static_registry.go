package registry

import (
	"context"
	"sort"
	"sync"
)

// StaticRegistry is an in-memory Registry. It serves single-process setups
// and clients pointed at a fixed endpoint. TTLs are ignored.
type StaticRegistry struct {
	mu       sync.RWMutex
	services map[string]map[string]ServiceInstance
	watchers map[string][]chan []ServiceInstance
}

// NewStaticRegistry returns a registry holding the given instances of one
// service.
func NewStaticRegistry(serviceName string, instances ...ServiceInstance) *StaticRegistry {
	r := &StaticRegistry{
		services: make(map[string]map[string]ServiceInstance),
		watchers: make(map[string][]chan []ServiceInstance),
	}
	for _, inst := range instances {
		r.put(serviceName, inst)
	}
	return r
}

func (r *StaticRegistry) put(serviceName string, instance ServiceInstance) {
	byAddr, ok := r.services[serviceName]
	if !ok {
		byAddr = make(map[string]ServiceInstance)
		r.services[serviceName] = byAddr
	}
	byAddr[instance.Addr] = instance
}

func (r *StaticRegistry) Register(_ context.Context, serviceName string, instance ServiceInstance, _ int64) error {
	r.mu.Lock()
	r.put(serviceName, instance)
	r.mu.Unlock()
	r.notify(serviceName)
	return nil
}

func (r *StaticRegistry) Deregister(_ context.Context, serviceName string, addr string) error {
	r.mu.Lock()
	delete(r.services[serviceName], addr)
	r.mu.Unlock()
	r.notify(serviceName)
	return nil
}

// Discover returns the instances sorted by address.
func (r *StaticRegistry) Discover(_ context.Context, serviceName string) ([]ServiceInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.list(serviceName), nil
}

func (r *StaticRegistry) list(serviceName string) []ServiceInstance {
	out := make([]ServiceInstance, 0, len(r.services[serviceName]))
	for _, inst := range r.services[serviceName] {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}

// Watch emits the instance list after every Register or Deregister. Only the
// latest list is kept for slow readers.
func (r *StaticRegistry) Watch(ctx context.Context, serviceName string) <-chan []ServiceInstance {
	ch := make(chan []ServiceInstance, 1)
	r.mu.Lock()
	r.watchers[serviceName] = append(r.watchers[serviceName], ch)
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		defer r.mu.Unlock()
		ws := r.watchers[serviceName]
		for i, w := range ws {
			if w == ch {
				r.watchers[serviceName] = append(ws[:i], ws[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch
}

func (r *StaticRegistry) notify(serviceName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.list(serviceName)
	for _, ch := range r.watchers[serviceName] {
		select {
		case <-ch:
		default:
		}
		ch <- list
	}
}
