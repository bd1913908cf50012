package registry

import "context"

// ServiceInstance is one server publishing a service.
type ServiceInstance struct {
	ID      string `json:"id,omitempty"`
	Addr    string `json:"addr"`
	Weight  int    `json:"weight"` // Weight for load balancing
	Version string `json:"version,omitempty"`
}

// Registry publishes and discovers service instances.
type Registry interface {
	// Register publishes instance under serviceName. With a positive ttl the
	// entry disappears if the process stops renewing it.
	Register(ctx context.Context, serviceName string, instance ServiceInstance, ttl int64) error
	Deregister(ctx context.Context, serviceName string, addr string) error
	Discover(ctx context.Context, serviceName string) ([]ServiceInstance, error)
	// Watch emits the full instance list after every change until ctx is
	// done, then closes the channel.
	Watch(ctx context.Context, serviceName string) <-chan []ServiceInstance
}
