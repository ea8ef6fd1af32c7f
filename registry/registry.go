// Package registry announces SOAP endpoints so clients can find them.
//
// An endpoint is stored under its service (contract) name:
//
//	Key:   /mini-soap/{ServiceName}/{escaped endpoint URL}
//	Value: JSON-encoded ServiceInstance
package registry

import (
	"context"
	"net/url"
)

// KeyPrefix roots every entry written by this package.
const KeyPrefix = "/mini-soap/"

// ServiceInstance is one reachable endpoint of a service.
type ServiceInstance struct {
	Addr    string `json:"addr"`   // Endpoint URL the client POSTs to
	Weight  int    `json:"weight"` // Weight for load balancing
	Version string `json:"version,omitempty"`
}

type Registry interface {
	Register(ctx context.Context, serviceName string, instance ServiceInstance, ttl int64) error
	Deregister(ctx context.Context, serviceName string, addr string) error
	Discover(ctx context.Context, serviceName string) ([]ServiceInstance, error)
	Watch(ctx context.Context, serviceName string) <-chan []ServiceInstance
}

func servicePrefix(serviceName string) string {
	return KeyPrefix + serviceName + "/"
}

// instanceKey escapes addr so the URL's slashes do not create extra levels.
func instanceKey(serviceName, addr string) string {
	return servicePrefix(serviceName) + url.PathEscape(addr)
}
