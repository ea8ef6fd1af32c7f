// Package loadbalance picks the endpoint a client sends the next call to.
//
//   - RoundRobin:      equal-capacity endpoints
//   - WeightedRandom:  endpoints announced with different weights
package loadbalance

import (
	"errors"

	"mini-soap/registry"
)

// ErrNoInstances is returned by Pick when the service has no endpoint.
var ErrNoInstances = errors.New("loadbalance: no instances available")

// Balancer is a selection strategy. Pick is called once per call and must be
// safe for concurrent use.
type Balancer interface {
	Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error)
	Name() string
}

// New returns the balancer registered under name, defaulting to round robin.
func New(name string) Balancer {
	if name == "WeightedRandom" {
		return &WeightedRandomBalancer{}
	}
	return &RoundRobinBalancer{}
}
