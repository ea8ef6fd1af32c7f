package loadbalance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-soap/registry"
)

var testInstances = []registry.ServiceInstance{
	{Addr: "http://a.example/soap", Weight: 10, Version: "1.0"},
	{Addr: "http://b.example/soap", Weight: 5, Version: "1.0"},
	{Addr: "http://c.example/soap", Weight: 10, Version: "1.0"},
}

func TestRoundRobin(t *testing.T) {
	b := &RoundRobinBalancer{}

	for i := 0; i < 2*len(testInstances); i++ {
		inst, err := b.Pick(testInstances)
		require.NoError(t, err)
		assert.Equal(t, testInstances[i%len(testInstances)].Addr, inst.Addr)
	}
}

func TestRoundRobinEmpty(t *testing.T) {
	b := &RoundRobinBalancer{}
	_, err := b.Pick(nil)
	require.ErrorIs(t, err, ErrNoInstances)
}

func TestWeightedRandom(t *testing.T) {
	b := &WeightedRandomBalancer{}

	counts := map[string]int{}
	n := 10000
	for i := 0; i < n; i++ {
		inst, err := b.Pick(testInstances)
		require.NoError(t, err)
		counts[inst.Addr]++
	}

	// Weight ratio is 10:5:10, so a and c should be picked about twice as often as b
	ratio := float64(counts["http://a.example/soap"]) / float64(counts["http://b.example/soap"])
	assert.InDelta(t, 2.0, ratio, 0.5)
}

func TestWeightedRandomZeroWeights(t *testing.T) {
	b := &WeightedRandomBalancer{}
	inst, err := b.Pick([]registry.ServiceInstance{{Addr: "http://only.example/soap"}})
	require.NoError(t, err)
	assert.Equal(t, "http://only.example/soap", inst.Addr)
}

func TestNew(t *testing.T) {
	assert.Equal(t, "WeightedRandom", New("WeightedRandom").Name())
	assert.Equal(t, "RoundRobin", New("").Name())
}
