package provider

import (
	"math/rand"
	"time"
)

// NewOrange simulates interaction with the Orange Money API.
func NewOrange(opts ...SandboxOption) Adapter {
	s := &sandbox{
		name:        "orange",
		tag:         "ORANGE",
		scheme:      "orangemoney",
		successRate: 0.85,
		apiEndpoint: "https://api.orange.com/orange-money",
		minLatency:  200 * time.Millisecond,
		maxLatency:  800 * time.Millisecond,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
