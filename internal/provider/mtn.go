package provider

import (
	"math/rand"
	"time"
)

// NewMTN simulates interaction with the MTN MoMo sandbox.
func NewMTN(opts ...SandboxOption) Adapter {
	s := &sandbox{
		name:        "mtn",
		tag:         "MTN",
		scheme:      "mtn",
		successRate: 0.90,
		apiEndpoint: "https://sandbox.momodeveloper.mtn.com",
		minLatency:  200 * time.Millisecond,
		maxLatency:  800 * time.Millisecond,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
