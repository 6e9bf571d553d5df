package provider

import (
	"math/rand"
	"time"
)

// NewAirtel simulates interaction with the Airtel Money API.
func NewAirtel(opts ...SandboxOption) Adapter {
	s := &sandbox{
		name:        "airtel",
		tag:         "AIRTEL",
		scheme:      "airtelmoney",
		successRate: 0.88,
		apiEndpoint: "https://openapiuat.airtel.africa",
		minLatency:  200 * time.Millisecond,
		maxLatency:  800 * time.Millisecond,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
