package provider

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"patient-portal-server/internal/domain"
)

// CheckoutRequest contains the data a provider needs to start a checkout.
type CheckoutRequest struct {
	Reference   string
	Amount      float64
	Phone       string
	Currency    string
	Description string
}

// CheckoutResult is what a successful initiation hands back: the deep link
// the user opens to authorize the debit, and the provider's own reference.
type CheckoutResult struct {
	CheckoutURI string
	ExternalRef string
	Message     string
	Raw         map[string]any
}

// Adapter is the single-attempt checkout-initiation contract every provider
// implements. Retry policy, if any, belongs to the caller.
type Adapter interface {
	Name() string
	InitiateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
}

// Registry dispatches on the provider enum. Adapters share no mutable state.
type Registry struct {
	adapters map[domain.Provider]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	m := make(map[domain.Provider]Adapter, len(adapters))
	for _, a := range adapters {
		m[domain.Provider(a.Name())] = a
	}
	return &Registry{adapters: m}
}

func (r *Registry) For(p domain.Provider) (Adapter, bool) {
	a, ok := r.adapters[p]
	return a, ok
}

// sandbox holds the shared simulator mechanics. Each provider file sets its
// own success rate and URI scheme, mirroring the sandbox endpoints of the
// real networks.
type sandbox struct {
	name        string
	tag         string
	scheme      string
	successRate float64
	apiEndpoint string

	minLatency time.Duration
	maxLatency time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// SandboxOption tweaks simulator behavior, mainly for tests.
type SandboxOption func(*sandbox)

// WithSeed makes the simulator's outcomes reproducible.
func WithSeed(seed int64) SandboxOption {
	return func(s *sandbox) { s.rng = rand.New(rand.NewSource(seed)) }
}

// WithLatency overrides the simulated network latency window.
func WithLatency(min, max time.Duration) SandboxOption {
	return func(s *sandbox) { s.minLatency, s.maxLatency = min, max }
}

// WithSuccessRate overrides the simulated success rate (0 always fails,
// 1 always succeeds).
func WithSuccessRate(rate float64) SandboxOption {
	return func(s *sandbox) { s.successRate = rate }
}

func (s *sandbox) Name() string { return s.name }

func (s *sandbox) InitiateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if err := s.wait(ctx); err != nil {
		return nil, domain.WrapError(domain.KindProviderError,
			fmt.Sprintf("%s checkout timed out", s.tag), err)
	}

	s.mu.Lock()
	roll := s.rng.Float64()
	suffix := s.rng.Int63()
	s.mu.Unlock()

	if roll >= s.successRate {
		// A simulated failure surfaces as a provider error, never a silent
		// success.
		return nil, domain.NewError(domain.KindProviderError,
			fmt.Sprintf("%s payment failed - insufficient balance or network error", s.tag))
	}

	externalRef := fmt.Sprintf("%s_%d_%d", s.tag, time.Now().UnixMilli(), suffix)
	return &CheckoutResult{
		CheckoutURI: fmt.Sprintf("%s://pay?ref=%s", s.scheme, req.Reference),
		ExternalRef: externalRef,
		Message:     fmt.Sprintf("Payment initiated successfully via %s Mobile Money", s.tag),
		Raw: map[string]any{
			"provider":     s.name,
			"api_endpoint": s.apiEndpoint,
			"external_ref": externalRef,
			"amount":       req.Amount,
			"currency":     req.Currency,
			"phone":        req.Phone,
		},
	}, nil
}

// wait simulates network latency while honoring cancellation.
func (s *sandbox) wait(ctx context.Context) error {
	if s.maxLatency <= 0 {
		return ctx.Err()
	}
	s.mu.Lock()
	window := s.maxLatency - s.minLatency
	delay := s.minLatency
	if window > 0 {
		delay += time.Duration(s.rng.Int63n(int64(window)))
	}
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// WithBreaker wraps an adapter in a circuit breaker so a flapping provider
// fails fast instead of eating the request timeout on every call.
func WithBreaker(inner Adapter) Adapter {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    inner.Name(),
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &breakerAdapter{inner: inner, cb: cb}
}

type breakerAdapter struct {
	inner Adapter
	cb    *gobreaker.CircuitBreaker
}

func (b *breakerAdapter) Name() string { return b.inner.Name() }

func (b *breakerAdapter) InitiateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return b.inner.InitiateCheckout(ctx, req)
	})
	if err != nil {
		if domain.KindOf(err) == domain.KindProviderError {
			return nil, err
		}
		return nil, domain.WrapError(domain.KindProviderError,
			fmt.Sprintf("%s provider unavailable", b.inner.Name()), err)
	}
	return out.(*CheckoutResult), nil
}
