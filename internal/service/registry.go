// Package service wires configuration to the throttle domain.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/pacegate/pacegate/internal/config"
	"github.com/pacegate/pacegate/internal/domain/throttle"
)

// ErrUnknownPolicy is returned when a gate or window is requested for a
// policy name that was not configured.
var ErrUnknownPolicy = errors.New("unknown throttle policy")

// Registry builds one shared throttle window per configured policy and hands
// out ordered gates drawing on it. Windows are built eagerly so configuration
// errors surface at startup, not on first acquisition.
type Registry struct {
	mu          sync.Mutex
	windows     map[string]*throttle.Window
	fingerprint uint64
}

// NewRegistry creates a registry from the configured policies. The observer
// may be nil. Policy durations must already have passed config validation;
// malformed values still fail here rather than being clamped.
func NewRegistry(policies []config.PolicyConfig, obs throttle.Observer) (*Registry, error) {
	if obs == nil {
		obs = throttle.NopObserver()
	}

	windows := make(map[string]*throttle.Window, len(policies))
	for _, policy := range policies {
		window, err := policy.WindowDuration()
		if err != nil {
			return nil, fmt.Errorf("policy %s: invalid window: %w", policy.Name, err)
		}
		retry, err := policy.RetryIntervalDuration()
		if err != nil {
			return nil, fmt.Errorf("policy %s: invalid retry interval: %w", policy.Name, err)
		}

		win, err := throttle.NewWindow(throttle.Config{
			Name:              policy.Name,
			RequestsPerWindow: policy.RequestsPerWindow,
			Window:            window,
			RetryInterval:     retry,
		}, throttle.WithObserver(obs))
		if err != nil {
			return nil, fmt.Errorf("policy %s: %w", policy.Name, err)
		}
		windows[policy.Name] = win
	}

	r := &Registry{
		windows:     windows,
		fingerprint: policyFingerprint(policies),
	}

	slog.Info("throttle registry loaded",
		"policies", len(policies),
		"fingerprint", fmt.Sprintf("%016x", r.fingerprint))

	return r, nil
}

// Window returns the shared window for the named policy.
func (r *Registry) Window(name string) (*throttle.Window, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	win, ok := r.windows[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPolicy, name)
	}
	return win, nil
}

// Gate returns a fresh ordered gate for the named policy. Each call starts a
// new sequence-number stream; all gates for one policy share that policy's
// rate budget.
func (r *Registry) Gate(name string) (*throttle.Gate, error) {
	win, err := r.Window(name)
	if err != nil {
		return nil, err
	}
	return win.Gate(), nil
}

// Names returns the configured policy names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.windows))
	for name := range r.windows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fingerprint returns a stable hash of the loaded policy set, used to detect
// configuration changes across restarts.
func (r *Registry) Fingerprint() uint64 {
	return r.fingerprint
}

// policyFingerprint hashes the policy set, order-independently, so logs can
// tell identical configurations apart from changed ones.
func policyFingerprint(policies []config.PolicyConfig) uint64 {
	sorted := make([]config.PolicyConfig, len(policies))
	copy(sorted, policies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	h := xxhash.New()
	for _, p := range sorted {
		_, _ = h.WriteString(p.Name)
		_, _ = h.Write([]byte{0}) // separator
		_, _ = h.WriteString(strconv.Itoa(p.RequestsPerWindow))
		_, _ = h.Write([]byte{0})
		_, _ = h.WriteString(p.Window)
		_, _ = h.Write([]byte{0})
		_, _ = h.WriteString(p.RetryInterval)
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}
