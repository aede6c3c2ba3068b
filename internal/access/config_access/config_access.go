// Package config_access registers the built-in access providers that decide
// whether a given API key may use a given model, mirroring the provider and
// model registries' self-registration pattern.
package config_access

import "sync"

// Provider decides whether a client identified by keyID may use model.
type Provider interface {
	Name() string
	Allow(keyID, model string) bool
}

var (
	mu        sync.RWMutex
	providers = map[string]Provider{}
)

// RegisterProvider adds or replaces a named access provider.
func RegisterProvider(p Provider) {
	mu.Lock()
	defer mu.Unlock()
	providers[p.Name()] = p
}

// Allow reports whether every registered provider permits keyID to use
// model; a single denying provider rejects the request. With no providers
// registered, every request is allowed.
func Allow(keyID, model string) bool {
	mu.RLock()
	defer mu.RUnlock()
	for _, p := range providers {
		if !p.Allow(keyID, model) {
			return false
		}
	}
	return true
}

// allowAll is the default provider: it never denies a request. Deployments
// that need per-key model restrictions register a stricter Provider on top
// of it via RegisterProvider.
type allowAll struct{}

func (allowAll) Name() string                     { return "allow-all" }
func (allowAll) Allow(keyID, model string) bool { return true }

// Register installs the default built-in access providers. Call once during
// bootstrap before serving any requests.
func Register() {
	RegisterProvider(allowAll{})
}
