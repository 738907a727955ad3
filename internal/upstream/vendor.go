// Package upstream holds the vendor table and the HTTP forwarder that relays
// bot requests to LLM vendor APIs with a pooled key injected.
package upstream

import (
	"regexp"
	"sort"
	"sync/atomic"
)

// MaxNameLength bounds a vendor name.
const MaxNameLength = 64

var nameRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// ValidName reports whether name can be a /v1/<vendor> path segment:
// lowercase letters, digits and inner hyphens.
func ValidName(name string) bool {
	return len(name) <= MaxNameLength && nameRe.MatchString(name)
}

// Vendor describes how to reach one LLM vendor API.
type Vendor struct {
	Name    string
	BaseURL string
	// AuthHeader is the request header that carries the vendor key.
	AuthHeader string
	// AuthScheme prefixes the key ("Bearer"). Empty sends the raw key.
	AuthScheme string
	// ExtraHeaders are set on the upstream request when the client did not send them.
	ExtraHeaders map[string]string
}

// AuthValue formats key for the vendor's auth header.
func (v Vendor) AuthValue(key string) string {
	if v.AuthScheme == "" {
		return key
	}
	return v.AuthScheme + " " + key
}

// DefaultVendors returns the built-in vendor table.
// Request paths are appended to BaseURL as-is.
func DefaultVendors() map[string]Vendor {
	bearer := func(name, base string) Vendor {
		return Vendor{Name: name, BaseURL: base, AuthHeader: "Authorization", AuthScheme: "Bearer"}
	}
	return map[string]Vendor{
		"openai":     bearer("openai", "https://api.openai.com/v1"),
		"openrouter": bearer("openrouter", "https://openrouter.ai/api/v1"),
		"groq":       bearer("groq", "https://api.groq.com/openai/v1"),
		"deepseek":   bearer("deepseek", "https://api.deepseek.com/v1"),
		"mistral":    bearer("mistral", "https://api.mistral.ai/v1"),
		"xai":        bearer("xai", "https://api.x.ai/v1"),
		"anthropic": {
			Name:         "anthropic",
			BaseURL:      "https://api.anthropic.com",
			AuthHeader:   "x-api-key",
			ExtraHeaders: map[string]string{"anthropic-version": "2023-06-01"},
		},
		"google": {
			Name:       "google",
			BaseURL:    "https://generativelanguage.googleapis.com/v1beta",
			AuthHeader: "x-goog-api-key",
		},
	}
}

// Registry is the live vendor table. Lookups are lock-free; Replace swaps the
// whole table so a hot reload never exposes a half-built map.
type Registry struct {
	table atomic.Pointer[map[string]Vendor]
}

// NewRegistry creates a registry over vendors. The map is copied.
func NewRegistry(vendors map[string]Vendor) *Registry {
	r := &Registry{}
	r.Replace(vendors)
	return r
}

// Lookup returns the vendor registered under name.
func (r *Registry) Lookup(name string) (Vendor, bool) {
	t := r.table.Load()
	if t == nil {
		return Vendor{}, false
	}
	v, ok := (*t)[name]
	return v, ok
}

// Replace installs a new vendor table.
func (r *Registry) Replace(vendors map[string]Vendor) {
	t := make(map[string]Vendor, len(vendors))
	for name, v := range vendors {
		if v.Name == "" {
			v.Name = name
		}
		t[name] = v
	}
	r.table.Store(&t)
}

// Names returns the registered vendor names, sorted.
func (r *Registry) Names() []string {
	t := r.table.Load()
	if t == nil {
		return nil
	}
	names := make([]string, 0, len(*t))
	for name := range *t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
