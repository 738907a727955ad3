package config

import (
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/keyproxy/internal/upstream"
)

// AuthSchemeNone in vendors.<name>.auth_scheme sends the raw key.
const AuthSchemeNone = "none"

// NormalizeVendorName lowercases and trims a user-provided vendor name.
func NormalizeVendorName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateVendorName checks that name is a slug usable as a /v1/<vendor> segment.
func ValidateVendorName(name string) error {
	if !upstream.ValidName(name) {
		return fmt.Errorf("invalid vendor name %q: lowercase letters, digits and hyphens only", name)
	}
	return nil
}

// VendorTable merges the configured vendors over the built-in table.
// A configured vendor either overrides fields of a built-in one, adds a new
// one (defaulting to Authorization: Bearer), or removes it with disabled.
func (c *Config) VendorTable() map[string]upstream.Vendor {
	table := upstream.DefaultVendors()
	for name, vc := range c.Vendors {
		if vc.Disabled {
			delete(table, name)
			continue
		}
		v, ok := table[name]
		if !ok {
			if vc.BaseURL == "" {
				continue
			}
			v = upstream.Vendor{Name: name, AuthHeader: "Authorization", AuthScheme: "Bearer"}
		}
		if vc.BaseURL != "" {
			v.BaseURL = vc.BaseURL
		}
		if vc.AuthHeader != "" {
			v.AuthHeader = vc.AuthHeader
		}
		switch vc.AuthScheme {
		case "":
		case AuthSchemeNone:
			v.AuthScheme = ""
		default:
			v.AuthScheme = vc.AuthScheme
		}
		if len(vc.Headers) > 0 {
			merged := make(map[string]string, len(v.ExtraHeaders)+len(vc.Headers))
			for k, val := range v.ExtraHeaders {
				merged[k] = val
			}
			for k, val := range vc.Headers {
				merged[k] = val
			}
			v.ExtraHeaders = merged
		}
		table[name] = v
	}
	return table
}
