package domain

import (
	"fmt"
	"strings"
)

// Provider identifies an external fitness-data service.
type Provider string

const (
	ProviderStrava Provider = "strava"
	ProviderGarmin Provider = "garmin"
)

// Providers lists every supported provider in a stable order.
var Providers = []Provider{ProviderStrava, ProviderGarmin}

func (p Provider) String() string {
	return string(p)
}

// Valid reports whether p is a supported provider.
func (p Provider) Valid() bool {
	switch p {
	case ProviderStrava, ProviderGarmin:
		return true
	}
	return false
}

// ParseProvider parses a provider name case-insensitively.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
	return p, nil
}
