package sharing

import (
	"errors"
	"net/url"
	"strings"
)

// ShareTarget is the read-only view of a badge instance handed to providers.
type ShareTarget struct {
	// ShareURL is the absolute public URL of the badge instance.
	ShareURL string
	// BadgeClassName is the display name of the earned badge class.
	BadgeClassName string
}

// Options carries optional per-call parameters, typically parsed from query parameters.
type Options struct {
	Title   string
	Summary string
}

// BuildFunc produces a provider share URL for a target.
type BuildFunc func(target ShareTarget, opts Options) (string, error)

// ProviderRegistration binds a provider code to its URL builder.
type ProviderRegistration struct {
	Code        string
	DisplayName string
	Build       BuildFunc
}

// Dispatcher resolves provider codes to URL builders.
// It is immutable after construction and safe for concurrent use.
type Dispatcher struct {
	providers map[string]ProviderRegistration
	// Registration order for listings
	ordered []ProviderRegistration
}

// New builds a dispatcher from the given registrations.
// Returns an error if a registration has an empty code, no builder, or a code
// that collides case-insensitively with an earlier one.
func New(regs ...ProviderRegistration) (*Dispatcher, error) {
	d := &Dispatcher{
		providers: make(map[string]ProviderRegistration, len(regs)),
		ordered:   make([]ProviderRegistration, 0, len(regs)),
	}
	for _, reg := range regs {
		code := strings.ToLower(strings.TrimSpace(reg.Code))
		if code == "" {
			return nil, errors.New("provider code cannot be empty")
		}
		if reg.Build == nil {
			return nil, errors.New("provider builder cannot be nil: " + code)
		}
		if _, exists := d.providers[code]; exists {
			return nil, errors.New("provider already registered: " + code)
		}
		reg.Code = code
		d.providers[code] = reg
		d.ordered = append(d.ordered, reg)
	}
	return d, nil
}

// IsSupported reports whether code, in any letter casing, names a registered provider.
func (d *Dispatcher) IsSupported(code string) bool {
	_, ok := d.lookup(code)
	return ok
}

// BuildShareURL returns the outbound share URL for the provider named by code.
func (d *Dispatcher) BuildShareURL(code string, target ShareTarget, opts Options) (string, error) {
	reg, ok := d.lookup(code)
	if !ok {
		return "", &UnsupportedProviderError{Code: code}
	}
	if err := validateTarget(target); err != nil {
		return "", err
	}
	return reg.Build(target, opts)
}

// Providers returns the registrations in registration order.
func (d *Dispatcher) Providers() []ProviderRegistration {
	result := make([]ProviderRegistration, 0, len(d.ordered))
	result = append(result, d.ordered...)
	return result
}

func (d *Dispatcher) lookup(code string) (ProviderRegistration, bool) {
	if d == nil || code == "" {
		return ProviderRegistration{}, false
	}
	reg, ok := d.providers[strings.ToLower(code)]
	return reg, ok
}

func validateTarget(target ShareTarget) error {
	if strings.TrimSpace(target.ShareURL) == "" {
		return &InvalidTargetError{Reason: "share url is empty"}
	}
	parsed, err := url.Parse(target.ShareURL)
	if err != nil {
		return &InvalidTargetError{URL: target.ShareURL, Reason: err.Error()}
	}
	if !parsed.IsAbs() || parsed.Host == "" {
		return &InvalidTargetError{URL: target.ShareURL, Reason: "share url must be absolute"}
	}
	return nil
}
