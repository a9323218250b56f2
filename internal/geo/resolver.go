package geo

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"linkpulse/internal/config"
	"linkpulse/internal/pkg/geoip"
)

// DefaultTimeout bounds each provider call.
const DefaultTimeout = 5 * time.Second

// Resolver tries its providers in order and returns the first success.
type Resolver struct {
	providers []Provider
	timeout   time.Duration
	logger    *slog.Logger
}

// NewResolver builds a resolver over providers. A non-positive timeout uses DefaultTimeout.
func NewResolver(logger *slog.Logger, timeout time.Duration, providers ...Provider) *Resolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Resolver{providers: providers, timeout: timeout, logger: logger}
}

// NewResolverFromConfig wires the providers named in the configuration.
// geolite is skipped when no database could be loaded.
func NewResolverFromConfig(cfg *config.Config, logger *slog.Logger) *Resolver {
	client := &http.Client{Timeout: cfg.GetGeoLookupTimeout()}

	var providers []Provider
	for _, name := range cfg.GetGeoProviders() {
		switch name {
		case "geolite":
			if geoip.Available() {
				providers = append(providers, &GeoLiteProvider{})
			}
		case "ip-api":
			providers = append(providers, &IPAPIProvider{Client: client})
		case "ipapi.co":
			providers = append(providers, &IPAPICoProvider{Client: client})
		case "ipinfo":
			providers = append(providers, &IPInfoProvider{Client: client})
		default:
			logger.Warn("Ignoring unknown geolocation provider", slog.String("provider", name))
		}
	}

	return NewResolver(logger, cfg.GetGeoLookupTimeout(), providers...)
}

// Providers returns the provider names in lookup order.
func (r *Resolver) Providers() []string {
	names := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		names = append(names, p.Name())
	}
	return names
}

// Lookup resolves ip. Loopback and empty addresses get LocalLocation without
// any provider call. When every provider fails the result is empty.
func (r *Resolver) Lookup(ctx context.Context, ip string) Location {
	if IsLocal(ip) {
		return LocalLocation()
	}

	for _, provider := range r.providers {
		loc, err := r.try(ctx, provider, ip)
		if err != nil {
			r.logger.Warn("Geolocation provider failed",
				slog.String("provider", provider.Name()),
				slog.String("ip", MaskIP(ip)),
				slog.Any("error", err))
			continue
		}
		return *loc
	}

	r.logger.Error("All geolocation providers failed", slog.String("ip", MaskIP(ip)))
	return Location{}
}

func (r *Resolver) try(ctx context.Context, provider Provider, ip string) (loc *Location, err error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	loc, err = provider.Lookup(callCtx, ip)
	if err == nil && loc == nil {
		err = ErrNotResolved
	}
	return loc, err
}
