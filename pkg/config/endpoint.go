package config

import (
	"net/netip"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// validateEndpoint checks that a provider base URL is a sane outbound target
// before any request is made. Providers marked allow_insecure may point at
// plain-HTTP or local-network endpoints, e.g. a local inference proxy.
func validateEndpoint(rawURL string, allowInsecure bool) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrapf(err, "invalid base_url %s", rawURL)
	}

	switch parsed.Scheme {
	case "https":
	case "http":
		if !allowInsecure {
			return errors.Errorf("base_url %s uses http, set allow_insecure to permit it", rawURL)
		}
	default:
		return errors.Errorf("base_url %s has unsupported scheme %q", rawURL, parsed.Scheme)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return errors.Errorf("base_url %s has no host", rawURL)
	}

	if !allowInsecure {
		if host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local") {
			return errors.Errorf("base_url host %s is local, set allow_insecure to permit it", host)
		}
	}

	// IP literals are checked without DNS lookups.
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return nil
	}
	if addr.Zone() != "" && !allowInsecure {
		return errors.Errorf("base_url host %s is a zoned address", host)
	}
	addr = addr.Unmap()
	if addr.IsUnspecified() || addr.IsMulticast() {
		return errors.Errorf("base_url host %s is not routable", host)
	}
	if !allowInsecure {
		if addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() {
			return errors.Errorf("base_url host %s is on a local network, set allow_insecure to permit it", host)
		}
	}
	return nil
}
