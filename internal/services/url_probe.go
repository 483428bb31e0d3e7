package services

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const probeTimeout = 5 * time.Second

// ProbeResult reports whether a link is reachable and safe to surface.
type ProbeResult struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// Resolver is the subset of net.Resolver the probe needs.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// URLProbe checks user-supplied links before the UI renders them as safe.
// It refuses anything that would reach into the deployment's own network.
type URLProbe struct {
	client   *http.Client
	resolver Resolver
}

// NewURLProbe constructs a URLProbe with production defaults.
func NewURLProbe() *URLProbe {
	return &URLProbe{
		client:   &http.Client{Timeout: probeTimeout},
		resolver: net.DefaultResolver,
	}
}

// NewURLProbeWith allows injecting the HTTP client and resolver.
func NewURLProbeWith(client *http.Client, resolver Resolver) *URLProbe {
	probe := NewURLProbe()
	if client != nil {
		probe.client = client
	}
	if resolver != nil {
		probe.resolver = resolver
	}
	return probe
}

// Validate checks the target URL. Every failure mode comes back as a result
// with a reason rather than an error; only the caller's context failing is
// exceptional.
func (p *URLProbe) Validate(ctx context.Context, raw string) ProbeResult {
	ctx = ensureContext(ctx)

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ProbeResult{Reason: "url is required"}
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return ProbeResult{Reason: "url does not parse"}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ProbeResult{Reason: "only http and https urls are allowed"}
	}
	host := parsed.Hostname()
	if host == "" {
		return ProbeResult{Reason: "url has no host"}
	}

	// Resolve before fetching so a hostname pointing at internal ranges is
	// caught up front.
	resolveCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	addrs, err := p.resolver.LookupIPAddr(resolveCtx, host)
	if err != nil || len(addrs) == 0 {
		return ProbeResult{Reason: "host does not resolve"}
	}
	for _, addr := range addrs {
		if reason := blockedAddress(addr.IP); reason != "" {
			return ProbeResult{Reason: reason}
		}
	}

	reqCtx, cancelReq := context.WithTimeout(ctx, probeTimeout)
	defer cancelReq()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return ProbeResult{Reason: "url does not parse"}
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return ProbeResult{Reason: "host is unreachable"}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return ProbeResult{OK: true}
	}
	return ProbeResult{Reason: fmt.Sprintf("host answered with status %d", resp.StatusCode)}
}

// blockedAddress names why an IP must not be fetched, or returns "".
func blockedAddress(ip net.IP) string {
	switch {
	case ip.IsLoopback():
		return "url resolves to a loopback address"
	case ip.IsPrivate():
		return "url resolves to a private address"
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return "url resolves to a link-local address"
	case ip.IsUnspecified():
		return "url resolves to an unspecified address"
	}
	return ""
}
