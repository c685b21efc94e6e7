package fetch

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Hostnames that are never fetchable regardless of DNS.
var blockedHostnames = map[string]bool{
	"localhost":                true,
	"localhost.localdomain":    true,
	"metadata.google.internal": true,
	"kubernetes.default":       true,
	"kubernetes.default.svc":   true,
}

var blockedHostSuffixes = []string{".local", ".internal", ".localhost"}

// ValidateURL rejects URLs that could reach internal infrastructure. The
// scheme must be http or https, the hostname must not name a known internal
// service, and neither an IP literal nor any resolved address may fall in a
// private, loopback, link-local, or otherwise non-public range. DNS failure
// is tolerated; the fetch itself will surface it.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("URL has no host")
	}
	if blockedHostnames[host] {
		return fmt.Errorf("host %q is not fetchable", host)
	}
	for _, suffix := range blockedHostSuffixes {
		if strings.HasSuffix(host, suffix) {
			return fmt.Errorf("host %q is not fetchable", host)
		}
	}

	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return fmt.Errorf("IP %s is in a blocked range", ip)
		}
		return nil
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return nil
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return fmt.Errorf("host %q resolves to blocked address %s", host, ip)
		}
	}
	return nil
}

// isPrivateIP reports whether the address falls in a range a content fetch
// must never reach.
func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsPrivate() || ip.IsUnspecified() {
		return true
	}
	if ip.Equal(net.IPv4bcast) {
		return true
	}
	for _, cidr := range blockedCIDRs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

var blockedCIDRs = mustParseCIDRs(
	"100.64.0.0/10",   // Carrier-grade NAT
	"192.0.2.0/24",    // Documentation (TEST-NET-1)
	"198.51.100.0/24", // Documentation (TEST-NET-2)
	"203.0.113.0/24",  // Documentation (TEST-NET-3)
	"fc00::/7",        // IPv6 unique-local
	"2001:db8::/32",   // IPv6 documentation
)

func mustParseCIDRs(blocks ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(blocks))
	for _, block := range blocks {
		_, cidr, err := net.ParseCIDR(block)
		if err != nil {
			panic(fmt.Sprintf("bad builtin CIDR %q: %v", block, err))
		}
		nets = append(nets, cidr)
	}
	return nets
}
