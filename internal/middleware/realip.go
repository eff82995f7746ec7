package middleware

import (
	"net"
	"net/http"
	"strings"
)

// RealIP resolves the client address of requests arriving through trusted
// proxies and stores it in the X-Real-IP header. Forwarding headers from
// untrusted peers are ignored so clients cannot spoof their address, which
// the rate limiter keys on.
type RealIP struct {
	trustedNets []*net.IPNet
	trustedIPs  []net.IP
}

// NewRealIP accepts IP addresses ("192.168.1.1") and CIDRs ("10.0.0.0/8").
// Malformed entries are skipped.
func NewRealIP(trustedProxies []string) *RealIP {
	m := &RealIP{}

	for _, proxy := range trustedProxies {
		proxy = strings.TrimSpace(proxy)
		if proxy == "" {
			continue
		}

		if strings.Contains(proxy, "/") {
			if _, network, err := net.ParseCIDR(proxy); err == nil {
				m.trustedNets = append(m.trustedNets, network)
			}
			continue
		}

		if ip := net.ParseIP(proxy); ip != nil {
			m.trustedIPs = append(m.trustedIPs, ip)
		}
	}

	return m
}

// Handler returns the middleware handler
func (m *RealIP) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del("X-Real-IP")
		if ip := m.resolve(r); ip != "" {
			r.Header.Set("X-Real-IP", ip)
		}
		next.ServeHTTP(w, r)
	})
}

func (m *RealIP) resolve(r *http.Request) string {
	remoteIP := hostOnly(r.RemoteAddr)
	if !m.trusted(remoteIP) {
		return remoteIP
	}

	if cfIP := r.Header.Get("CF-Connecting-IP"); cfIP != "" {
		return strings.TrimSpace(cfIP)
	}

	// First entry of X-Forwarded-For is the original client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	return remoteIP
}

func (m *RealIP) trusted(ipStr string) bool {
	if len(m.trustedNets) == 0 && len(m.trustedIPs) == 0 {
		return false
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}

	for _, network := range m.trustedNets {
		if network.Contains(ip) {
			return true
		}
	}
	for _, trustedIP := range m.trustedIPs {
		if trustedIP.Equal(ip) {
			return true
		}
	}
	return false
}

func hostOnly(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
