package mw

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP resolves the address of the caller. Behind a trusted proxy it
// prefers CF-Connecting-IP, then the left-most X-Forwarded-For entry, then
// X-Real-IP. Otherwise only RemoteAddr counts, since the headers are
// client-controlled.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		for _, v := range []string{
			r.Header.Get("CF-Connecting-IP"),
			firstForwardedFor(r.Header.Get("X-Forwarded-For")),
			r.Header.Get("X-Real-IP"),
		} {
			if ip := hostNoPort(strings.TrimSpace(v)); ip != "" {
				return ip
			}
		}
	}
	return hostNoPort(r.RemoteAddr)
}

func firstForwardedFor(xff string) string {
	first, _, _ := strings.Cut(xff, ",")
	return strings.TrimSpace(first)
}

// hostNoPort accepts "ip", "ip:port" and "[v6]:port".
func hostNoPort(s string) string {
	if h, _, err := net.SplitHostPort(s); err == nil {
		return h
	}
	return s
}

// prefixSet matches addresses against single IPs and CIDR ranges.
type prefixSet []netip.Prefix

// parsePrefixes returns the entries that are neither an IP nor a CIDR
// separately.
func parsePrefixes(list []string) (prefixSet, []string) {
	var (
		set     prefixSet
		invalid []string
	)
	for _, raw := range list {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		if p, err := netip.ParsePrefix(s); err == nil {
			set = append(set, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(s); err == nil {
			set = append(set, netip.PrefixFrom(a, a.BitLen()))
			continue
		}
		invalid = append(invalid, s)
	}
	return set, invalid
}

func (s prefixSet) contains(ip string) bool {
	a, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	a = a.Unmap()
	for _, p := range s {
		if p.Contains(a) {
			return true
		}
	}
	return false
}
