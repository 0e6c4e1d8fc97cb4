package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/frahmantamala/ward-census/internal"
)

// TrustedProxies decides which peers may speak for the client through
// X-Forwarded-For and X-Real-IP. A nil value trusts no one.
type TrustedProxies struct {
	nets []*net.IPNet
}

// ParseTrustedProxies accepts CIDR ranges and bare addresses.
func ParseTrustedProxies(entries []string) (*TrustedProxies, error) {
	tp := &TrustedProxies{}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.Contains(e, "/") {
			ip := net.ParseIP(e)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", e)
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			tp.nets = append(tp.nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(e)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", e, err)
		}
		tp.nets = append(tp.nets, n)
	}
	return tp, nil
}

func (tp *TrustedProxies) trusts(addr string) bool {
	if tp == nil {
		return false
	}
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, n := range tp.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// Resolve returns the client address. Forwarding headers are read only
// when the socket peer is trusted, and X-Forwarded-For is walked from the
// right so a client cannot choose its own address by prepending hops.
func (tp *TrustedProxies) Resolve(r *http.Request) string {
	peer := remoteHost(r)
	if !tp.trusts(peer) {
		return peer
	}

	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		hops := strings.Split(fwd, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if net.ParseIP(hop) == nil {
				break
			}
			if !tp.trusts(hop) {
				return hop
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(ip) != nil {
		return ip
	}
	return peer
}

// ClientIP returns the address ClientInfo resolved for the request, or the
// socket peer when the request did not pass through it.
func ClientIP(r *http.Request) string {
	if ip, _ := internal.ClientFromContext(r.Context()); ip != "" {
		return ip
	}
	return remoteHost(r)
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
