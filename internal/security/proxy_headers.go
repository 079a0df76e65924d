// Package security 处理反向代理头与 WebSocket 来源校验。
package security

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
)

// ParsePrefixes 解析可信代理网段；单个 IP 视为 /32 或 /128。
func ParsePrefixes(cidrs []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(cidrs))
	for _, raw := range cidrs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if pfx, err := netip.ParsePrefix(raw); err == nil {
			out = append(out, pfx.Masked())
			continue
		}
		ip, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("无效的代理网段 %q", raw)
		}
		out = append(out, netip.PrefixFrom(ip, ip.BitLen()))
	}
	return out, nil
}

// DeriveBaseURLFromRequest 推断浏览器看到的站点地址（scheme://host）。
//
// 仅当 trustProxyHeaders=true 且请求来源命中 trustedProxies 时才采用 X-Forwarded-*；
// X-Forwarded-Proto 只接受 http/https，X-Forwarded-Host 只接受纯 host[:port]。
func DeriveBaseURLFromRequest(r *http.Request, trustProxyHeaders bool, trustedProxies []netip.Prefix) string {
	if r == nil {
		return ""
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	host := strings.TrimSpace(r.Host)
	if host == "" && r.URL != nil {
		host = strings.TrimSpace(r.URL.Host)
	}

	if trustProxyHeaders && isTrustedProxyRequest(r, trustedProxies) {
		if proto, ok := forwardedProto(r.Header.Get("X-Forwarded-Proto")); ok {
			scheme = proto
		}
		if h, ok := forwardedHost(r.Header.Get("X-Forwarded-Host")); ok {
			host = h
		}
	}

	if host == "" {
		return ""
	}
	return scheme + "://" + strings.ToLower(host)
}

// OriginPolicy 决定 WebSocket 握手的 Origin 是否可接受：
// 命中 Allowed 列表，或与请求推断出的站点地址一致（同源）。
type OriginPolicy struct {
	Allowed           []string
	TrustProxyHeaders bool
	TrustedProxies    []netip.Prefix
}

// Check 可直接用作 websocket.Upgrader.CheckOrigin。没有 Origin 头的请求来自非浏览器客户端，放行。
func (p OriginPolicy) Check(r *http.Request) bool {
	raw := strings.TrimSpace(r.Header.Get("Origin"))
	if raw == "" {
		return true
	}
	origin, ok := normalizeOrigin(raw)
	if !ok {
		return false
	}
	for _, a := range p.Allowed {
		if allowed, ok := normalizeOrigin(a); ok && allowed == origin {
			return true
		}
	}
	return origin == DeriveBaseURLFromRequest(r, p.TrustProxyHeaders, p.TrustedProxies)
}

func normalizeOrigin(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(raw), "/"))
	if err != nil || u.Host == "" {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	return scheme + "://" + strings.ToLower(u.Host), true
}

func isTrustedProxyRequest(r *http.Request, trustedProxies []netip.Prefix) bool {
	if r == nil {
		return false
	}
	if len(trustedProxies) == 0 {
		return false
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		host = strings.TrimSpace(r.RemoteAddr)
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	for _, pfx := range trustedProxies {
		if pfx.Contains(ip.Unmap()) {
			return true
		}
	}
	return false
}

func forwardedProto(raw string) (string, bool) {
	v := strings.ToLower(firstForwardedToken(raw))
	switch v {
	case "http", "https":
		return v, true
	default:
		return "", false
	}
}

func forwardedHost(raw string) (string, bool) {
	v := firstForwardedToken(raw)
	if v == "" {
		return "", false
	}
	if strings.ContainsAny(v, " \t\r\n/\\") {
		return "", false
	}

	u, err := url.Parse("http://" + v)
	if err != nil {
		return "", false
	}
	if u.Host == "" || u.User != nil || u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		return "", false
	}
	if !strings.EqualFold(u.Host, v) {
		return "", false
	}
	return v, true
}

func firstForwardedToken(raw string) string {
	v := strings.TrimSpace(raw)
	if idx := strings.IndexByte(v, ','); idx >= 0 {
		v = v[:idx]
	}
	return strings.TrimSpace(v)
}
