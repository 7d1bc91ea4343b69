// Package origin implements the browser Origin policy for the signaling
// WebSocket and the meeting REST API.
//
// With no configured allowlist the policy is same-host: the Origin's
// host[:port] must match the request's Host header. Scheme is deliberately
// not compared, since a TLS-terminating proxy in front of the relay makes
// the request look like HTTP while the browser Origin says HTTPS.
package origin

import (
	"net/url"
	"strconv"
	"strings"
)

// Policy decides whether a browser origin may use the relay.
type Policy struct {
	allowAll bool
	allowed  map[string]struct{}
}

// NewPolicy builds a policy from configured origins. Entries must be
// normalized origins ("https://meet.example.com[:port]") or "*". An empty
// list means same-host only.
func NewPolicy(allowedOrigins []string) *Policy {
	p := &Policy{allowed: make(map[string]struct{}, len(allowedOrigins))}
	for _, o := range allowedOrigins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if o == "*" {
			p.allowAll = true
			continue
		}
		if norm, _, ok := Normalize(o); ok {
			p.allowed[norm] = struct{}{}
		}
	}
	return p
}

// Allow reports whether the given Origin header may access a request whose
// Host header is requestHost. A missing Origin header is allowed: non-browser
// clients do not send one.
func (p *Policy) Allow(originHeader, requestHost string) bool {
	_, ok := p.Check(originHeader, requestHost)
	return ok
}

// Check is Allow plus the parsed result: it returns the canonical form of an
// allowed Origin header, suitable for echoing in CORS response headers, so
// callers that need both never parse the header twice. An allowed empty
// header yields an empty normalized origin.
func (p *Policy) Check(originHeader, requestHost string) (normalized string, ok bool) {
	if strings.TrimSpace(originHeader) == "" {
		return "", true
	}
	norm, host, ok := Normalize(originHeader)
	if !ok {
		return "", false
	}

	if p.allowAll {
		return norm, true
	}
	if len(p.allowed) > 0 {
		_, ok := p.allowed[norm]
		if !ok {
			return "", false
		}
		return norm, true
	}

	// Same-host default. "null" origins (sandboxed iframes, file://) never
	// match a host.
	if host == "" {
		return "", false
	}
	reqHostname, reqPort, ok := splitHostPort(strings.ToLower(strings.TrimSpace(requestHost)))
	if !ok {
		return "", false
	}
	if host != canonicalHost(reqHostname, reqPort, strings.HasPrefix(norm, "https://")) {
		return "", false
	}
	return norm, true
}

// Normalize validates an Origin header and returns its canonical form
// (scheme://host[:port], default ports stripped) plus the host[:port] part.
// The special value "null" normalizes to itself with an empty host.
func Normalize(originHeader string) (normalized, host string, ok bool) {
	trimmed := strings.TrimSpace(originHeader)
	if trimmed == "" {
		return "", "", false
	}
	if trimmed == "null" {
		return "null", "", true
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" || u.User != nil || u.RawQuery != "" || u.Fragment != "" {
		return "", "", false
	}
	if u.Path != "" && u.Path != "/" {
		return "", "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", "", false
	}

	hostname, port, ok := splitHostPort(strings.ToLower(u.Host))
	if !ok || hostname == "" {
		return "", "", false
	}

	host = canonicalHost(hostname, port, scheme == "https")
	if host == "" {
		return "", "", false
	}
	return scheme + "://" + host, host, true
}

// canonicalHost rebuilds host[:port], bracketing IPv6 literals and dropping
// the scheme's default port. An invalid port yields "".
func canonicalHost(hostname, port string, https bool) string {
	var portNum uint64
	if port != "" {
		n, err := strconv.ParseUint(port, 10, 16)
		if err != nil || n == 0 {
			return ""
		}
		portNum = n
	}
	if (https && portNum == 443) || (!https && portNum == 80) {
		portNum = 0
	}

	host := hostname
	if strings.Contains(hostname, ":") {
		host = "[" + hostname + "]"
	}
	if portNum != 0 {
		host += ":" + strconv.FormatUint(portNum, 10)
	}
	return host
}

func splitHostPort(raw string) (hostname, port string, ok bool) {
	if raw == "" {
		return "", "", false
	}

	if strings.HasPrefix(raw, "[") {
		end := strings.IndexByte(raw, ']')
		if end < 0 {
			return "", "", false
		}
		hostname = raw[1:end]
		rest := raw[end+1:]
		if rest == "" {
			return hostname, "", true
		}
		if !strings.HasPrefix(rest, ":") || len(rest) == 1 {
			return "", "", false
		}
		return hostname, rest[1:], true
	}

	switch strings.Count(raw, ":") {
	case 0:
		return raw, "", true
	case 1:
		host, port, _ := strings.Cut(raw, ":")
		if host == "" || port == "" {
			return "", "", false
		}
		return host, port, true
	default:
		// Unbracketed IPv6 is not valid in an authority.
		return "", "", false
	}
}
