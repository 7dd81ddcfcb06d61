package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// originPolicy decides which browser origins may open a relay socket.
// Entries are compared as lower-cased scheme://host. A "*" entry admits any
// well-formed origin; a request without an Origin header is always refused.
type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
	logger   *slog.Logger
}

func newOriginPolicy(origins []string, logger *slog.Logger) *originPolicy {
	p := &originPolicy{
		allowed: make(map[string]struct{}, len(origins)),
		logger:  logger,
	}
	for _, raw := range origins {
		entry := strings.TrimSpace(raw)
		switch {
		case entry == "":
		case entry == "*":
			p.allowAll = true
		default:
			key, ok := normalizeOrigin(entry)
			if !ok {
				logger.Warn("ignoring invalid origin in configuration", "origin", raw)
				continue
			}
			p.allowed[key] = struct{}{}
		}
	}
	return p
}

// normalizeOrigin reduces an origin or URL to scheme://host.
func normalizeOrigin(origin string) (string, bool) {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), true
}

func (p *originPolicy) allows(r *http.Request) bool {
	key, ok := normalizeOrigin(r.Header.Get("Origin"))
	if !ok {
		return false
	}
	if p.allowAll {
		return true
	}
	_, ok = p.allowed[key]
	return ok
}

// checkOrigin is the upgrader's CheckOrigin hook.
func (p *originPolicy) checkOrigin(r *http.Request) bool {
	if p.allows(r) {
		return true
	}
	p.logger.Warn("refused websocket upgrade", "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
	return false
}
