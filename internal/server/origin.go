// Package server validates websocket upgrade origins against the configured
// allow-list.
package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

type originChecker struct {
	allowAll bool
	allowed  map[string]struct{}
	log      *slog.Logger
}

func newOriginChecker(origins []string, log *slog.Logger) *originChecker {
	c := &originChecker{allowed: make(map[string]struct{}), log: log}
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			c.allowAll = true
			continue
		}
		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			log.Warn("ignoring invalid origin in configuration", "origin", origin)
			continue
		}
		c.allowed[normalized] = struct{}{}
	}
	return c
}

// check allows requests without an Origin header (non-browser clients) and
// otherwise requires a configured match.
func (c *originChecker) check(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || c.allowAll {
		return true
	}

	normalized, ok := normalizeOrigin(origin)
	if ok {
		_, ok = c.allowed[normalized]
	}
	if !ok {
		c.log.Warn("blocked websocket upgrade from disallowed origin", "origin", origin)
	}
	return ok
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}
