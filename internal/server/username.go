// Package server applies the display-name policy: sanitization, character
// stripping, length capping, and reserved-name substitution.
package server

import (
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var nonAlphanumeric = regexp.MustCompile(`[^0-9A-Za-z]+`)

// namePolicy derives a usable display name from whatever a client submits.
// randInt is injectable so tests can pin the generated fallback names.
type namePolicy struct {
	sanitizer   *bluemonday.Policy
	admin       string
	hiddenAdmin string
	randInt     func(n int) int
}

func newNamePolicy(cfg Config) *namePolicy {
	policy := bluemonday.NewPolicy()
	for _, tag := range cfg.AllowedTags {
		if tag = strings.TrimSpace(tag); tag != "" {
			policy.AllowElements(tag)
		}
	}
	return &namePolicy{
		sanitizer:   policy,
		admin:       cfg.AdminName,
		hiddenAdmin: cfg.AdminHiddenName,
		randInt:     rand.IntN,
	}
}

// sanitizeText strips disallowed markup from a chat message body.
func (p *namePolicy) sanitizeText(raw string) string {
	return p.sanitizer.Sanitize(raw)
}

// derive cleans raw into a display name. The second return value is a notice
// payload the session must send to the client, or nil: either the generated
// substitute for an empty/reserved name, or the admin display confirmation
// for the hidden-admin token.
func (p *namePolicy) derive(raw string) (string, []byte) {
	name := p.sanitizer.Sanitize(raw)
	name = nonAlphanumeric.ReplaceAllString(name, "")
	if len(name) > 16 {
		name = name[:16]
	}

	switch {
	case name == "" || strings.EqualFold(name, p.admin):
		generated := "user" + strconv.Itoa(p.randInt(1000))
		return generated, mustMarshal(namePayload{Type: "usernameunavailable", Username: generated})
	case name == p.hiddenAdmin:
		return p.admin, mustMarshal(namePayload{Type: "displayeduser", Username: p.admin})
	default:
		return name, nil
	}
}
