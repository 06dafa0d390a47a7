// Package navigation restricts which URLs browser actions may load.
// Rules are glob patterns; denied patterns take precedence over allowed ones,
// and an empty allow list permits every URL that is not denied.
package navigation

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gobwas/glob"
)

// ErrBlocked is wrapped by every PolicyViolation.
var ErrBlocked = errors.New("navigation blocked")

// PolicyViolation reports a URL rejected by a Policy.
type PolicyViolation struct {
	URL     string
	Pattern string // the denied pattern that matched, empty if no allowed pattern matched
	Reason  string
}

func (e *PolicyViolation) Error() string {
	return fmt.Sprintf("%s: %q: %s", ErrBlocked, e.URL, e.Reason)
}

func (e *PolicyViolation) Is(target error) bool { return target == ErrBlocked }

type rule struct {
	pattern  string
	glob     glob.Glob
	hostOnly bool // no scheme in the pattern: matched against the host name
}

func (r rule) match(u *url.URL, normalized string) bool {
	if r.hostOnly {
		return r.glob.Match(u.Hostname())
	}
	return r.glob.Match(normalized)
}

// Policy decides whether a URL may be visited. A nil *Policy allows everything.
type Policy struct {
	allowed []rule
	denied  []rule
}

// NewPolicy compiles allow and deny patterns.
//
// Patterns containing "://" are matched against the URL without query or
// fragment, with "/" as the separator: "*" stays within one path segment and
// "**" spans several. Other patterns are matched against the host name only,
// with "." as the separator: "*.example.com" covers one level of subdomain
// and "**.example.com" any depth.
func NewPolicy(allowed, denied []string) (*Policy, error) {
	p := &Policy{}

	for _, pattern := range allowed {
		r, err := compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid allowed pattern '%s': %w", pattern, err)
		}
		p.allowed = append(p.allowed, r)
	}

	for _, pattern := range denied {
		r, err := compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid denied pattern '%s': %w", pattern, err)
		}
		p.denied = append(p.denied, r)
	}

	return p, nil
}

func compile(pattern string) (rule, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return rule{}, fmt.Errorf("pattern is empty")
	}

	if strings.Contains(pattern, "://") {
		g, err := glob.Compile(strings.ToLower(pattern), '/')
		if err != nil {
			return rule{}, err
		}
		return rule{pattern: pattern, glob: g}, nil
	}

	g, err := glob.Compile(strings.ToLower(pattern), '.')
	if err != nil {
		return rule{}, err
	}
	return rule{pattern: pattern, glob: g, hostOnly: true}, nil
}

// Check returns a *PolicyViolation if rawURL may not be visited.
// about: URLs such as about:blank are always allowed.
func (p *Policy) Check(rawURL string) error {
	if p == nil {
		return nil
	}

	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return &PolicyViolation{URL: rawURL, Reason: fmt.Sprintf("unparseable URL: %v", err)}
	}
	if u.Scheme == "about" {
		return nil
	}
	if u.Scheme == "" || u.Host == "" {
		return &PolicyViolation{URL: rawURL, Reason: "URL must be absolute (include scheme and host)"}
	}

	normalized := normalize(u)

	for _, r := range p.denied {
		if r.match(u, normalized) {
			return &PolicyViolation{URL: rawURL, Pattern: r.pattern, Reason: fmt.Sprintf("matches denied pattern '%s'", r.pattern)}
		}
	}

	if len(p.allowed) == 0 {
		return nil
	}
	for _, r := range p.allowed {
		if r.match(u, normalized) {
			return nil
		}
	}

	return &PolicyViolation{URL: rawURL, Reason: "does not match any allowed pattern"}
}

// IsAllowed reports whether rawURL passes Check.
func (p *Policy) IsAllowed(rawURL string) bool {
	return p.Check(rawURL) == nil
}

// normalize lowercases scheme and host, drops query and fragment, and
// gives an empty path a trailing slash.
func normalize(u *url.URL) string {
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + path
}
