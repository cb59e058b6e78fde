// Package detect flags suspicious requests before they reach business logic.
// Signature matching is a defense-in-depth heuristic, not a substitute for
// parameterized queries or output encoding; false positives are expected and
// resolve to a challenge, not a hard block, unless the source is already
// disreputable.
package detect

import (
	"context"
	"strings"

	"github.com/pathlight-platform/gatekeeper/internal/metrics"
)

// Verdict is the detector's admission recommendation.
type Verdict int

const (
	// VerdictAllow admits the request.
	VerdictAllow Verdict = iota
	// VerdictChallenge admits only after additional verification (CAPTCHA-equivalent).
	VerdictChallenge
	// VerdictBlock denies the request before business logic.
	VerdictBlock
)

// Assessment carries the verdict and the signals behind it. Patterns holds
// matched signature names only, never payload fragments.
type Assessment struct {
	Verdict         Verdict
	Issues          []string
	Patterns        []string
	RequiresCaptcha bool
}

// hardBlockFailures is the failure count past which a source is denied outright.
const hardBlockFailures = 10

// challengeFailures is the failure count past which a source must pass
// additional verification.
const challengeFailures = 3

type Detector struct {
	patterns   []pattern
	reputation ReputationStore
}

func New(reputation ReputationStore) *Detector {
	return &Detector{
		patterns:   compilePatterns(),
		reputation: reputation,
	}
}

// Scan matches the raw payload against every signature and returns the names
// of those that hit, in registration order.
func (d *Detector) Scan(payload string) []string {
	if payload == "" {
		return nil
	}
	var matched []string
	for _, p := range d.patterns {
		if p.re.MatchString(payload) {
			matched = append(matched, p.name)
			metrics.DetectorMatches.WithLabelValues(p.category).Inc()
		}
	}
	return matched
}

// RecordAuthFailure increments the failure counter for the originating IP.
// Crossing the threshold adds the IP to the suspicious set.
func (d *Detector) RecordAuthFailure(ctx context.Context, ip string) (int, error) {
	return d.reputation.RecordFailure(ctx, ip)
}

// Assess combines signature matches, source reputation, and user-agent
// heuristics into a verdict for one request.
func (d *Detector) Assess(ctx context.Context, ip, userAgent, payload string) (Assessment, error) {
	a := Assessment{}

	if matched := d.Scan(payload); len(matched) > 0 {
		a.Patterns = matched
		a.Issues = append(a.Issues, "request matches known attack signatures")
	}

	suspicious, err := d.reputation.IsSuspicious(ctx, ip)
	if err != nil {
		return a, err
	}
	if suspicious {
		a.Issues = append(a.Issues, "source address is flagged for repeated failures")
	}

	failures, err := d.reputation.Failures(ctx, ip)
	if err != nil {
		return a, err
	}

	if issue := inspectUserAgent(userAgent); issue != "" {
		a.Issues = append(a.Issues, issue)
	}

	switch {
	case failures > hardBlockFailures || suspicious:
		a.Verdict = VerdictBlock
	case failures > challengeFailures || len(a.Issues) > 1 || len(a.Patterns) > 0:
		a.Verdict = VerdictChallenge
		a.RequiresCaptcha = true
	default:
		a.Verdict = VerdictAllow
	}
	return a, nil
}

func inspectUserAgent(userAgent string) string {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" {
		return "missing user agent"
	}
	if len(ua) < 10 {
		return "abnormally short user agent"
	}
	for _, sig := range automationAgents {
		if strings.Contains(ua, sig) {
			return "automation user agent"
		}
	}
	return ""
}
