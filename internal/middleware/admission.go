package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/pathlight-platform/gatekeeper/internal/audit"
	"github.com/pathlight-platform/gatekeeper/internal/correlate"
	"github.com/pathlight-platform/gatekeeper/internal/detect"
	"github.com/pathlight-platform/gatekeeper/internal/errs"
	"github.com/pathlight-platform/gatekeeper/internal/httputil"
	"github.com/pathlight-platform/gatekeeper/internal/logging"
	"github.com/pathlight-platform/gatekeeper/internal/metrics"
	"github.com/pathlight-platform/gatekeeper/internal/models"
	"github.com/pathlight-platform/gatekeeper/internal/ratelimit"
)

// maxInspectedBody caps how much of the request body the detector reads.
const maxInspectedBody = 1 << 20

// Gate is the admission check ahead of every protected endpoint: rate limit
// first (cheapest rejection), then suspicion assessment. Each denial writes
// exactly one audit entry.
type Gate struct {
	limiter    *ratelimit.Limiter
	detector   *detect.Detector
	writer     *audit.Writer
	correlator *correlate.Correlator
	logger     *logging.Logger
	timeout    time.Duration
}

func NewGate(limiter *ratelimit.Limiter, detector *detect.Detector, writer *audit.Writer,
	correlator *correlate.Correlator, logger *logging.Logger, timeout time.Duration) *Gate {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Gate{
		limiter:    limiter,
		detector:   detector,
		writer:     writer,
		correlator: correlator,
		logger:     logger,
		timeout:    timeout,
	}
}

// Admit wraps next with the admission pipeline for the given limit class.
func (g *Gate) Admit(class ratelimit.Class) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx, cancel := context.WithTimeout(r.Context(), g.timeout)
			defer cancel()
			r = r.WithContext(ctx)

			ip := httputil.ClientIP(r)
			userAgent := r.Header.Get("User-Agent")

			decision, err := g.limiter.Check(ctx, class, ip)
			if err != nil {
				g.fail(w, r, err)
				return
			}
			if !decision.Allowed {
				if decision.JustBlocked {
					result := g.writer.Write(ctx, audit.Record{
						Action:   models.ActionRateLimitExceeded,
						Resource: r.URL.Path,
						Details:  map[string]interface{}{"limit_class": string(class)},
						Severity: models.SeverityHigh,
						Category: models.CategorySecurityEvent,
					}, ActorID(ctx), ip, userAgent)
					g.correlator.Evaluate(ctx, result.Entry)
					g.logger.WarnContext(ctx, "client rate limited",
						logging.LimitClass(string(class)),
						logging.IP(ip),
						logging.Path(r.URL.Path),
					)
				}
				metrics.AdmissionDecisions.WithLabelValues("rate_limited").Inc()

				rule, _ := g.limiter.Rule(class)
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rule.Requests))
				w.Header().Set("X-RateLimit-Remaining", "0")
				httputil.WriteFailure(w, errs.RateLimited(decision.RetryAfter))
				return
			}

			payload, restore, err := peekBody(r)
			if err != nil {
				httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			r.Body = restore

			assessment, err := g.detector.Assess(ctx, ip, userAgent, payload+"\n"+r.URL.RawQuery)
			if err != nil {
				g.fail(w, r, err)
				return
			}

			switch assessment.Verdict {
			case detect.VerdictBlock:
				result := g.writer.Write(ctx, audit.Record{
					Action:   models.ActionPermissionDenied,
					Resource: r.URL.Path,
					Details: map[string]interface{}{
						"issues":   assessment.Issues,
						"patterns": assessment.Patterns,
					},
					Severity: models.SeverityHigh,
					Category: models.CategorySecurityEvent,
				}, ActorID(ctx), ip, userAgent)
				g.correlator.Evaluate(ctx, result.Entry)
				metrics.AdmissionDecisions.WithLabelValues("block").Inc()

				httputil.WriteFailure(w, errs.SecurityBlock())
				return

			case detect.VerdictChallenge:
				g.writer.Write(ctx, audit.Record{
					Action:   models.ActionValidationFailed,
					Resource: r.URL.Path,
					Details: map[string]interface{}{
						"issues":   assessment.Issues,
						"patterns": assessment.Patterns,
					},
					Severity: models.SeverityMedium,
					Category: models.CategorySecurityEvent,
				}, ActorID(ctx), ip, userAgent)
				metrics.AdmissionDecisions.WithLabelValues("challenge").Inc()

				httputil.WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
					"error":           "additional verification required",
					"code":            "VERIFICATION_REQUIRED",
					"issues":          assessment.Issues,
					"requiresCaptcha": assessment.RequiresCaptcha,
				})
				return
			}

			metrics.AdmissionDecisions.WithLabelValues("allow").Inc()
			metrics.PipelineDuration.Observe(time.Since(start).Seconds())
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			next.ServeHTTP(w, r)
		})
	}
}

// fail maps pipeline dependency errors: an exceeded admission deadline is
// retryable, everything else is an upstream failure.
func (g *Gate) fail(w http.ResponseWriter, r *http.Request, err error) {
	g.logger.ErrorContext(r.Context(), "admission check failed",
		logging.Path(r.URL.Path),
		logging.Error(err),
	)
	if errors.Is(err, context.DeadlineExceeded) {
		w.Header().Set("Retry-After", "1")
		httputil.WriteError(w, http.StatusServiceUnavailable, "request timed out, retry")
		return
	}
	httputil.WriteFailure(w, err)
}

// peekBody reads at most maxInspectedBody bytes for signature scanning and
// returns a replacement reader so the handler still sees the full body.
func peekBody(r *http.Request) (string, io.ReadCloser, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return "", r.Body, nil
	}
	buf, err := io.ReadAll(io.LimitReader(r.Body, maxInspectedBody))
	if err != nil {
		return "", nil, err
	}
	rest := r.Body
	return string(buf), struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(buf), rest), rest}, nil
}
