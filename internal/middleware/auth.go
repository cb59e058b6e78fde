package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/pathlight-platform/gatekeeper/internal/audit"
	"github.com/pathlight-platform/gatekeeper/internal/correlate"
	"github.com/pathlight-platform/gatekeeper/internal/errs"
	"github.com/pathlight-platform/gatekeeper/internal/httputil"
	"github.com/pathlight-platform/gatekeeper/internal/models"
	"github.com/pathlight-platform/gatekeeper/pkg/tokens"
)

type contextKey string

const identityKey = contextKey("identity")

// Identity is the resolved caller: user ID plus roles from the bearer token.
type Identity struct {
	UserID string
	Roles  []string
}

// HasRole reports whether the identity carries any of the given roles.
func (id *Identity) HasRole(roles ...string) bool {
	for _, want := range roles {
		for _, have := range id.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// AdminRoles may read the audit trail.
var AdminRoles = []string{"administrator", "super_user", "platform_operator"}

// IdentityFromContext extracts the caller identity, if authenticated.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok
}

// ActorID returns the caller's user ID as a nullable audit actor.
func ActorID(ctx context.Context) *string {
	if id, ok := IdentityFromContext(ctx); ok {
		return &id.UserID
	}
	return nil
}

type AuthMiddleware struct {
	verifier   *tokens.Verifier
	writer     *audit.Writer
	correlator *correlate.Correlator
}

func NewAuthMiddleware(verifier *tokens.Verifier, writer *audit.Writer, correlator *correlate.Correlator) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, writer: writer, correlator: correlator}
}

// Identify resolves a bearer token into the request context when present.
// A malformed or expired token is rejected; a missing one leaves the request
// anonymous so pre-auth actions stay loggable.
func (m *AuthMiddleware) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.WriteFailure(w, errs.Auth())
			return
		}

		claims, err := m.verifier.Verify(parts[1])
		if err != nil {
			httputil.WriteFailure(w, errs.Auth())
			return
		}

		identity := &Identity{UserID: claims.UserID, Roles: claims.Roles}
		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth rejects anonymous requests.
func (m *AuthMiddleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			httputil.WriteFailure(w, errs.Auth())
			return
		}
		next.ServeHTTP(w, r)
	}
}

// RequireRole rejects callers lacking every listed role. The denial itself is
// audited and fed to the correlator before the 403 goes out.
func (m *AuthMiddleware) RequireRole(roles ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
			identity, _ := IdentityFromContext(r.Context())
			if !identity.HasRole(roles...) {
				result := m.writer.Write(r.Context(), audit.Record{
					Action:   models.ActionPermissionDenied,
					Resource: r.URL.Path,
					Details:  map[string]interface{}{"required_roles": strings.Join(roles, ",")},
					Severity: models.SeverityMedium,
					Category: models.CategoryAuthorization,
				}, &identity.UserID, httputil.ClientIP(r), r.Header.Get("User-Agent"))
				m.correlator.Evaluate(r.Context(), result.Entry)

				httputil.WriteFailure(w, errs.Forbidden())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
