package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathlight-platform/gatekeeper/internal/audit"
	"github.com/pathlight-platform/gatekeeper/internal/correlate"
	"github.com/pathlight-platform/gatekeeper/internal/logging"
	"github.com/pathlight-platform/gatekeeper/internal/models"
	"github.com/pathlight-platform/gatekeeper/internal/repository"
	"github.com/pathlight-platform/gatekeeper/pkg/tokens"
)

const authTestSecret = "auth-test-secret"

type authFixture struct {
	mw       *AuthMiddleware
	verifier *tokens.Verifier
	repo     *repository.InMemoryRepository
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	repo := repository.NewInMemoryRepository()
	logger := logging.Default()
	writer := audit.NewWriter("test-secret", repo, logger)
	verifier := tokens.NewVerifier(authTestSecret)
	return &authFixture{
		mw:       NewAuthMiddleware(verifier, writer, correlate.New(repo, nil, logger)),
		verifier: verifier,
		repo:     repo,
	}
}

func (f *authFixture) token(t *testing.T, userID string, roles ...string) string {
	t.Helper()
	token, err := f.verifier.Sign(userID, roles, time.Hour)
	require.NoError(t, err)
	return token
}

func TestIdentify(t *testing.T) {
	f := newAuthFixture(t)

	var identity *Identity
	var present bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, present = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	t.Run("valid token resolves identity", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+f.token(t, "user-1", "student"))
		rec := httptest.NewRecorder()

		f.mw.Identify(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.True(t, present)
		assert.Equal(t, "user-1", identity.UserID)
		assert.Equal(t, []string{"student"}, identity.Roles)
	})

	t.Run("missing header stays anonymous", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		f.mw.Identify(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, present)
	})

	t.Run("malformed header rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Token abc")
		rec := httptest.NewRecorder()

		f.mw.Identify(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bad signature rejected", func(t *testing.T) {
		other := tokens.NewVerifier("wrong-secret")
		token, err := other.Sign("user-1", nil, time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		f.mw.Identify(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token rejected", func(t *testing.T) {
		token, err := f.verifier.Sign("user-1", nil, -time.Minute)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		f.mw.Identify(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireAuth(t *testing.T) {
	f := newAuthFixture(t)
	next := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

	t.Run("anonymous rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		f.mw.RequireAuth(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("authenticated passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+f.token(t, "user-1"))
		rec := httptest.NewRecorder()
		f.mw.Identify(f.mw.RequireAuth(next)).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRequireRole(t *testing.T) {
	f := newAuthFixture(t)
	next := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }
	protected := f.mw.Identify(f.mw.RequireRole(AdminRoles...)(next))

	t.Run("admin passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil)
		req.Header.Set("Authorization", "Bearer "+f.token(t, "admin-1", "administrator"))
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("denial audited with actor and resource", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil)
		req.Header.Set("Authorization", "Bearer "+f.token(t, "student-1", "student"))
		req.RemoteAddr = "10.0.0.5:40000"
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)

		logs, _, err := f.repo.QueryAuditEntries(context.Background(), models.AuditQuery{
			Action: models.ActionPermissionDenied,
			Limit:  10,
		})
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, "student-1", *logs[0].ActorID)
		assert.Equal(t, "/api/v1/audit", logs[0].Resource)
		assert.Equal(t, models.CategoryAuthorization, logs[0].Category)
		assert.Equal(t, "10.0.0.5", logs[0].IPAddress)
	})

	t.Run("anonymous rejected before role check", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil)
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestIdentityHasRole(t *testing.T) {
	id := &Identity{UserID: "u", Roles: []string{"student", "mentor"}}
	assert.True(t, id.HasRole("mentor"))
	assert.True(t, id.HasRole("administrator", "student"))
	assert.False(t, id.HasRole("administrator"))
	assert.False(t, (&Identity{}).HasRole("student"))
}

func TestSecurityHeaders(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	SecurityHeaders(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", rec.Header().Get("Referrer-Policy"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'self'")
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "frame-ancestors 'none'")
	assert.Equal(t, "max-age=31536000; includeSubDomains; preload",
		rec.Header().Get("Strict-Transport-Security"))
}
