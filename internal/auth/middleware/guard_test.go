package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tenantgate/internal/auth"
	"tenantgate/internal/session"
	sessionstore "tenantgate/internal/session/store"
	"tenantgate/internal/tenant"
	"tenantgate/pkg/sentinel"
)

// countingStore wraps the in-memory store to prove the guard skips the
// lookup on public paths.
type countingStore struct {
	*sessionstore.InMemory
	finds int
}

func (c *countingStore) FindByID(ctx context.Context, id, tenant string) (session.Session, error) {
	c.finds++
	return c.InMemory.FindByID(ctx, id, tenant)
}

func newGuardFixture(t *testing.T, policy session.TerminationPolicy) (*Guard, *countingStore) {
	t.Helper()
	store := &countingStore{InMemory: sessionstore.NewInMemory(policy)}
	registry := tenant.NewRegistry([]string{"tenant-a", "tenant-b"}, "http://localhost:8080")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewGuard(registry, store, []string{"home", "profile"}, logger, nil, false), store
}

func serveThrough(g *Guard, req *http.Request) (*httptest.ResponseRecorder, bool) {
	reached := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	g.Handler(next).ServeHTTP(rec, req)
	return rec, reached
}

func liveSession(t *testing.T, store *countingStore, tenantID, email string) session.Session {
	t.Helper()
	sess, err := store.Upsert(context.Background(), session.Session{
		ID:        "sess-" + tenantID + "-" + email,
		Tenant:    tenantID,
		Email:     email,
		LoggedIn:  true,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	return sess
}

func withSessionCookie(req *http.Request, tenantID, value string) *http.Request {
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName(tenantID), Value: value})
	return req
}

func TestGuardPassesRoot(t *testing.T) {
	g, store := newGuardFixture(t, session.TerminateSoft)

	_, reached := serveThrough(g, httptest.NewRequest(http.MethodGet, "/", nil))
	require.True(t, reached)
	require.Zero(t, store.finds)
}

func TestGuardUnknownTenant(t *testing.T) {
	g, _ := newGuardFixture(t, session.TerminateSoft)

	rec, reached := serveThrough(g, httptest.NewRequest(http.MethodGet, "/tenant-c/home", nil))
	require.False(t, reached)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))
}

func TestGuardPublicPathSkipsLookup(t *testing.T) {
	g, store := newGuardFixture(t, session.TerminateSoft)

	for _, path := range []string{"/tenant-a", "/tenant-a/login", "/tenant-a/callback", "/tenant-a/logout"} {
		_, reached := serveThrough(g, httptest.NewRequest(http.MethodGet, path, nil))
		require.True(t, reached, "path %s must pass without a session", path)
	}
	require.Zero(t, store.finds, "public paths must not touch the session store")
}

func TestGuardNoCookie(t *testing.T) {
	g, _ := newGuardFixture(t, session.TerminateSoft)

	rec, reached := serveThrough(g, httptest.NewRequest(http.MethodGet, "/tenant-a/home", nil))
	require.False(t, reached)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/tenant-a/login", rec.Header().Get("Location"))
}

func TestGuardUnknownSession(t *testing.T) {
	g, _ := newGuardFixture(t, session.TerminateSoft)

	req := withSessionCookie(httptest.NewRequest(http.MethodGet, "/tenant-a/home", nil), "tenant-a", "no-such-session")
	rec, reached := serveThrough(g, req)
	require.False(t, reached)
	require.Equal(t, "/tenant-a/login", rec.Header().Get("Location"))

	// The dead pointer is cleared.
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	require.Equal(t, auth.SessionCookieName("tenant-a"), cookies[0].Name)
	require.Less(t, cookies[0].MaxAge, 0)
}

func TestGuardLiveSession(t *testing.T) {
	g, store := newGuardFixture(t, session.TerminateSoft)
	sess := liveSession(t, store, "tenant-a", "u@example.com")

	var got session.Session
	var ok bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = SessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	req := withSessionCookie(httptest.NewRequest(http.MethodGet, "/tenant-a/home", nil), "tenant-a", sess.ID)
	rec := httptest.NewRecorder()
	g.Handler(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, ok, "guard must attach the session for downstream handlers")
	require.Equal(t, "u@example.com", got.Email)
}

func TestGuardForeignSession(t *testing.T) {
	g, store := newGuardFixture(t, session.TerminateSoft)
	sess := liveSession(t, store, "tenant-a", "u@example.com")

	// tenant-a's session pointer presented under tenant-b.
	req := withSessionCookie(httptest.NewRequest(http.MethodGet, "/tenant-b/home", nil), "tenant-b", sess.ID)
	rec, reached := serveThrough(g, req)
	require.False(t, reached)
	require.Equal(t, "/tenant-b/login", rec.Header().Get("Location"))
}

func TestGuardExpiredSessionTerminated(t *testing.T) {
	g, store := newGuardFixture(t, session.TerminateSoft)
	sess, err := store.Upsert(context.Background(), session.Session{
		ID:        "expired-session",
		Tenant:    "tenant-a",
		Email:     "u@example.com",
		LoggedIn:  true,
		CreatedAt: time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)

	req := withSessionCookie(httptest.NewRequest(http.MethodGet, "/tenant-a/home", nil), "tenant-a", sess.ID)
	rec, reached := serveThrough(g, req)
	require.False(t, reached)
	require.Equal(t, "/tenant-a/login", rec.Header().Get("Location"))

	// Soft policy: the record survives but is logged out.
	after, err := store.InMemory.FindByID(context.Background(), sess.ID, "tenant-a")
	require.NoError(t, err)
	require.False(t, after.LoggedIn)
}

func TestGuardExpiredSessionHardPolicy(t *testing.T) {
	g, store := newGuardFixture(t, session.TerminateHard)
	sess, err := store.Upsert(context.Background(), session.Session{
		ID:        "expired-session",
		Tenant:    "tenant-a",
		Email:     "u@example.com",
		LoggedIn:  true,
		CreatedAt: time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)

	req := withSessionCookie(httptest.NewRequest(http.MethodGet, "/tenant-a/home", nil), "tenant-a", sess.ID)
	_, reached := serveThrough(g, req)
	require.False(t, reached)

	_, err = store.InMemory.FindByID(context.Background(), sess.ID, "tenant-a")
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestGuardLoggedOutSession(t *testing.T) {
	g, store := newGuardFixture(t, session.TerminateSoft)
	sess := liveSession(t, store, "tenant-a", "u@example.com")
	require.NoError(t, store.Terminate(context.Background(), sess.ID, "tenant-a"))

	req := withSessionCookie(httptest.NewRequest(http.MethodGet, "/tenant-a/home", nil), "tenant-a", sess.ID)
	rec, reached := serveThrough(g, req)
	require.False(t, reached)
	require.Equal(t, "/tenant-a/login", rec.Header().Get("Location"))
}

func TestGuardProtectsSubpaths(t *testing.T) {
	g, _ := newGuardFixture(t, session.TerminateSoft)

	rec, reached := serveThrough(g, httptest.NewRequest(http.MethodGet, "/tenant-a/profile/settings", nil))
	require.False(t, reached)
	require.Equal(t, "/tenant-a/login", rec.Header().Get("Location"))
}
