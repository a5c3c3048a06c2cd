package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tenantgate/pkg/sentinel"
)

func TestNewJWTRequiresKey(t *testing.T) {
	_, err := NewJWT("", "http://localhost:8080")
	require.Error(t, err)
}

func TestJWTRoundTrip(t *testing.T) {
	store, err := NewJWT("test-signing-key", "http://localhost:8080")
	require.NoError(t, err)
	ctx := context.Background()

	issued, err := store.Upsert(ctx, newSession("tenant-a", "u@example.com"))
	require.NoError(t, err)
	require.True(t, strings.Count(issued.ID, ".") == 2, "session id must be a compact JWT")

	found, err := store.FindByID(ctx, issued.ID, "tenant-a")
	require.NoError(t, err)
	require.Equal(t, "u@example.com", found.Email)
	require.Equal(t, issued.AccessToken, found.AccessToken)
	require.True(t, found.LoggedIn)
}

func TestJWTRejectsForeignTenant(t *testing.T) {
	store, err := NewJWT("test-signing-key", "http://localhost:8080")
	require.NoError(t, err)
	ctx := context.Background()

	issued, err := store.Upsert(ctx, newSession("tenant-a", "u@example.com"))
	require.NoError(t, err)

	_, err = store.FindByID(ctx, issued.ID, "tenant-b")
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestJWTRejectsWrongKey(t *testing.T) {
	ctx := context.Background()
	signer, err := NewJWT("key-one", "http://localhost:8080")
	require.NoError(t, err)
	verifier, err := NewJWT("key-two", "http://localhost:8080")
	require.NoError(t, err)

	issued, err := signer.Upsert(ctx, newSession("tenant-a", "u@example.com"))
	require.NoError(t, err)

	_, err = verifier.FindByID(ctx, issued.ID, "tenant-a")
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestJWTExpiry(t *testing.T) {
	store, err := NewJWT("test-signing-key", "http://localhost:8080")
	require.NoError(t, err)
	ctx := context.Background()

	sess := newSession("tenant-a", "u@example.com")
	sess.CreatedAt = time.Now().Add(-2 * time.Hour)
	sess.ExpiresAt = time.Now().Add(-time.Hour)

	issued, err := store.Upsert(ctx, sess)
	require.NoError(t, err)

	_, err = store.FindByID(ctx, issued.ID, "tenant-a")
	require.ErrorIs(t, err, sentinel.ErrExpired)
}

func TestJWTRejectsGarbage(t *testing.T) {
	store, err := NewJWT("test-signing-key", "http://localhost:8080")
	require.NoError(t, err)

	_, err = store.FindByID(context.Background(), "not-a-token", "tenant-a")
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}
