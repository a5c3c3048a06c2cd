package store

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/crypto/nacl/secretbox"

	"tenantgate/internal/authstate"
	"tenantgate/pkg/sentinel"
)

const nonceSize = 24

// Cookie is the client-held variant: the "pointer" handed to the browser is
// the secretbox-encrypted record itself, so no server-side storage exists.
// The trade-off is that single use cannot be enforced without a denylist;
// the short TTL bounds the replay window instead. Delete and DeleteExpired
// are therefore no-ops.
type Cookie struct {
	key [32]byte
}

// NewCookie builds the codec from a base64-encoded 32-byte key.
func NewCookie(encodedKey string) (*Cookie, error) {
	raw, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("decode auth state cookie key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("auth state cookie key must be 32 bytes, got %d", len(raw))
	}
	c := &Cookie{}
	copy(c.key[:], raw)
	return c, nil
}

func (c *Cookie) Create(_ context.Context, state authstate.AuthState) (string, error) {
	payload, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("marshal auth state: %w", err)
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], payload, &nonce, &c.key)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (c *Cookie) FindByID(_ context.Context, id, tenant string) (authstate.AuthState, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(id)
	if err != nil || len(sealed) < nonceSize {
		return authstate.AuthState{}, sentinel.ErrNotFound
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	payload, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &c.key)
	if !ok {
		return authstate.AuthState{}, sentinel.ErrNotFound
	}
	var state authstate.AuthState
	if err := json.Unmarshal(payload, &state); err != nil {
		return authstate.AuthState{}, sentinel.ErrNotFound
	}
	if state.Tenant != tenant {
		return authstate.AuthState{}, sentinel.ErrNotFound
	}
	if state.Expired(time.Now()) {
		return authstate.AuthState{}, sentinel.ErrExpired
	}
	return state, nil
}

func (c *Cookie) Delete(_ context.Context, _ string) error {
	// Client-held record; clearing the cookie is the only delete available.
	return nil
}

func (c *Cookie) DeleteExpired(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}
