package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"tenantgate/internal/session"
	"tenantgate/pkg/sentinel"
)

type sessionClaims struct {
	Tenant       string `json:"tenant"`
	Email        string `json:"email"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Device       string `json:"device,omitempty"`
	jwt.RegisteredClaims
}

// JWT is the self-contained variant: the session pointer handed to the
// client is an HS256-signed token carrying the session fields, so no
// server-side storage exists. Server-side revocation is impossible without a
// denylist, which is the documented cost of this design: Terminate is a
// no-op and logout relies on clearing the cookie plus the provider logout.
type JWT struct {
	signingKey []byte
	issuer     string
}

func NewJWT(signingKey, issuer string) (*JWT, error) {
	if len(signingKey) == 0 {
		return nil, fmt.Errorf("session JWT signing key is required")
	}
	return &JWT{signingKey: []byte(signingKey), issuer: issuer}, nil
}

func (s *JWT) Upsert(_ context.Context, sess session.Session) (session.Session, error) {
	// (tenant, email) uniqueness holds trivially: issuing a new token
	// supersedes the previous one in the client's cookie jar.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		Tenant:       sess.Tenant,
		Email:        sess.Email,
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		IDToken:      sess.IDToken,
		Device:       sess.Device,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.Email,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return session.Session{}, fmt.Errorf("sign session token: %w", err)
	}
	sess.ID = signed
	sess.LoggedIn = true
	return sess, nil
}

func (s *JWT) FindByID(_ context.Context, id, tenant string) (session.Session, error) {
	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(id, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return session.Session{}, sentinel.ErrExpired
		}
		return session.Session{}, sentinel.ErrNotFound
	}
	if !parsed.Valid || claims.Tenant != tenant || claims.ExpiresAt == nil {
		return session.Session{}, sentinel.ErrNotFound
	}
	createdAt := claims.ExpiresAt.Time
	if claims.IssuedAt != nil {
		createdAt = claims.IssuedAt.Time
	}
	return session.Session{
		ID:           id,
		Tenant:       claims.Tenant,
		Email:        claims.Email,
		LoggedIn:     true,
		AccessToken:  claims.AccessToken,
		RefreshToken: claims.RefreshToken,
		IDToken:      claims.IDToken,
		Device:       claims.Device,
		CreatedAt:    createdAt,
		ExpiresAt:    claims.ExpiresAt.Time,
	}, nil
}

func (s *JWT) Terminate(_ context.Context, _, _ string) error {
	// Nothing server-side to terminate; the caller clears the cookie.
	return nil
}
