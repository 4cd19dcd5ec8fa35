// Package auth issues and verifies bearer tokens and hashes passwords.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/garnizeh/leadscout/internal/apperr"
	"github.com/garnizeh/leadscout/internal/models"
)

// Claims identify the user. IssuedAtNano gives revocation checks
// sub-second precision; the registered iat claim only carries seconds.
type Claims struct {
	UserID       int64  `json:"user_id"`
	Email        string `json:"email"`
	IssuedAtNano int64  `json:"iat_ns"`
	jwt.RegisteredClaims
}

// IssuedAt returns the precise issue instant.
func (c *Claims) IssuedAt() time.Time {
	return time.Unix(0, c.IssuedAtNano)
}

// Issuer signs and verifies HS256 tokens.
type Issuer struct {
	secret  []byte
	ttl     time.Duration
	revoker Revoker
	now     func() time.Time
}

// NewIssuer returns an Issuer. A nil revoker disables revocation checks.
func NewIssuer(secret string, ttl time.Duration, revoker Revoker) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, revoker: revoker, now: time.Now}
}

// Issue mints a token for u.
func (i *Issuer) Issue(u *models.User) (string, error) {
	now := i.now()
	claims := Claims{
		UserID:       u.ID,
		Email:        u.Email,
		IssuedAtNano: now.UnixNano(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

var errInvalidToken = apperr.New(apperr.ErrUnauthorized, "Invalid or expired token.")

// Parse verifies signature, expiry and revocation. Failures are reported as
// apperr.ErrUnauthorized.
func (i *Issuer) Parse(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, errInvalidToken
	}
	if claims.UserID == 0 {
		return nil, errInvalidToken
	}

	if i.revoker != nil {
		revokedAt, ok, err := i.revoker.RevokedAt(ctx, claims.UserID)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrInternal, "Failed to verify token.", err)
		}
		if ok && claims.IssuedAtNano <= revokedAt.UnixNano() {
			return nil, apperr.New(apperr.ErrUnauthorized, "Token has been revoked.")
		}
	}
	return claims, nil
}

// RevokeAll invalidates every token issued to userID up to now.
func (i *Issuer) RevokeAll(ctx context.Context, userID int64) error {
	if i.revoker == nil {
		return errors.New("auth: no revoker configured")
	}
	return i.revoker.RevokeUser(ctx, userID, i.now())
}
