// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extensions

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// ErrUnauthorized is returned when a token is missing, malformed or invalid.
var ErrUnauthorized = errors.New("unauthorized")

// LocalUserID is the identity the no-op provider assigns to every request.
const LocalUserID = "00000000-0000-0000-0000-000000000001"

// AuthInfo describes the caller behind a validated token.
type AuthInfo struct {
	// UserID is the subject of the token (a UUID).
	UserID string

	Email string

	// Role is the backend role claim, "authenticated" for signed-in users.
	Role string

	// Anonymous is true when no token was presented and the provider
	// allows anonymous access.
	Anonymous bool
}

// AuthProvider validates bearer tokens.
//
// # Description
//
// Validate receives the raw token (without the "Bearer " prefix, possibly
// empty) and returns the caller identity.
//
// # Outputs
//
//   - *AuthInfo: Caller identity on success.
//   - error: ErrUnauthorized (possibly wrapped) when the token is rejected.
type AuthProvider interface {
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// NopAuthProvider accepts every request as the local user.
//
// Used for single-user local deployments and tests.
type NopAuthProvider struct{}

// Validate always succeeds.
func (p *NopAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{
		UserID: LocalUserID,
		Role:   "authenticated",
	}, nil
}

// supabaseClaims mirrors the access token issued by the auth backend.
type supabaseClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// JWTAuthProvider verifies HS256 access tokens signed with a shared secret.
//
// # Description
//
// Checks signature, expiry, audience (when configured) and that the
// subject is a UUID. An empty token is treated as an anonymous caller so
// public endpoints keep working; handlers that need a user check
// AuthInfo.Anonymous.
//
// # Thread Safety
//
// Safe for concurrent use.
type JWTAuthProvider struct {
	secret   []byte
	audience string
}

// NewJWTAuthProvider creates a provider. audience may be empty to skip the
// audience check.
func NewJWTAuthProvider(secret, audience string) *JWTAuthProvider {
	return &JWTAuthProvider{secret: []byte(secret), audience: audience}
}

// Validate implements AuthProvider.
func (p *JWTAuthProvider) Validate(_ context.Context, token string) (*AuthInfo, error) {
	if token == "" {
		return &AuthInfo{Anonymous: true}, nil
	}

	claims := &supabaseClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	if p.audience != "" && !claims.VerifyAudience(p.audience, true) {
		return nil, fmt.Errorf("%w: audience mismatch", ErrUnauthorized)
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, fmt.Errorf("%w: subject is not a user id", ErrUnauthorized)
	}

	return &AuthInfo{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   claims.Role,
	}, nil
}

var (
	_ AuthProvider = (*NopAuthProvider)(nil)
	_ AuthProvider = (*JWTAuthProvider)(nil)
)
