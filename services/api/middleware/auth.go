// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the FlyWise API.
//
// # Authentication Flow
//
// AuthMiddleware extracts a bearer token from the Authorization header,
// validates it with the configured AuthProvider and stores the resulting
// AuthInfo in the Gin context. RequireUser then rejects anonymous callers on
// routes that act on a user's own data.
//
//	Request
//	   │
//	   ▼
//	AuthMiddleware ──► provider.Validate(ctx, token) ──► SetAuthInfo
//	   │
//	   ▼
//	RequireUser (owner routes only)
//	   │
//	   ▼
//	Handler (UserID(c))
//
// # Local Behavior
//
// With NopAuthProvider every request runs as the fixed local user, so a
// single-user install works without an identity backend.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/flywise/pkg/extensions"
)

// authInfoKey is the Gin context key for the caller's AuthInfo.
const authInfoKey = "flywise_auth_info"

// SetAuthInfo stores the caller in the Gin context.
func SetAuthInfo(c *gin.Context, info *extensions.AuthInfo) {
	c.Set(authInfoKey, info)
}

// GetAuthInfo returns the caller stored by AuthMiddleware, or nil.
func GetAuthInfo(c *gin.Context) *extensions.AuthInfo {
	if info, exists := c.Get(authInfoKey); exists {
		if authInfo, ok := info.(*extensions.AuthInfo); ok {
			return authInfo
		}
	}
	return nil
}

// UserID returns the authenticated user's id, or "" for anonymous callers.
func UserID(c *gin.Context) string {
	info := GetAuthInfo(c)
	if info == nil || info.Anonymous {
		return ""
	}
	return info.UserID
}

// AuthMiddleware authenticates every request.
//
// # Description
//
// A missing token is passed to the provider as "", which decides whether
// anonymous access is allowed. A rejected token always ends the request
// with 401, even on public routes, so a client with an expired session
// notices instead of silently losing its identity.
//
// # Inputs
//
//   - provider: AuthProvider to validate tokens. Must not be nil.
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func AuthMiddleware(provider extensions.AuthProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)

		authInfo, err := provider.Validate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, extensions.ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "unauthorized",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication failed",
			})
			return
		}

		SetAuthInfo(c, authInfo)
		c.Next()
	}
}

// RequireUser rejects requests without an authenticated user. It must run
// after AuthMiddleware.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
			})
			return
		}
		c.Next()
	}
}

// extractBearerToken parses "Authorization: Bearer <token>". The scheme is
// case-insensitive; anything else yields "".
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
