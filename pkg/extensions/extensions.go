// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extensions holds the pluggable seams of the FlyWise API.
//
// # Description
//
// The API server accepts a ServiceOptions value so deployments can swap in
// their own identity verification without touching handler code. The local
// default accepts every request as a fixed local user; hosted deployments
// install a JWTAuthProvider that verifies the backend-as-a-service access
// token.
//
// # Usage
//
//	opts := extensions.DefaultOptions()
//	opts = opts.WithAuth(extensions.NewJWTAuthProvider(secret, "authenticated"))
package extensions

// ServiceOptions configures the replaceable collaborators of the API server.
type ServiceOptions struct {
	// AuthProvider validates bearer tokens. Never nil after DefaultOptions.
	AuthProvider AuthProvider
}

// DefaultOptions returns options with the no-op auth provider installed.
func DefaultOptions() ServiceOptions {
	return ServiceOptions{
		AuthProvider: &NopAuthProvider{},
	}
}

// WithAuth returns a copy of opts using provider.
func (opts ServiceOptions) WithAuth(provider AuthProvider) ServiceOptions {
	opts.AuthProvider = provider
	return opts
}
