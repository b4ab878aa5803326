// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

// jwtAuthMiddleware authenticates requests with a JWT verified against a
// JWKS. The token comes from the Authorization header, or from the auth
// cookie for browser clients. Requests without a valid token proceed
// anonymously.
func jwtAuthMiddleware(opts Options, next http.Handler) http.Handler {
	var (
		keys        jwk.Set
		lastRefresh time.Time
		mu          sync.RWMutex
	)

	refreshKeys := func() error {
		if opts.AuthJWKSURL == "" {
			return fmt.Errorf("no JWKS URL provided")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		set, err := jwk.Fetch(ctx, opts.AuthJWKSURL)
		if err != nil {
			return fmt.Errorf("failed to fetch JWKS: %w", err)
		}

		mu.Lock()
		keys = set
		lastRefresh = time.Now()
		mu.Unlock()
		return nil
	}

	// Initial fetch attempt (non-fatal if it fails, will retry on request)
	if opts.AuthJWKSURL != "" {
		if err := refreshKeys(); err != nil {
			log.Printf("[AUTH] Warning: Failed to fetch JWKS on startup: %v", err)
		}
	} else {
		log.Println("[AUTH] Warning: No AuthJWKSURL provided. JWT validation will fail unless MockAuth is used.")
	}

	findKey := func(set jwk.Set, id string) (any, error) {
		if set == nil {
			return nil, fmt.Errorf("JWKS not initialized")
		}
		key, ok := set.LookupKeyID(id)
		if !ok {
			return nil, fmt.Errorf("key %s not found in JWKS", id)
		}
		var raw any
		if err := jwk.Export(key, &raw); err != nil {
			return nil, fmt.Errorf("failed to materialize key: %w", err)
		}
		return raw, nil
	}

	keyFunc := func(token *jwt.Token) (any, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA, *jwt.SigningMethodEd25519:
		default:
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, fmt.Errorf("token missing 'kid' header")
		}

		mu.RLock()
		localKeys := keys
		localLastRefresh := lastRefresh
		mu.RUnlock()

		key, err := findKey(localKeys, kid)
		if err == nil {
			return key, nil
		}

		// Unknown kid: refresh at most once a minute.
		if time.Since(localLastRefresh) > time.Minute {
			if err := refreshKeys(); err != nil {
				log.Printf("[AUTH] Error refreshing JWKS: %v", err)
				return nil, err
			}
			mu.RLock()
			localKeys = keys
			mu.RUnlock()
			return findKey(localKeys, kid)
		}
		return nil, err
	}

	cookieName := opts.AuthCookieName
	if cookieName == "" {
		cookieName = "scorecard_auth"
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		if tokenString == "" {
			if cookie, err := r.Cookie(cookieName); err == nil {
				tokenString = cookie.Value
			}
		}
		if tokenString == "" {
			next.ServeHTTP(w, r)
			return
		}

		token, err := jwt.Parse(tokenString, keyFunc)
		if err != nil || !token.Valid {
			if opts.Debug {
				log.Printf("[AUTH] JWT Validation failed: %v", err)
			}
			next.ServeHTTP(w, r)
			return
		}

		if claims, ok := token.Claims.(jwt.MapClaims); ok {
			if email, ok := claims["email"].(string); ok && email != "" {
				next.ServeHTTP(w, withUserID(r, email))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// mockAuthMiddleware trusts the mock_auth_user cookie, or a bearer token
// holding an email address, as the user's identity. For tests and local
// development only.
func mockAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(mockAuthCookie); err == nil && cookie.Value != "" {
			next.ServeHTTP(w, withUserID(r, cookie.Value))
			return
		}
		if token := bearerToken(r); token != "" && isValidEmail(token) {
			next.ServeHTTP(w, withUserID(r, token))
			return
		}
		next.ServeHTTP(w, r)
	})
}
