/**
 * @description
 * This file contains the authentication middleware for the HTTP router:
 * a shared API key for every /api/v1 route, and a reviewer JWT (RS256,
 * verified against a JWKS endpoint) for the approve/reject routes.
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5: JWT parsing and validation.
 */

package api

import (
	"context"
	"crypto/rsa"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const apiKeyHeader = "X-API-Key"

// ReviewerContextKey is a custom type for the context key to avoid collisions.
type ReviewerContextKey string

const reviewerIDKey ReviewerContextKey = "reviewerID"

// APIKeyMiddleware requires the X-API-Key header to match requiredKey.
// An empty requiredKey disables the check.
func APIKeyMiddleware(requiredKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requiredKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get(apiKeyHeader)
			if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(requiredKey)) != 1 {
				respondWithError(w, http.StatusUnauthorized, "Invalid or missing API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ReviewerAuthMiddleware validates a Bearer JWT against the keys published at
// the JWKS endpoint and stores the `sub` claim as the reviewer id. A nil
// keys source disables the check.
func ReviewerAuthMiddleware(keys *JWKSKeySource, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if keys == nil {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondWithError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				respondWithError(w, http.StatusUnauthorized, "Invalid Authorization header format")
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				kid, ok := token.Header["kid"].(string)
				if !ok {
					return nil, fmt.Errorf("kid not found in token header")
				}
				return keys.PublicKey(r.Context(), kid)
			})
			if err != nil || !token.Valid {
				logger.Warn("reviewer token rejected", "component", "api", "error", err)
				respondWithError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				respondWithError(w, http.StatusUnauthorized, "Invalid token claims")
				return
			}
			reviewerID, err := claims.GetSubject()
			if err != nil || reviewerID == "" {
				respondWithError(w, http.StatusUnauthorized, "Reviewer ID not found in token")
				return
			}

			ctx := context.WithValue(r.Context(), reviewerIDKey, reviewerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetReviewerID retrieves the reviewer id placed in the context by
// ReviewerAuthMiddleware.
func GetReviewerID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(reviewerIDKey).(string)
	return id, ok
}

// JWKSKeySource fetches RSA public keys from a JWKS endpoint and caches
// them for ttl. An unknown kid forces a refresh.
type JWKSKeySource struct {
	url        string
	client     *http.Client
	ttl        time.Duration
	minRefresh time.Duration
	now        func() time.Time

	mu          sync.Mutex
	keys        map[string]*rsa.PublicKey
	fetchedAt   time.Time
	lastAttempt time.Time
}

// NewJWKSKeySource returns nil when url is empty.
func NewJWKSKeySource(url string, client *http.Client) *JWKSKeySource {
	if strings.TrimSpace(url) == "" {
		return nil
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &JWKSKeySource{
		url:        url,
		client:     client,
		ttl:        10 * time.Minute,
		minRefresh: 30 * time.Second,
		now:        time.Now,
	}
}

// PublicKey returns the key with the given kid. The JWKS endpoint is hit at
// most once per minRefresh; unknown kids inside that gap fail from cache.
func (s *JWKSKeySource) PublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	key, cached := s.keys[kid]
	if cached && now.Sub(s.fetchedAt) < s.ttl {
		return key, nil
	}
	if !s.lastAttempt.IsZero() && now.Sub(s.lastAttempt) < s.minRefresh {
		if cached {
			return key, nil
		}
		return nil, fmt.Errorf("key with kid %s not found", kid)
	}

	s.lastAttempt = now
	keys, err := s.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get public key: %w", err)
	}
	s.keys = keys
	s.fetchedAt = now

	key, ok := keys[kid]
	if !ok {
		return nil, fmt.Errorf("key with kid %s not found", kid)
	}
	return key, nil
}

func (s *JWKSKeySource) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jwks endpoint returned %d", resp.StatusCode)
	}

	var jwks struct {
		Keys []struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, err
	}

	keys := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, k := range jwks.Keys {
		if k.Kty != "" && k.Kty != "RSA" {
			continue
		}
		pub, err := parseRSAPublicKey(k.N, k.E)
		if err != nil {
			return nil, fmt.Errorf("kid %s: %w", k.Kid, err)
		}
		keys[k.Kid] = pub
	}
	return keys, nil
}

// parseRSAPublicKey parses RSA public key from base64url modulus and exponent
func parseRSAPublicKey(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}

	var exp uint64
	for _, b := range eb {
		exp = (exp << 8) | uint64(b)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nb),
		E: int(exp),
	}, nil
}
