package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Verifier turns an access token into the authenticated user id.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// Claims is the access token payload issued by the auth service.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 tokens signed with a shared secret, or RS/ES
// tokens against a JWKS endpoint.
type JWTVerifier struct {
	keyFunc jwt.Keyfunc
	jwks    *keyfunc.JWKS
	methods []string
}

// NewHMACVerifier builds a verifier for tokens signed with secret.
func NewHMACVerifier(secret string) *JWTVerifier {
	key := []byte(secret)
	return &JWTVerifier{
		keyFunc: func(*jwt.Token) (any, error) { return key, nil },
		methods: []string{jwt.SigningMethodHS256.Alg()},
	}
}

// NewJWKSVerifier builds a verifier that fetches and refreshes keys from jwksURL.
func NewJWKSVerifier(ctx context.Context, jwksURL string, logger *slog.Logger) (*JWTVerifier, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Ctx:                 ctx,
		RefreshInterval:     5 * time.Minute,
		RefreshRateLimit:    time.Minute,
		RefreshUnknownKID:   true,
		RefreshErrorHandler: func(err error) { logger.Error("jwks refresh error", "error", err) },
	})
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	return &JWTVerifier{
		keyFunc: jwks.Keyfunc,
		jwks:    jwks,
		methods: []string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"},
	}, nil
}

// Verify parses the token and returns its user id claim.
func (v *JWTVerifier) Verify(_ context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, v.keyFunc, jwt.WithValidMethods(v.methods))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return "", ErrInvalidToken
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return "", fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}
	return userID, nil
}

// Close stops the JWKS refresh goroutine, if any.
func (v *JWTVerifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
