// Package auth turns bearer credentials into a tenant-scoped principal.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"feeledger/internal/core"
)

// Principal is the caller identity. TenantID is the only tenant a request may touch.
type Principal struct {
	TenantID string
	UserID   string
	Role     string
}

// Authenticator verifies a bearer token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (Principal, error)
}

// JWTAuthenticator verifies HS256 tokens carrying tenant_id, role and sub claims.
type JWTAuthenticator struct {
	secret []byte
	now    func() time.Time
}

func NewJWTAuthenticator(secret string) *JWTAuthenticator {
	return &JWTAuthenticator{secret: []byte(secret), now: time.Now}
}

func (a *JWTAuthenticator) Authenticate(_ context.Context, tokenStr string) (Principal, error) {
	if tokenStr == "" {
		return Principal{}, core.Auth("authorization token not provided")
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Principal{}, core.Auth("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, core.Auth("invalid token claims")
	}

	tenantID, _ := claims["tenant_id"].(string)
	if strings.TrimSpace(tenantID) == "" {
		return Principal{}, core.Auth("token has no tenant")
	}
	role, _ := claims["role"].(string)
	sub, _ := claims.GetSubject()

	return Principal{TenantID: tenantID, UserID: sub, Role: role}, nil
}

// Issue signs a token for p that expires after ttl.
func (a *JWTAuthenticator) Issue(p Principal, ttl time.Duration) (string, error) {
	now := a.now()
	claims := jwt.MapClaims{
		"tenant_id": p.TenantID,
		"role":      p.Role,
		"sub":       p.UserID,
		"iat":       now.Unix(),
		"exp":       now.Add(ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", core.Auth("authorization token not provided")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", core.Auth("invalid Authorization header format")
	}
	return parts[1], nil
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
