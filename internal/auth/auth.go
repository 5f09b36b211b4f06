// Package auth verifies bearer tokens issued by the auth provider and puts
// the token subject on the request context.
package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/oggyb/campus-match/internal/config"
)

type contextKey string

const identityKey contextKey = "auth_identity"

// RoleService marks tokens minted for backend callers such as the chat
// provider's new-message webhook. User tokens carry no role.
const RoleService = "service"

// Claims are the JWT claims the service reads.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller.
type Identity struct {
	Subject string
	Role    string
}

// publicPrefixes are served without a token.
var publicPrefixes = []string{
	"/grpc.health.v1.Health/",
	"/grpc.reflection.",
}

// Verifier checks HMAC-signed JWTs.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier returns nil when no secret is configured; a nil Verifier
// disables authentication.
func NewVerifier(cfg config.AuthConfig) *Verifier {
	if cfg.JWTSecret == "" {
		return nil
	}
	return &Verifier{secret: []byte(cfg.JWTSecret), issuer: cfg.Issuer}
}

// Verify validates tokenString and returns the caller it identifies.
func (v *Verifier) Verify(tokenString string) (Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, err
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("token has no subject")
	}
	return Identity{Subject: claims.Subject, Role: claims.Role}, nil
}

// Subject validates tokenString and returns its "sub" claim.
func (v *Verifier) Subject(tokenString string) (string, error) {
	id, err := v.Verify(tokenString)
	return id.Subject, err
}

// UnaryServerInterceptor rejects calls without a valid bearer token. With a
// nil Verifier every call passes through unauthenticated.
func UnaryServerInterceptor(v *Verifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if v == nil || isPublic(info.FullMethod) {
			return handler(ctx, req)
		}
		token := bearerToken(ctx)
		if token == "" {
			return nil, status.Error(codes.Unauthenticated, "missing bearer token")
		}
		id, err := v.Verify(token)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		return handler(WithIdentity(ctx, id), req)
	}
}

// WithSubject returns a context carrying an authenticated user.
func WithSubject(ctx context.Context, sub string) context.Context {
	return WithIdentity(ctx, Identity{Subject: sub})
}

// WithIdentity returns a context carrying an authenticated caller.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the authenticated caller, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.Subject != ""
}

// SubjectFromContext returns the authenticated subject, if any.
func SubjectFromContext(ctx context.Context) (string, bool) {
	id, ok := IdentityFromContext(ctx)
	return id.Subject, ok
}

// Authorize fails when the caller is authenticated as someone other than
// userID. Unauthenticated contexts pass; the interceptor decides whether
// they are allowed at all.
func Authorize(ctx context.Context, userID string) error {
	sub, ok := SubjectFromContext(ctx)
	if ok && sub != userID {
		return status.Error(codes.PermissionDenied, "token subject does not match user")
	}
	return nil
}

// RequireService fails unless the caller authenticated with a service
// token. Like Authorize, unauthenticated contexts pass.
func RequireService(ctx context.Context) error {
	id, ok := IdentityFromContext(ctx)
	if ok && id.Role != RoleService {
		return status.Error(codes.PermissionDenied, "service credentials required")
	}
	return nil
}

func bearerToken(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, v := range md.Get("authorization") {
		parts := strings.SplitN(v, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return ""
}

func isPublic(method string) bool {
	for _, p := range publicPrefixes {
		if strings.HasPrefix(method, p) {
			return true
		}
	}
	return false
}
