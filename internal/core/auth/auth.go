// internal/core/auth/auth.go

// Package auth provides HMAC-signed API key authentication for gRPC services.
//
// Keys are self-verifying: the server holds only the HMAC secrets (from the
// environment) and recomputes the signature, so no key table is needed.
// Rotating a secret out invalidates every key it signed.
package auth

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type contextKey string

const keyIDKey = contextKey("key_id")

// MetadataKey is the gRPC metadata header carrying the API key.
const MetadataKey = "x-api-key"

// Authenticator validates API keys against the configured secrets.
type Authenticator struct {
	secrets map[string][]byte
	public  []string
}

// NewAuthenticator creates an authenticator. Methods whose full name starts
// with one of publicPrefixes skip authentication.
func NewAuthenticator(secrets map[string][]byte, publicPrefixes ...string) *Authenticator {
	return &Authenticator{secrets: secrets, public: publicPrefixes}
}

// Authenticate validates apiKey and returns its key_id.
func (a *Authenticator) Authenticate(apiKey string) (string, error) {
	secretID, keyID, mac, err := ParseAPIKey(apiKey)
	if err != nil {
		return "", err
	}

	secret, ok := a.secrets[secretID]
	if !ok {
		return "", ErrUnknownKey
	}

	if !VerifyHMAC(mac, ComputeHMAC(secret, secretID, keyID)) {
		return "", ErrInvalidKey
	}
	return keyID, nil
}

func (a *Authenticator) isPublic(method string) bool {
	for _, p := range a.public {
		if strings.HasPrefix(method, p) {
			return true
		}
	}
	return false
}

// UnaryInterceptor returns a gRPC interceptor that authenticates requests.
func (a *Authenticator) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if a.isPublic(info.FullMethod) {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}
		apiKeys := md.Get(MetadataKey)
		if len(apiKeys) == 0 {
			return nil, status.Error(codes.Unauthenticated, ErrMissingKey.Error())
		}

		keyID, err := a.Authenticate(apiKeys[0])
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}

		return handler(context.WithValue(ctx, keyIDKey, keyID), req)
	}
}

// KeyIDFromContext returns the authenticated key_id, or "" when unauthenticated.
func KeyIDFromContext(ctx context.Context) string {
	if keyID, ok := ctx.Value(keyIDKey).(string); ok {
		return keyID
	}
	return ""
}
