package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/dataspace-hub/dataspace-hub/internal/application/gate"
)

// KeyStore resolves token verification keys by key id.
type KeyStore interface {
	Key(keyID string) ([]byte, error)
	DefaultKey() ([]byte, error)
}

// JWTVerifier verifies inbound bearer tokens as HMAC-signed JWTs. The key is
// picked by the token's "kid" header, falling back to the default key.
type JWTVerifier struct {
	keys   KeyStore
	logger zerolog.Logger
}

func NewJWTVerifier(keys KeyStore, logger zerolog.Logger) *JWTVerifier {
	return &JWTVerifier{
		keys:   keys,
		logger: logger.With().Str("service", "identity").Logger(),
	}
}

// Verify parses and validates the token, returning its claims.
func (v *JWTVerifier) Verify(ctx context.Context, token gate.TokenRepresentation) (gate.Claims, error) {
	if token.Token == "" {
		return nil, errors.New("empty token")
	}
	parsed, err := jwt.Parse(token.Token, v.keyFunc, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("unexpected claims type")
	}
	claims := make(gate.Claims, len(mapClaims))
	for k, val := range mapClaims {
		claims[k] = val
	}
	return claims, nil
}

func (v *JWTVerifier) keyFunc(t *jwt.Token) (any, error) {
	if kid, ok := t.Header["kid"].(string); ok && kid != "" {
		return v.keys.Key(kid)
	}
	return v.keys.DefaultKey()
}

// AgentResolver derives the caller agent from verified claims. The identity
// is taken from the configured claim, falling back to "sub".
type AgentResolver struct {
	identityClaim string
}

func NewAgentResolver(identityClaim string) *AgentResolver {
	if identityClaim == "" {
		identityClaim = "client_id"
	}
	return &AgentResolver{identityClaim: identityClaim}
}

func (r *AgentResolver) ResolveAgent(claims gate.Claims) (*gate.Agent, error) {
	identity := stringClaim(claims, r.identityClaim)
	if identity == "" {
		identity = stringClaim(claims, "sub")
	}
	if identity == "" {
		return nil, fmt.Errorf("no identity claim %q or \"sub\" present", r.identityClaim)
	}
	return &gate.Agent{Identity: identity, Claims: claims}, nil
}

func stringClaim(claims gate.Claims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
