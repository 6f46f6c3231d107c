package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataspace-hub/dataspace-hub/internal/application/gate"
	"github.com/dataspace-hub/dataspace-hub/internal/infrastructure/keystore"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func signToken(t *testing.T, kid string, key []byte, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func testStore() *keystore.StaticKeyStore {
	return keystore.NewStatic("k1", map[string][]byte{"k1": testKey})
}

func TestVerifyValidToken(t *testing.T) {
	v := NewJWTVerifier(testStore(), zerolog.Nop())
	signed := signToken(t, "k1", testKey, jwt.MapClaims{
		"client_id": "did:web:consumer",
		"exp":       time.Now().Add(time.Hour).Unix(),
	})

	claims, err := v.Verify(context.Background(), gate.TokenRepresentation{Token: signed})
	require.NoError(t, err)
	assert.Equal(t, "did:web:consumer", claims["client_id"])
}

func TestVerifyDefaultKeyWithoutKid(t *testing.T) {
	v := NewJWTVerifier(testStore(), zerolog.Nop())
	signed := signToken(t, "", testKey, jwt.MapClaims{"sub": "did:web:consumer"})

	claims, err := v.Verify(context.Background(), gate.TokenRepresentation{Token: signed})
	require.NoError(t, err)
	assert.Equal(t, "did:web:consumer", claims["sub"])
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	v := NewJWTVerifier(testStore(), zerolog.Nop())
	signed := signToken(t, "k1", []byte("another-key-another-key-another!"), jwt.MapClaims{"sub": "x"})

	_, err := v.Verify(context.Background(), gate.TokenRepresentation{Token: signed})
	require.Error(t, err)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	v := NewJWTVerifier(testStore(), zerolog.Nop())
	signed := signToken(t, "k1", testKey, jwt.MapClaims{
		"sub": "x",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	_, err := v.Verify(context.Background(), gate.TokenRepresentation{Token: signed})
	require.Error(t, err)
}

func TestVerifyRejectsEmptyToken(t *testing.T) {
	v := NewJWTVerifier(testStore(), zerolog.Nop())
	_, err := v.Verify(context.Background(), gate.TokenRepresentation{})
	require.Error(t, err)
}

func TestResolveAgentConfiguredClaim(t *testing.T) {
	r := NewAgentResolver("client_id")
	agent, err := r.ResolveAgent(gate.Claims{"client_id": "did:web:consumer"})
	require.NoError(t, err)
	assert.Equal(t, "did:web:consumer", agent.Identity)
}

func TestResolveAgentFallsBackToSub(t *testing.T) {
	r := NewAgentResolver("client_id")
	agent, err := r.ResolveAgent(gate.Claims{"sub": "did:web:consumer"})
	require.NoError(t, err)
	assert.Equal(t, "did:web:consumer", agent.Identity)
}

func TestResolveAgentNoIdentity(t *testing.T) {
	r := NewAgentResolver("client_id")
	_, err := r.ResolveAgent(gate.Claims{"aud": "x"})
	require.Error(t, err)
}
