package cryptox_test

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/quollsoft/recordgate/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestGenerateTokenLength(t *testing.T) {
	tok, err := cryptox.GenerateToken(cryptox.TokenSize256)
	require.NoError(t, err)
	require.Len(t, tok, 43) // 32 bytes base64url, no padding

	short, err := cryptox.GenerateToken(cryptox.TokenSize128)
	require.NoError(t, err)
	require.Len(t, short, 22)
}

func TestGenerateTokenRejectsNonPositiveSize(t *testing.T) {
	_, err := cryptox.GenerateToken(0)
	require.Error(t, err)

	_, err = cryptox.GenerateToken(-4)
	require.Error(t, err)
}

func TestGenerateTokenUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for range 100 {
		tok, err := cryptox.GenerateToken(cryptox.TokenSize256)
		require.NoError(t, err)
		_, dup := seen[tok]
		require.False(t, dup, "token collision")
		seen[tok] = struct{}{}
	}
}

func TestFingerprintTokenDeterministic(t *testing.T) {
	a := cryptox.FingerprintToken("some-token")
	b := cryptox.FingerprintToken("some-token")
	require.Equal(t, a, b)
	require.NotEqual(t, a, cryptox.FingerprintToken("other-token"))
}

func TestS256Challenge(t *testing.T) {
	// Reference vector from RFC 7636 appendix B.
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	require.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", cryptox.S256Challenge(verifier))

	sum := sha256.Sum256([]byte("abc"))
	require.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), cryptox.S256Challenge("abc"))
}

func TestVerifyS256Challenge(t *testing.T) {
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	challenge := cryptox.S256Challenge(verifier)

	require.True(t, cryptox.VerifyS256Challenge(challenge, verifier))
	require.False(t, cryptox.VerifyS256Challenge(challenge, "wrong-verifier"))
	require.False(t, cryptox.VerifyS256Challenge("", verifier))
	require.False(t, cryptox.VerifyS256Challenge(challenge, ""))
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := cryptox.HashPassword("hunter2!")
	require.NoError(t, err)
	require.Contains(t, hash, "$argon2id$v=19$")

	require.NoError(t, cryptox.VerifyPassword("hunter2!", hash))
	require.Error(t, cryptox.VerifyPassword("hunter3!", hash))
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	require.Error(t, cryptox.VerifyPassword("pw", "not-a-hash"))
	require.Error(t, cryptox.VerifyPassword("pw", "$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA"))
}
