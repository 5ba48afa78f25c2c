package auth

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokensRoundTrip(t *testing.T) {
	tokens, err := NewTokens(time.Hour)
	require.NoError(t, err)

	tok, err := tokens.Issue("player-1")
	require.NoError(t, err)

	sub, err := tokens.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "player-1", sub)
}

func TestTokensRejectForeignAndExpired(t *testing.T) {
	a, err := NewTokens(0)
	require.NoError(t, err)
	b, err := NewTokens(0)
	require.NoError(t, err)

	tok, err := a.Issue("player-1")
	require.NoError(t, err)
	_, err = b.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := NewTokens(time.Nanosecond)
	require.NoError(t, err)
	tok, err = expired.Issue("player-2")
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)
	_, err = expired.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = a.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLoadTokens(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	dir := t.TempDir()
	privPath := filepath.Join(dir, "key")
	pubPath := filepath.Join(dir, "key.pub")
	require.NoError(t, os.WriteFile(privPath, priv, 0o600))
	require.NoError(t, os.WriteFile(pubPath, pub, 0o644))

	tokens, err := LoadTokens(privPath, pubPath, 0)
	require.NoError(t, err)
	tok, err := tokens.Issue("p")
	require.NoError(t, err)
	sub, err := tokens.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "p", sub)

	require.NoError(t, os.WriteFile(pubPath, []byte("short"), 0o644))
	_, err = LoadTokens(privPath, pubPath, 0)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))

	ok, err := VerifyPassword("hunter2", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("hunter3", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = VerifyPassword("x", "$bcrypt$nope")
	assert.ErrorIs(t, err, ErrInvalidHash)
}

func TestResolvePrecedence(t *testing.T) {
	tokens, err := NewTokens(0)
	require.NoError(t, err)
	tok, err := tokens.Issue("from-token")
	require.NoError(t, err)

	r := NewResolver(tokens)
	r.newID = func() string { return "minted-id" }

	tests := []struct {
		name   string
		req    Request
		id     string
		source Source
	}{
		{"explicit id wins over token", Request{Name: "a", ID: "profile-7", Token: tok}, "profile-7", SourceProfile},
		{"token when no id", Request{Name: "a", Token: tok}, "from-token", SourceToken},
		{"bad token mints", Request{Name: "a", Token: "garbage"}, "minted-id", SourceMinted},
		{"nothing mints", Request{Name: "a"}, "minted-id", SourceMinted},
		{"blank id mints", Request{Name: "a", ID: "   "}, "minted-id", SourceMinted},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ident, err := r.Resolve(tc.req)
			require.NoError(t, err)
			assert.Equal(t, tc.id, ident.ID)
			assert.Equal(t, tc.source, ident.Source)
		})
	}
}

func TestResolveRejectsBadIDs(t *testing.T) {
	r := NewResolver(nil)
	for _, id := range []string{"has space", "tab\tid", strings.Repeat("x", MaxIDLength+1)} {
		_, err := r.Resolve(Request{Name: "a", ID: id})
		assert.ErrorIs(t, err, ErrInvalidIdentity, id)
	}
}

func TestResolveNames(t *testing.T) {
	r := NewResolver(nil)

	ident, err := r.Resolve(Request{Name: "  alice \n", ID: "abcdef"})
	require.NoError(t, err)
	assert.Equal(t, "alice", ident.Name)

	ident, err = r.Resolve(Request{ID: "abcdef"})
	require.NoError(t, err)
	assert.Equal(t, "Player-abcd", ident.Name)

	long := strings.Repeat("é", MaxNameLength+10)
	assert.Len(t, []rune(CleanName(long)), MaxNameLength)
}
