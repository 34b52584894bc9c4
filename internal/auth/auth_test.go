package auth

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(GenericEnv, "")
	for _, name := range envNames {
		t.Setenv(name, "")
	}
}

func fileStore(t *testing.T) *Store {
	t.Helper()
	clearEnv(t)
	t.Setenv("TADA_NO_KEYRING", "1")
	s := NewStore(t.TempDir())
	require.False(t, s.UsingKeyring())
	return s
}

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return tok
}

func TestFileStore(t *testing.T) {
	s := fileStore(t)

	sec, err := s.Get("supabase")
	require.NoError(t, err)
	assert.Nil(t, sec, "nothing stored yet")

	require.NoError(t, s.Set("supabase", "Bearer abc", nil))
	require.NoError(t, s.Set("redis", "hunter2", nil))

	sec, err = s.Get("supabase")
	require.NoError(t, err)
	require.NotNil(t, sec)
	assert.Equal(t, "abc", sec.Value)
	assert.Equal(t, SourceFile, sec.Source)
	assert.False(t, sec.CreatedAt.IsZero())

	fi, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())

	require.NoError(t, s.Delete("supabase"))
	sec, err = s.Get("supabase")
	require.NoError(t, err)
	assert.Nil(t, sec)

	sec, err = s.Get("redis")
	require.NoError(t, err)
	require.NotNil(t, sec)
	assert.Equal(t, "hunter2", sec.Value)

	require.NoError(t, s.Delete("redis"))
	_, err = os.Stat(s.Path())
	assert.True(t, errors.Is(err, os.ErrNotExist), "empty credentials file is removed")

	require.NoError(t, s.Delete("redis"), "deleting twice is fine")
}

func TestEmptySecretRejected(t *testing.T) {
	s := fileStore(t)
	assert.Error(t, s.Set("supabase", "  ", nil))
	assert.Error(t, s.Set("supabase", "Bearer ", nil))
	assert.Error(t, s.Set("supabase", " bearer", nil))

	sec, err := s.Get("supabase")
	require.NoError(t, err)
	assert.Nil(t, sec, "nothing was stored")

	t.Setenv(GenericEnv, "Bearer")
	sec, err = s.Get("supabase")
	require.NoError(t, err)
	assert.Nil(t, sec, "a bare scheme in the environment is not a secret")
}

func TestStripBearer(t *testing.T) {
	assert.Equal(t, "abc", stripBearer("Bearer abc"))
	assert.Equal(t, "abc", stripBearer("  bearer   abc "))
	assert.Equal(t, "", stripBearer("Bearer "))
	assert.Equal(t, "", stripBearer("BEARER"))
	assert.Equal(t, "bearerabc", stripBearer("bearerabc"))
}

func TestEnvOverride(t *testing.T) {
	s := fileStore(t)
	require.NoError(t, s.Set("supabase", "stored", nil))

	t.Setenv(GenericEnv, "generic")
	sec, err := s.Get("supabase")
	require.NoError(t, err)
	assert.Equal(t, "generic", sec.Value)
	assert.Equal(t, SourceEnv, sec.Source)

	t.Setenv("TADA_SUPABASE_KEY", "bearer specific")
	sec, err = s.Get("supabase")
	require.NoError(t, err)
	assert.Equal(t, "specific", sec.Value)

	sec, err = s.Get("azure")
	require.NoError(t, err)
	assert.Equal(t, "generic", sec.Value, "generic env applies to every backend")
}

func TestCorruptFile(t *testing.T) {
	s := fileStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{"), 0o600))
	_, err := s.Get("supabase")
	assert.Error(t, err)
}

func TestKeyringStore(t *testing.T) {
	clearEnv(t)
	t.Setenv("TADA_NO_KEYRING", "")
	keyring.MockInit()

	s := NewStore(t.TempDir())
	require.True(t, s.UsingKeyring())

	exp := time.Now().Add(time.Hour).Unix()
	tok := signed(t, jwt.MapClaims{"role": "anon", "exp": exp})
	require.NoError(t, s.Set("supabase", tok, nil))

	sec, err := s.Get("supabase")
	require.NoError(t, err)
	require.NotNil(t, sec)
	assert.Equal(t, tok, sec.Value)
	assert.Equal(t, SourceKeyring, sec.Source)
	require.NotNil(t, sec.ExpiresAt, "exp claim fills ExpiresAt")
	assert.Equal(t, exp, sec.ExpiresAt.Unix())

	_, err = os.Stat(s.Path())
	assert.True(t, errors.Is(err, os.ErrNotExist), "keyring mode never writes the file")

	require.NoError(t, s.Delete("supabase"))
	sec, err = s.Get("supabase")
	require.NoError(t, err)
	assert.Nil(t, sec)
	require.NoError(t, s.Delete("supabase"))
}

func TestParseClaims(t *testing.T) {
	tok := signed(t, jwt.MapClaims{
		"iss":  "supabase",
		"ref":  "abcdefgh",
		"role": "anon",
		"iat":  1700000000,
		"exp":  1700003600,
	})

	c, err := ParseClaims(tok)
	require.NoError(t, err)
	assert.Equal(t, "supabase", c.Issuer)
	assert.Equal(t, "abcdefgh", c.Ref)
	assert.Equal(t, "anon", c.Role)
	require.NotNil(t, c.IssuedAt)
	assert.Equal(t, int64(1700000000), c.IssuedAt.Unix())
	assert.True(t, c.Expired(time.Unix(1700003601, 0)))
	assert.False(t, c.Expired(time.Unix(1700000001, 0)))

	_, err = ParseClaims("plain-password")
	assert.ErrorIs(t, err, ErrOpaque)
	_, err = ParseClaims("a.b.c")
	assert.ErrorIs(t, err, ErrOpaque)
}

func TestNeedsSecret(t *testing.T) {
	assert.True(t, NeedsSecret("supabase"))
	assert.True(t, NeedsSecret("redis"))
	assert.False(t, NeedsSecret("file"))
	assert.Equal(t, "TADA_AZURE_CONNECTION_STRING", EnvName("azure"))
}
