package keystore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initializedStore(t *testing.T) *Store {
	t.Helper()
	s := New()
	require.NoError(t, s.Initialize("correct horse battery staple"))
	return s
}

func TestPutGet_RoundTrip(t *testing.T) {
	t.Parallel()
	s := initializedStore(t)

	require.NoError(t, s.Put("stripe-sandbox", "Stripe sandbox key", []byte("sk_test_123")))

	secret, err := s.Get("stripe-sandbox")
	require.NoError(t, err)
	assert.Equal(t, []byte("sk_test_123"), secret)
}

func TestGet_RequiresInitialization(t *testing.T) {
	t.Parallel()
	s := New()
	_, err := s.Get("anything")
	assert.ErrorIs(t, err, ErrNotInitialized)

	err = s.Put("anything", "", []byte("x"))
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestGet_UnknownKey(t *testing.T) {
	t.Parallel()
	s := initializedStore(t)
	_, err := s.Get("missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestPut_InvalidKeyID(t *testing.T) {
	t.Parallel()
	s := initializedStore(t)
	assert.ErrorIs(t, s.Put("bad id with spaces", "", []byte("x")), ErrInvalidKeyID)
	assert.ErrorIs(t, s.Put("", "", []byte("x")), ErrInvalidKeyID)
}

func TestGet_TracksUseCount(t *testing.T) {
	t.Parallel()
	s := initializedStore(t)
	require.NoError(t, s.Put("k", "", []byte("v")))

	_, err := s.Get("k")
	require.NoError(t, err)
	_, err = s.Get("k")
	require.NoError(t, err)

	keys, err := s.List()
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, uint64(2), keys[0].UseCount)
}

func TestRotate_PreservesSecretAndCounts(t *testing.T) {
	t.Parallel()
	s := initializedStore(t)
	require.NoError(t, s.Put("k", "", []byte("v")))

	require.NoError(t, s.Rotate("k"))

	secret, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), secret)

	keys, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, 1, keys[0].Rotations)
}

func TestExpiration(t *testing.T) {
	t.Parallel()
	s := initializedStore(t)
	require.NoError(t, s.Put("k", "", []byte("v")))
	require.NoError(t, s.SetExpiration("k", time.Now().Add(-time.Minute)))

	_, err := s.Get("k")
	assert.ErrorIs(t, err, ErrKeyExpired)

	removed, err := s.CleanupExpired()
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, removed)

	stats, err := s.Statistics()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalKeys)
}

func TestStatistics(t *testing.T) {
	t.Parallel()
	s := initializedStore(t)
	require.NoError(t, s.Put("a", "", []byte("1")))
	require.NoError(t, s.Put("b", "", []byte("2")))
	require.NoError(t, s.SetExpiration("b", time.Now().Add(-time.Second)))

	stats, err := s.Statistics()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalKeys)
	assert.Equal(t, 1, stats.ExpiredKeys)
}

func TestFileStorage_Persistence(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	backend, err := NewFileStorage(dir)
	require.NoError(t, err)
	s := WithStorage(backend)
	require.NoError(t, s.Initialize("passphrase"))
	require.NoError(t, s.Put("persisted", "label", []byte("value")))

	// A new store over the same directory sees the sealed record; the
	// secret opens only under the same master key instance.
	backend2, err := NewFileStorage(dir)
	require.NoError(t, err)
	records, err := backend2.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "persisted", records[0].Metadata.ID)
	assert.NotContains(t, string(records[0].Sealed), "value", "plaintext must never be persisted")
}

func TestGenerateAndValidateKeyID(t *testing.T) {
	t.Parallel()
	id := GenerateKeyID()
	assert.NoError(t, ValidateKeyID(id))
	assert.Error(t, ValidateKeyID("no/slashes"))
}
