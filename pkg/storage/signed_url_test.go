package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)

	token, expiresAt, err := signer.Generate("rec-1", "exports/TK-1_2026-08-31.pdf")
	require.NoError(t, err)
	require.True(t, expiresAt.After(time.Now()))

	id, relPath, parsedExp, err := signer.Parse(token, false)
	require.NoError(t, err)
	require.Equal(t, "rec-1", id)
	require.Equal(t, "exports/TK-1_2026-08-31.pdf", relPath)
	require.Equal(t, expiresAt.Unix(), parsedExp.Unix())
}

func TestSignedURLRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("rec-1", "exports/a.pdf")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token+"x", false)
	require.Error(t, err)

	other := NewSignedURLSigner("other-secret", time.Hour)
	_, _, _, err = other.Parse(token, false)
	require.Error(t, err)
}

func TestSignedURLExpiry(t *testing.T) {
	signer := NewSignedURLSigner("secret", -time.Minute)
	// constructor clamps non-positive TTLs, so build an expired token manually
	signer.ttl = -time.Minute
	token, _, err := signer.Generate("rec-1", "exports/a.pdf")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token, false)
	require.Error(t, err)

	_, relPath, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	require.Equal(t, "exports/a.pdf", relPath)
}
