package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAttachmentSignerGenerateAndParse(t *testing.T) {
	signer := NewAttachmentSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("sub-1", "uploads/mc-42.pdf")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	submissionID, fileKey, parsedExpiry, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "sub-1", submissionID)
	require.Equal(t, "uploads/mc-42.pdf", fileKey)
	require.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestAttachmentSignerExpired(t *testing.T) {
	signer := NewAttachmentSigner("secret", time.Millisecond*10)
	token, _, err := signer.Generate("sub-1", "uploads/mc-42.pdf")
	require.NoError(t, err)
	time.Sleep(time.Millisecond * 20)

	_, _, _, err = signer.Parse(token)
	require.Error(t, err)
}

func TestAttachmentSignerRejectsTampering(t *testing.T) {
	signer := NewAttachmentSigner("secret", time.Hour)
	token, _, err := signer.Generate("sub-1", "uploads/mc-42.pdf")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token + "x")
	require.Error(t, err)
}
