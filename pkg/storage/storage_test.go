package storage

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadSignerSignAndVerify(t *testing.T) {
	signer := NewDownloadSigner("secret", time.Hour)
	token, expiresAt, err := signer.Sign("report-cards/report-card-enr-1.csv")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	name, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "report-cards/report-card-enr-1.csv", name)
}

func TestDownloadSignerExpired(t *testing.T) {
	signer := NewDownloadSigner("secret", time.Nanosecond)
	token, _, err := signer.Sign("a.csv")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	_, err = signer.Verify(token)
	require.Error(t, err)
}

func TestDownloadSignerRejectsTampering(t *testing.T) {
	signer := NewDownloadSigner("secret", time.Hour)
	token, _, err := signer.Sign("a.csv")
	require.NoError(t, err)

	_, err = NewDownloadSigner("other", time.Hour).Verify(token)
	require.Error(t, err)
}

func TestExportStoreRoundTrip(t *testing.T) {
	store, err := NewExportStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save("report-cards/a.csv", []byte("hello")))

	file, err := store.Open("report-cards/a.csv")
	require.NoError(t, err)
	defer file.Close()
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestExportStoreRejectsEscapingPaths(t *testing.T) {
	store, err := NewExportStore(t.TempDir())
	require.NoError(t, err)

	require.Error(t, store.Save("../outside.csv", []byte("nope")))
	_, err = store.Open("/etc/passwd")
	require.Error(t, err)
}

func TestExportStorePruneOlderThan(t *testing.T) {
	store, err := NewExportStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Save("old.csv", []byte("x")))

	pruned, err := store.PruneOlderThan(-time.Hour)
	require.NoError(t, err)
	assert.Contains(t, pruned, "old.csv")

	_, err = store.Open("old.csv")
	require.Error(t, err)
}
