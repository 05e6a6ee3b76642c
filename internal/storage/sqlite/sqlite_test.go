package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/yomiage/internal/storage"
	"github.com/keshon/yomiage/internal/storage/storagetest"
)

func TestSQLiteStoreContract(t *testing.T) {
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "voice.db"))
	require.NoError(t, err)
	defer s.Close()

	storagetest.Run(t, s)
}

func TestClosedSQLiteStoreIsUnavailable(t *testing.T) {
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "voice.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.FetchOrCreateGuild(context.Background(), "g1")
	assert.ErrorIs(t, err, storage.ErrUnavailable)
}
