package storage_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/yomiage/datastore"
	"github.com/keshon/yomiage/internal/storage"
	"github.com/keshon/yomiage/internal/storage/storagetest"
)

func newJSONStore(t *testing.T) *storage.Storage {
	t.Helper()
	ds, err := datastore.NewWithConfig(&datastore.Config{
		FilePath: filepath.Join(t.TempDir(), "store.json"),
	})
	require.NoError(t, err)
	return storage.NewWithDataStore(ds)
}

func TestJSONStoreContract(t *testing.T) {
	s := newJSONStore(t)
	defer s.Close()
	storagetest.Run(t, s)
}

func TestClosedJSONStoreIsUnavailable(t *testing.T) {
	s := newJSONStore(t)
	require.NoError(t, s.Close())

	_, err := s.FetchOrCreateUser(context.Background(), "u1")
	assert.ErrorIs(t, err, storage.ErrUnavailable)
	assert.ErrorIs(t, err, datastore.ErrClosed)
}

func TestUnavailableWrapsBoth(t *testing.T) {
	cause := errors.New("disk gone")
	err := storage.Unavailable("fetch", cause)

	assert.ErrorIs(t, err, storage.ErrUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "fetch")
}
