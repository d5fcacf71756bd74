package persistence

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ihuguet/nmstate/internal/domain/entities"
	domainerrors "github.com/ihuguet/nmstate/internal/domain/errors"
	"github.com/ihuguet/nmstate/internal/domain/interfaces"
	"github.com/ihuguet/nmstate/internal/infrastructure/adapters"
)

func newTestStore(t *testing.T) (interfaces.CheckpointStore, string) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	dir := t.TempDir()
	return NewFileCheckpointStore(dir, adapters.NewRealFileSystem(), logger), dir
}

func testCheckpoint(id string, createdAt time.Time) *interfaces.Checkpoint {
	mtu := 1500
	return &interfaces.Checkpoint{
		ID:        id,
		CreatedAt: createdAt,
		Deadline:  createdAt.Add(time.Minute),
		Snapshot: &entities.NetworkState{Interfaces: []entities.Interface{
			{Name: "eth0", Type: entities.InterfaceTypeEthernet, State: entities.InterfaceStateUp, MTU: &mtu},
		}},
	}
}

func TestFileCheckpointStore(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("저장 후 조회하면 스냅샷이 보존된다", func(t *testing.T) {
		store, dir := newTestStore(t)
		checkpoint := testCheckpoint("nmstate-1", base)

		require.NoError(t, store.Save(ctx, checkpoint))
		assert.FileExists(t, filepath.Join(dir, "nmstate-1.yaml"))

		loaded, err := store.Load(ctx, "nmstate-1")
		require.NoError(t, err)
		assert.Equal(t, checkpoint.ID, loaded.ID)
		assert.True(t, checkpoint.Deadline.Equal(loaded.Deadline))
		require.NotNil(t, loaded.Snapshot)
		assert.Equal(t, 1500, *loaded.Snapshot.Interface("eth0").MTU)
	})

	t.Run("없는 체크포인트 조회는 NotFound다", func(t *testing.T) {
		store, _ := newTestStore(t)

		_, err := store.Load(ctx, "nmstate-missing")
		require.Error(t, err)
		assert.True(t, domainerrors.IsNotFoundError(err))
	})

	t.Run("보류 조회는 가장 최근 체크포인트를 반환한다", func(t *testing.T) {
		store, _ := newTestStore(t)
		require.NoError(t, store.Save(ctx, testCheckpoint("nmstate-old", base)))
		require.NoError(t, store.Save(ctx, testCheckpoint("nmstate-new", base.Add(time.Hour))))

		pending, err := store.Pending(ctx)
		require.NoError(t, err)
		require.NotNil(t, pending)
		assert.Equal(t, "nmstate-new", pending.ID)
	})

	t.Run("디렉토리가 없으면 보류 체크포인트도 없다", func(t *testing.T) {
		logger := logrus.New()
		logger.SetOutput(io.Discard)
		store := NewFileCheckpointStore(
			filepath.Join(t.TempDir(), "does-not-exist"),
			adapters.NewRealFileSystem(), logger)

		pending, err := store.Pending(ctx)
		require.NoError(t, err)
		assert.Nil(t, pending)
	})

	t.Run("손상된 파일은 건너뛴다", func(t *testing.T) {
		store, dir := newTestStore(t)
		require.NoError(t, store.Save(ctx, testCheckpoint("nmstate-1", base)))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "corrupt.yaml"), []byte("{{{"), 0600))

		pending, err := store.Pending(ctx)
		require.NoError(t, err)
		require.NotNil(t, pending)
		assert.Equal(t, "nmstate-1", pending.ID)
	})

	t.Run("삭제는 멱등하다", func(t *testing.T) {
		store, _ := newTestStore(t)
		require.NoError(t, store.Save(ctx, testCheckpoint("nmstate-1", base)))

		require.NoError(t, store.Delete(ctx, "nmstate-1"))
		require.NoError(t, store.Delete(ctx, "nmstate-1"))

		pending, err := store.Pending(ctx)
		require.NoError(t, err)
		assert.Nil(t, pending)
	})
}
