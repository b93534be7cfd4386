package handler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rl1809/library-lending/internal/adapter/storage"
	"github.com/rl1809/library-lending/internal/core/service"
)

var fixedNow = time.Date(2024, time.March, 1, 10, 30, 0, 0, time.UTC)

func newTestEngine(t *testing.T) *service.Engine {
	t.Helper()

	ctx := context.Background()
	store, err := storage.Open(ctx, storage.DriverSQLite, filepath.Join(t.TempDir(), "lending.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(ctx))

	return service.NewEngine(store,
		service.WithClock(func() time.Time { return fixedNow }),
		service.WithRequestGuard(storage.NewLRUGuard(0, time.Hour)),
	)
}
