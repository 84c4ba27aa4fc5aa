package reserved

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*Service, *InMemory) {
	t.Helper()
	store := NewInMemory()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	return New(store, logger, WithWatermarks(store)), store
}

func TestAppend(t *testing.T) {
	ctx := context.Background()

	t.Run("folds names and skips duplicates silently", func(t *testing.T) {
		svc, _ := newService(t)

		added, err := svc.Append(ctx, []string{"dappStore.appStore", "uniswap.app"})
		require.NoError(t, err)
		assert.Equal(t, 2, added)

		// Same names again, different casing: nothing inserted, no error.
		added, err = svc.Append(ctx, []string{"DAPPSTORE.APPSTORE", "uniswap.app"})
		require.NoError(t, err)
		assert.Equal(t, 0, added)

		n, err := svc.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("lookup is case-insensitive", func(t *testing.T) {
		svc, _ := newService(t)
		_, err := svc.Append(ctx, []string{"dappStore.appStore"})
		require.NoError(t, err)

		ok, err := svc.IsReserved(ctx, "dappstore.appStore")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = svc.IsReserved(ctx, "other.appStore")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("empty entries are ignored", func(t *testing.T) {
		svc, _ := newService(t)
		added, err := svc.Append(ctx, []string{"", "  ", "real.app"})
		require.NoError(t, err)
		assert.Equal(t, 1, added)
	})
}

func TestIngest(t *testing.T) {
	ctx := context.Background()

	makeList := func(n int) []string {
		list := make([]string, n)
		for i := range list {
			list[i] = fmt.Sprintf("name%04d.app", i)
		}
		return list
	}

	t.Run("ingests in batches and commits the watermark", func(t *testing.T) {
		svc, store := newService(t)
		list := makeList(250)

		added, err := svc.Ingest(ctx, "dapp-names", list)
		require.NoError(t, err)
		assert.Equal(t, 250, added)

		mark, err := store.Watermark(ctx, "dapp-names")
		require.NoError(t, err)
		assert.Equal(t, 250, mark)
	})

	t.Run("resumes from the watermark", func(t *testing.T) {
		svc, store := newService(t)
		list := makeList(150)

		// First 100 already whitelisted in an earlier run.
		require.NoError(t, store.SetWatermark(ctx, "dapp-names", 100))

		added, err := svc.Ingest(ctx, "dapp-names", list)
		require.NoError(t, err)
		assert.Equal(t, 50, added)
	})

	t.Run("is a no-op once the list is fully ingested", func(t *testing.T) {
		svc, _ := newService(t)
		list := makeList(80)

		_, err := svc.Ingest(ctx, "dapp-names", list)
		require.NoError(t, err)

		added, err := svc.Ingest(ctx, "dapp-names", list)
		require.NoError(t, err)
		assert.Equal(t, 0, added)
	})
}
