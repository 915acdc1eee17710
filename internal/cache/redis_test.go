package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/and161185/kodeverk-admin/internal/model"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	c, err := NewRedisCache(context.Background(), "redis://"+s.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, s
}

func info(id string, at time.Time) model.VersionInfo {
	return model.VersionInfo{Kind: model.KindKodeverk, VersionID: id, CreatedBy: "Z1", CreatedAt: at, UpdatedAt: at}
}

func TestNewRedisCache_BadURL(t *testing.T) {
	_, err := NewRedisCache(context.Background(), "://nope")
	require.Error(t, err)
}

func TestLatest_MissReturnsFalse(t *testing.T) {
	c, _ := setupTestRedis(t)

	_, ok, err := c.GetLatest(context.Background(), model.KindKodeverk)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLatest_SetAndGet(t *testing.T) {
	c, s := setupTestRedis(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, c.SetLatest(ctx, info("v1", at), 0))
	require.True(t, s.Exists("kodeverk:latest:kodeverk"))

	got, ok, err := c.GetLatest(ctx, model.KindKodeverk)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v1", got.VersionID)
	require.True(t, got.UpdatedAt.Equal(at))

	_, ok, err = c.GetLatest(ctx, model.KindSaksbehandlerUI)
	require.NoError(t, err)
	require.False(t, ok, "pointers are per kind")
}

func TestLatest_OlderPointerDoesNotWin(t *testing.T) {
	c, _ := setupTestRedis(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, c.SetLatest(ctx, info("v2", at.Add(time.Second)), 0))
	require.NoError(t, c.SetLatest(ctx, info("v1", at), 0))

	got, ok, err := c.GetLatest(ctx, model.KindKodeverk)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v2", got.VersionID)
}

func TestLatest_CorruptValueIsError(t *testing.T) {
	c, s := setupTestRedis(t)
	s.HSet("kodeverk:latest:kodeverk", "info", "{not json")

	_, _, err := c.GetLatest(context.Background(), model.KindKodeverk)
	require.Error(t, err)
}

func TestLatest_Invalidate(t *testing.T) {
	c, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.SetLatest(ctx, info("v1", time.Now()), 0))
	require.NoError(t, c.InvalidateLatest(ctx, model.KindKodeverk))

	_, ok, err := c.GetLatest(ctx, model.KindKodeverk)
	require.NoError(t, err)
	require.False(t, ok)

	gen, err := c.Generation(ctx, model.KindKodeverk)
	require.NoError(t, err)
	require.Equal(t, int64(1), gen)
}

func TestLatest_InterleavedSettersKeepLaterPointer(t *testing.T) {
	c, _ := setupTestRedis(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	// Both readers see the same generation before listing.
	genA, err := c.Generation(ctx, model.KindKodeverk)
	require.NoError(t, err)
	genB, err := c.Generation(ctx, model.KindKodeverk)
	require.NoError(t, err)

	require.NoError(t, c.SetLatest(ctx, info("v2", at.Add(time.Second)), genB))
	require.NoError(t, c.SetLatest(ctx, info("v1", at), genA))

	got, ok, err := c.GetLatest(ctx, model.KindKodeverk)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v2", got.VersionID)

	// Same timestamp: the version id decides.
	require.NoError(t, c.SetLatest(ctx, info("v3", at.Add(time.Second)), genA))
	got, _, err = c.GetLatest(ctx, model.KindKodeverk)
	require.NoError(t, err)
	require.Equal(t, "v3", got.VersionID)
}

func TestLatest_ListingFromBeforeInvalidationIsDropped(t *testing.T) {
	c, _ := setupTestRedis(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	gen, err := c.Generation(ctx, model.KindKodeverk)
	require.NoError(t, err)
	// A commit lands between the listing and the write-back.
	require.NoError(t, c.InvalidateLatest(ctx, model.KindKodeverk))
	require.NoError(t, c.SetLatest(ctx, info("v1", at), gen))

	_, ok, err := c.GetLatest(ctx, model.KindKodeverk)
	require.NoError(t, err)
	require.False(t, ok, "stale listing must not repopulate the pointer")

	gen, err = c.Generation(ctx, model.KindKodeverk)
	require.NoError(t, err)
	require.NoError(t, c.SetLatest(ctx, info("v2", at), gen))
	got, ok, err := c.GetLatest(ctx, model.KindKodeverk)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v2", got.VersionID)
}

func TestLatest_PointerExpires(t *testing.T) {
	c, s := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.SetLatest(ctx, info("v1", time.Now()), 0))
	s.FastForward(25 * time.Hour)

	_, ok, err := c.GetLatest(ctx, model.KindKodeverk)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestExternalCodes_TTL(t *testing.T) {
	c, s := setupTestRedis(t)
	c.WithExternalTTL(time.Minute)
	ctx := context.Background()

	require.NoError(t, c.SetCodes(ctx, []string{"A", "B"}))
	codes, ok, err := c.GetCodes(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"A", "B"}, codes)

	s.FastForward(2 * time.Minute)
	_, ok, err = c.GetCodes(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisDown(t *testing.T) {
	c, s := setupTestRedis(t)
	s.Close()

	_, _, err := c.GetLatest(context.Background(), model.KindKodeverk)
	require.Error(t, err)
	require.Error(t, c.Ping(context.Background()))
}
