package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/careassist/webgate/internal/domain/auth"
	"github.com/careassist/webgate/internal/testutil"
)

func TestTokenStore_WriteAndRead(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewTokenStore(client, time.Hour)
	ctx := context.Background()

	err := store.Write(ctx, "sid-1", domainauth.Token("abc"))
	require.NoError(t, err)

	tok, err := store.Read(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, domainauth.Token("abc"), tok)
}

func TestTokenStore_ReadMissing(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewTokenStore(client, time.Hour)

	tok, err := store.Read(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, tok.Present())
}

func TestTokenStore_DeleteIsIdempotent(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewTokenStore(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "sid-1", domainauth.Token("abc")))
	require.NoError(t, store.Delete(ctx, "sid-1"))

	tok, err := store.Read(ctx, "sid-1")
	require.NoError(t, err)
	assert.False(t, tok.Present())

	// Second delete of an absent token is a no-op, not an error.
	require.NoError(t, store.Delete(ctx, "sid-1"))
	require.NoError(t, store.Delete(ctx, ""))
}

func TestTokenStore_RejectsEmptyInputs(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewTokenStore(client, time.Hour)
	ctx := context.Background()

	assert.Error(t, store.Write(ctx, "", domainauth.Token("abc")))
	assert.Error(t, store.Write(ctx, "sid-1", domainauth.Token("")))
}

func TestFlagStore_SetOncePerTTL(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewFlagStore(client)
	ctx := context.Background()

	first, err := store.Set(ctx, "sid-1", "/dashboard", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := store.Set(ctx, "sid-1", "/dashboard", time.Minute)
	require.NoError(t, err)
	assert.False(t, second)

	// A different path is an independent flag.
	other, err := store.Set(ctx, "sid-1", "/profile", time.Minute)
	require.NoError(t, err)
	assert.True(t, other)
}

func TestFlagStore_ClearAllowsNewRedirect(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewFlagStore(client)
	ctx := context.Background()

	_, err := store.Set(ctx, "sid-1", "/dashboard", time.Minute)
	require.NoError(t, err)

	require.NoError(t, store.Clear(ctx, "sid-1", "/dashboard"))

	again, err := store.Set(ctx, "sid-1", "/dashboard", time.Minute)
	require.NoError(t, err)
	assert.True(t, again)

	// Clearing an absent flag is a no-op.
	require.NoError(t, store.Clear(ctx, "sid-1", "/dashboard"))
	require.NoError(t, store.Clear(ctx, "", ""))
}
