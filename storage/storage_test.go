package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentuity/go-catalog/resilience"
)

func newRedisProvider(t *testing.T) (Provider, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client), mr
}

func TestProviders(t *testing.T) {
	providers := map[string]func(t *testing.T) Provider{
		"memory": func(t *testing.T) Provider { return NewMemory() },
		"redis": func(t *testing.T) Provider {
			p, _ := newRedisProvider(t)
			return p
		},
	}
	for name, factory := range providers {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := factory(t)

			obj, err := p.Put(ctx, "avatars/ada.png", []byte("png-bytes"), "image/png")
			require.NoError(t, err)
			assert.Equal(t, int64(9), obj.Size)
			assert.Equal(t, ETag([]byte("png-bytes")), obj.ETag)

			_, err = p.Put(ctx, "avatars/bob.png", []byte("other"), "image/png")
			require.NoError(t, err)
			_, err = p.Put(ctx, "docs/cv.pdf", []byte("pdf"), "application/pdf")
			require.NoError(t, err)

			data, got, err := p.Get(ctx, "avatars/ada.png")
			require.NoError(t, err)
			assert.Equal(t, "png-bytes", string(data))
			assert.Equal(t, "image/png", got.ContentType)
			assert.Equal(t, obj.ETag, got.ETag)

			list, err := p.List(ctx, "avatars/")
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "avatars/ada.png", list[0].Key)
			assert.Equal(t, "avatars/bob.png", list[1].Key)

			require.NoError(t, p.Delete(ctx, "avatars/ada.png"))
			_, _, err = p.Get(ctx, "avatars/ada.png")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.True(t, resilience.IsAbsent(err))
			assert.ErrorIs(t, p.Delete(ctx, "avatars/ada.png"), ErrNotFound)

			_, err = p.Put(ctx, "", nil, "")
			assert.Error(t, err)

			empty, err := p.List(ctx, "none/")
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestETagIsContentAddressed(t *testing.T) {
	assert.Equal(t, ETag([]byte("a")), ETag([]byte("a")))
	assert.NotEqual(t, ETag([]byte("a")), ETag([]byte("b")))
}

func TestFailover_RedisOutageFallsBackToMemory(t *testing.T) {
	ctx := context.Background()
	primary, mr := newRedisProvider(t)
	backup := NewMemory()
	monitor := resilience.NewHealthMonitor(resilience.DefaultHealthPolicy())
	d, err := resilience.NewDispatcher("storage", monitor, []resilience.Provider[Provider]{
		{ID: resilience.Primary, Impl: primary},
		{ID: resilience.Fallback, Impl: backup},
	})
	require.NoError(t, err)
	f := NewFailover(d)

	_, err = f.Put(ctx, "k", []byte("v1"), "text/plain")
	require.NoError(t, err)

	_, _, err = f.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, monitor.Health(resilience.Primary).FailureCount, "not found is a healthy answer")

	mr.Close()
	_, err = f.Put(ctx, "k", []byte("v2"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, 1, monitor.Health(resilience.Primary).FailureCount)

	data, _, err := f.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	list, err := f.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, list, 1)
	require.NoError(t, f.Delete(ctx, "k"))
}

func TestFailover_ReadsWritesMadeDuringOutage(t *testing.T) {
	ctx := context.Background()
	primary, mr := newRedisProvider(t)
	backup := NewMemory()
	monitor := resilience.NewHealthMonitor(resilience.DefaultHealthPolicy())
	d, err := resilience.NewDispatcher("storage", monitor, []resilience.Provider[Provider]{
		{ID: resilience.Primary, Impl: primary},
		{ID: resilience.Fallback, Impl: backup},
	})
	require.NoError(t, err)
	f := NewFailover(d)

	mr.Close()
	_, err = f.Put(ctx, "outage", []byte("kept"), "text/plain")
	require.NoError(t, err)
	require.NoError(t, mr.Restart())

	data, _, err := f.Get(ctx, "outage")
	require.NoError(t, err, "redis is back but the write only reached memory")
	assert.Equal(t, "kept", string(data))
	assert.Equal(t, 0, monitor.Health(resilience.Primary).FailureCount, "a miss on redis counts as healthy")

	require.NoError(t, f.Delete(ctx, "outage"))
	_, _, err = backup.Get(ctx, "outage")
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = f.Get(ctx, "outage")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, resilience.ErrAllProvidersExhausted)
}

func TestFailover_Exhausted(t *testing.T) {
	primary, mr := newRedisProvider(t)
	mr.Close()
	monitor := resilience.NewHealthMonitor(resilience.DefaultHealthPolicy())
	d, err := resilience.NewDispatcher("storage", monitor, []resilience.Provider[Provider]{{ID: resilience.Primary, Impl: primary}})
	require.NoError(t, err)

	_, err = NewFailover(d).List(context.Background(), "")
	assert.True(t, errors.Is(err, resilience.ErrAllProvidersExhausted))
}
