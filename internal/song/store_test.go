package song

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satindergrewal/cueline/internal/validation"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{InMemory: true, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func valid(title string) Song {
	return Song{
		Title:            title,
		Lyrics:           "line one\nline two",
		SpeedPxPerSecond: 30,
		FontSizePx:       32,
		ThresholdDB:      -35,
	}
}

func TestOpenRequiresDir(t *testing.T) {
	_, err := Open(Options{})
	assert.Error(t, err)
}

func TestCreateGet(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, valid("  Wonderwall "))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Wonderwall", created.Title)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Title, got.Title)
	assert.Equal(t, created.Lyrics, got.Lyrics)
	assert.Equal(t, -35.0, got.ThresholdDB)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))
}

func TestGetMissing(t *testing.T) {
	s := newStore(t)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateInvalid(t *testing.T) {
	s := newStore(t)
	bad := valid("")
	bad.SpeedPxPerSecond = 0
	bad.ThresholdDB = 10

	_, err := s.Create(context.Background(), bad)
	var ve *validation.Error
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "title")
	assert.Contains(t, ve.Fields, "speed_px_per_second")
	assert.Contains(t, ve.Fields, "threshold_db")
}

func TestListOrdered(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	for _, title := range []string{"zebra", "Alpha", "mango"} {
		_, err := s.Create(ctx, valid(title))
		require.NoError(t, err)
	}

	songs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, songs, 3)
	assert.Equal(t, "Alpha", songs[0].Title)
	assert.Equal(t, "mango", songs[1].Title)
	assert.Equal(t, "zebra", songs[2].Title)
}

func TestListEmpty(t *testing.T) {
	songs, err := newStore(t).List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, songs)
	assert.Empty(t, songs)
}

func TestUpdate(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	created, err := s.Create(ctx, valid("Draft"))
	require.NoError(t, err)

	s.now = func() time.Time { return base.Add(time.Hour) }
	created.Title = "Final"
	created.SpeedPxPerSecond = 45
	created.CreatedAt = time.Time{}
	updated, err := s.Update(ctx, created)
	require.NoError(t, err)
	assert.True(t, updated.CreatedAt.Equal(base), "created time preserved")
	assert.True(t, updated.UpdatedAt.Equal(base.Add(time.Hour)))

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Final", got.Title)
	assert.Equal(t, 45.0, got.SpeedPxPerSecond)

	missing := valid("ghost")
	missing.ID = "missing"
	_, err = s.Update(ctx, missing)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	created, err := s.Create(ctx, valid("Gone"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, created.ID))
	_, err = s.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, created.ID), ErrNotFound)
}

func TestDefaultsAndScrollConfig(t *testing.T) {
	s := Song{Title: "x"}
	s.Defaults(Song{SpeedPxPerSecond: 30, FontSizePx: 32, ThresholdDB: -35})
	assert.Equal(t, 30.0, s.SpeedPxPerSecond)
	assert.Equal(t, 32.0, s.FontSizePx)
	assert.Equal(t, -35.0, s.ThresholdDB)

	cfg := s.ScrollConfig()
	assert.Equal(t, 30.0, cfg.SpeedPxPerSecond)
	assert.Equal(t, 32.0, cfg.FontSizePx)
}
