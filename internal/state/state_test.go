package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/lorenzotomasdiez/chatbot-clinic/internal/clinic"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState() clinic.SavedState {
	return clinic.SavedState{
		Bots: []clinic.Bot{
			{ID: "a", Name: "Alice", Context: "You are Alice.", Model: "m1", Enabled: true,
				Parameters: map[string]any{"temperature": 0.7}},
			{ID: "b", Name: "Bob", Preset: "Creative", Enabled: false},
		},
		Tally:    clinic.Tally{"a": 3, "b": 1},
		Settings: clinic.Settings{UserName: "Pat", BotName: "Robo", Greeting: "Hi"},
	}
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisStoreFromClient(rdb, ""), mr
}

func stores(t *testing.T) map[string]clinic.Store {
	rs, _ := newRedisStore(t)
	return map[string]clinic.Store{
		"file":  NewFileStore(filepath.Join(t.TempDir(), "nested", "state.json")),
		"redis": rs,
	}
}

func TestStoresLoadEmpty(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			st, err := s.Load(context.Background())
			require.NoError(t, err)
			assert.Empty(t, st.Bots)
			assert.Zero(t, st.Tally.Sum())
			assert.Equal(t, clinic.Settings{}, st.Settings)
		})
	}
}

func TestStoresMarkSavedState(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			st, err := s.Load(ctx)
			require.NoError(t, err)
			assert.False(t, st.Saved, "nothing saved yet")

			require.NoError(t, s.Save(ctx, clinic.SavedState{}))
			st, err = s.Load(ctx)
			require.NoError(t, err)
			assert.True(t, st.Saved, "an empty bot list was saved on purpose")
			assert.Empty(t, st.Bots)
		})
	}
}

func TestRedisStorePartialKeys(t *testing.T) {
	ctx := context.Background()

	t.Run("tally only", func(t *testing.T) {
		s, mr := newRedisStore(t)
		mr.HSet(DefaultKeyPrefix+"tally", "a", "2")
		st, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, clinic.Tally{"a": 2}, st.Tally)
		assert.Empty(t, st.Bots)
	})

	t.Run("bots without settings", func(t *testing.T) {
		s, mr := newRedisStore(t)
		require.NoError(t, mr.Set(DefaultKeyPrefix+"bots", `[{"id":"a","name":"Alice","context":"","enabled":true}]`))
		st, err := s.Load(ctx)
		require.NoError(t, err)
		require.Len(t, st.Bots, 1)
		assert.Equal(t, "Alice", st.Bots[0].Name)
		assert.Equal(t, clinic.Settings{}, st.Settings)
		assert.True(t, st.Saved)
	})
}

func TestSessionLoadsFromEmptyRedis(t *testing.T) {
	ctx := context.Background()
	rs, _ := newRedisStore(t)
	backend := clinic.BackendFunc(func(_ context.Context, req clinic.Request) (string, error) {
		return "reply from " + req.Model, nil
	})

	s := clinic.NewSession(rs, clinic.NewGenerator(backend))
	require.NoError(t, s.Load(ctx))
	assert.True(t, s.Fresh())
	assert.Empty(t, s.Bots())
	assert.Equal(t, clinic.DefaultSettings(), s.Settings())

	_, err := s.AddBot(ctx, clinic.Bot{Name: "Alice", Model: "m1", Enabled: true})
	require.NoError(t, err)
	assert.False(t, s.Fresh())

	restarted := clinic.NewSession(rs, clinic.NewGenerator(backend))
	require.NoError(t, restarted.Load(ctx))
	assert.False(t, restarted.Fresh())
	require.Len(t, restarted.Bots(), 1)
}

func TestStoresRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			want := sampleState()
			require.NoError(t, s.Save(ctx, want))

			got, err := s.Load(ctx)
			require.NoError(t, err)
			require.Len(t, got.Bots, 2)
			assert.Equal(t, "Alice", got.Bots[0].Name)
			assert.Equal(t, "Bob", got.Bots[1].Name, "bot order must survive")
			assert.InDelta(t, 0.7, got.Bots[0].Parameters["temperature"], 1e-9)
			assert.True(t, got.Bots[0].Enabled)
			assert.Equal(t, want.Tally, got.Tally)
			assert.Equal(t, want.Settings, got.Settings)
		})
	}
}

func TestStoresOverwriteTally(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Save(ctx, sampleState()))
			next := sampleState()
			next.Tally = clinic.Tally{"b": 2}
			require.NoError(t, s.Save(ctx, next))

			got, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, clinic.Tally{"b": 2}, got.Tally, "stale tally entries must be removed")
		})
	}
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(filepath.Join(dir, "state.json"))
	require.NoError(t, s.Save(context.Background(), sampleState()))
	require.NoError(t, s.Save(context.Background(), sampleState()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.json", entries[0].Name())
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileStore(path).Load(context.Background())
	assert.Error(t, err)
}

func TestRedisStoreUsesPrefix(t *testing.T) {
	s, mr := newRedisStore(t)
	require.NoError(t, s.Save(context.Background(), sampleState()))

	assert.True(t, mr.Exists(DefaultKeyPrefix+"bots"))
	assert.True(t, mr.Exists(DefaultKeyPrefix+"settings"))
	assert.Equal(t, "3", mr.HGet(DefaultKeyPrefix+"tally", "a"))
}

func TestRedisStoreBadTally(t *testing.T) {
	s, mr := newRedisStore(t)
	mr.HSet(DefaultKeyPrefix+"tally", "a", "lots")

	_, err := s.Load(context.Background())
	assert.Error(t, err)
}

func TestNewRedisStoreUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedisStore(context.Background(), RedisOptions{Addr: addr})
	assert.Error(t, err)
}

func TestSessionSurvivesRestartWithFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")
	backend := clinic.BackendFunc(func(_ context.Context, req clinic.Request) (string, error) {
		return "reply from " + req.Model, nil
	})

	s := clinic.NewSession(NewFileStore(path), clinic.NewGenerator(backend))
	require.NoError(t, s.Load(ctx))
	_, err := s.AddBot(ctx, clinic.Bot{Name: "Alice", Model: "m1", Enabled: true})
	require.NoError(t, err)
	s.Start()
	view, err := s.Send(ctx, "hello")
	require.NoError(t, err)
	_, err = s.Vote(ctx, view.ID, 0)
	require.NoError(t, err)

	restarted := clinic.NewSession(NewFileStore(path), clinic.NewGenerator(backend))
	require.NoError(t, restarted.Load(ctx))
	rows := restarted.Stats()
	require.Len(t, rows, 1)
	assert.Equal(t, "Alice", rows[0].Name)
	assert.Equal(t, 1, rows[0].Votes)
}
