package state

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/lorenzotomasdiez/chatbot-clinic/internal/clinic"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces every key the clinic writes.
const DefaultKeyPrefix = "chatbot-clinic:"

// RedisOptions configures the connection of a RedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStore keeps bots and settings as JSON strings and the tally as a hash.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("state: could not connect to redis at %s: %w", opts.Addr, err)
	}
	return NewRedisStoreFromClient(rdb, opts.Prefix), nil
}

// NewRedisStoreFromClient wraps an existing client. An empty prefix selects DefaultKeyPrefix.
func NewRedisStoreFromClient(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

// Close releases the connection.
func (r *RedisStore) Close() error { return r.rdb.Close() }

func (r *RedisStore) key(name string) string { return r.prefix + name }

// Load implements clinic.Store. Missing keys yield zero values.
//
// Bots and settings are read with MGET, which reports missing keys as nil
// entries rather than redis.Nil, so no error can leak across the pipeline.
func (r *RedisStore) Load(ctx context.Context) (clinic.SavedState, error) {
	pipe := r.rdb.Pipeline()
	valsCmd := pipe.MGet(ctx, r.key("bots"), r.key("settings"))
	tallyCmd := pipe.HGetAll(ctx, r.key("tally"))
	if _, err := pipe.Exec(ctx); err != nil {
		return clinic.SavedState{}, fmt.Errorf("state: loading from redis: %w", err)
	}

	vals, err := valsCmd.Result()
	if err != nil {
		return clinic.SavedState{}, fmt.Errorf("state: loading from redis: %w", err)
	}
	// Save always writes the bots key, so its presence marks saved state.
	st := clinic.SavedState{Saved: vals[0] != nil}
	if err := decodeJSON(vals[0], &st.Bots); err != nil {
		return clinic.SavedState{}, fmt.Errorf("state: decoding bots: %w", err)
	}
	if err := decodeJSON(vals[1], &st.Settings); err != nil {
		return clinic.SavedState{}, fmt.Errorf("state: decoding settings: %w", err)
	}

	raw, err := tallyCmd.Result()
	if err != nil {
		return clinic.SavedState{}, fmt.Errorf("state: loading tally: %w", err)
	}
	st.Tally = clinic.Tally{}
	for id, v := range raw {
		n, err := strconv.Atoi(v)
		if err != nil {
			return clinic.SavedState{}, fmt.Errorf("state: tally for %s: %w", id, err)
		}
		st.Tally[id] = n
	}
	return st, nil
}

// decodeJSON decodes one MGET entry; nil means the key does not exist.
func decodeJSON(val any, v any) error {
	switch data := val.(type) {
	case nil:
		return nil
	case string:
		return json.Unmarshal([]byte(data), v)
	default:
		return fmt.Errorf("unexpected value of type %T", val)
	}
}

// Save implements clinic.Store. All keys are written in one transaction.
func (r *RedisStore) Save(ctx context.Context, st clinic.SavedState) error {
	bots, err := json.Marshal(st.Bots)
	if err != nil {
		return fmt.Errorf("state: encoding bots: %w", err)
	}
	settings, err := json.Marshal(st.Settings)
	if err != nil {
		return fmt.Errorf("state: encoding settings: %w", err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, r.key("bots"), bots, 0)
	pipe.Set(ctx, r.key("settings"), settings, 0)
	pipe.Del(ctx, r.key("tally"))
	if len(st.Tally) > 0 {
		fields := make(map[string]any, len(st.Tally))
		for id, n := range st.Tally {
			fields[id] = n
		}
		pipe.HSet(ctx, r.key("tally"), fields)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("state: saving to redis: %w", err)
	}
	return nil
}
