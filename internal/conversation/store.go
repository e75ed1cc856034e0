package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/atelierhq/roomora-backend/internal/platform/envutil"
	"github.com/atelierhq/roomora-backend/internal/platform/logger"
)

var (
	// ErrNoSession means the project has no prior session. Callers bootstrap
	// a fresh history; this is not a failure.
	ErrNoSession = errors.New("conversation: no session")
	// ErrCorruptSession means the stored record cannot be restored. Permanent.
	ErrCorruptSession = errors.New("conversation: corrupt session record")
)

// Store persists turn histories under a project-scoped key so stateless edit
// workers can resume a session across invocations.
type Store interface {
	Load(ctx context.Context, key string) ([]Turn, error)
	Save(ctx context.Context, key string, turns []Turn) error
	Delete(ctx context.Context, key string) error
}

type redisStore struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

// NewRedisStore connects to Redis from env config and verifies the
// connection before returning.
func NewRedisStore(log *logger.Logger) (Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := envutil.Str("REDIS_ADDR", "")
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    envutil.Str("REDIS_PASSWORD", ""),
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	// Sessions are also purged explicitly on project termination; the TTL is
	// a backstop for records orphaned by crashed purges.
	ttl := envutil.Seconds("CONVERSATION_TTL_SECONDS", 7*24*3600)

	return &redisStore{
		log: log.With("service", "ConversationStore"),
		rdb: rdb,
		ttl: ttl,
	}, nil
}

func sessionKey(key string) string {
	return "design:conv:" + strings.TrimSpace(key)
}

func (s *redisStore) Load(ctx context.Context, key string) ([]Turn, error) {
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("conversation: empty key")
	}
	raw, err := s.rdb.Get(ctx, sessionKey(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("conversation load: %w", err)
	}
	turns, err := Deserialize(raw)
	if err != nil {
		s.log.Warn("corrupt session record", "key", key, "error", err)
		return nil, err
	}
	return turns, nil
}

func (s *redisStore) Save(ctx context.Context, key string, turns []Turn) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("conversation: empty key")
	}
	raw, err := Serialize(turns)
	if err != nil {
		return fmt.Errorf("conversation save: %w", err)
	}
	return s.rdb.Set(ctx, sessionKey(key), raw, s.ttl).Err()
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return nil
	}
	return s.rdb.Del(ctx, sessionKey(key)).Err()
}
