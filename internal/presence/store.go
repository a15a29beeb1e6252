// Package presence tracks which chat sessions are currently online, backed by
// Redis. It exists for operational visibility (health endpoint, dashboards)
// and across server instances; the relay's own registry remains the source of
// truth for broadcast fan-out.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// keyPrefix is the Redis key prefix for per-session hashes.
	keyPrefix = "presence:"

	// onlineKey is the Redis set holding the ids of all online sessions.
	onlineKey = "presence:online"

	// sessionTTL guards against keys leaked by a crashed instance. Live
	// connections are not expired by the server itself; an idle connection
	// stays registered until its transport closes.
	sessionTTL = 24 * time.Hour
)

// Store records online sessions in Redis.
type Store struct {
	client     *redis.Client
	serverName string // identifier for this server instance
}

// NewStore connects to Redis and returns a presence store.
func NewStore(addr, password string, db int, serverName string) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("presence: redis connection failed: %w", err)
	}

	return &Store{client: client, serverName: serverName}, nil
}

// Connect records a session as online. Username is empty for sessions whose
// handshake carried no credential.
func (s *Store) Connect(ctx context.Context, sessionID, username string) error {
	key := keyPrefix + sessionID

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"username":     username,
		"server":       s.serverName,
		"connected_at": time.Now().Unix(),
	})
	pipe.Expire(ctx, key, sessionTTL)
	pipe.SAdd(ctx, onlineKey, sessionID)
	_, err := pipe.Exec(ctx)
	return err
}

// Disconnect removes a session's presence record. Idempotent.
func (s *Store) Disconnect(ctx context.Context, sessionID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, keyPrefix+sessionID)
	pipe.SRem(ctx, onlineKey, sessionID)
	_, err := pipe.Exec(ctx)
	return err
}

// Online returns the number of sessions currently recorded as online across
// all server instances.
func (s *Store) Online(ctx context.Context) (int64, error) {
	return s.client.SCard(ctx, onlineKey).Result()
}

// Client returns the underlying Redis client for use by other packages.
func (s *Store) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}
