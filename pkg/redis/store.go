// Package redis provides a [datastore.Datastore] backed by a Redis server.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"

	"github.com/tzrikka/slackdevkit/pkg/datastore"
)

const (
	DefaultAddr      = "localhost:6379"
	DefaultKeyPrefix = "slackdevkit:workspace:"

	pingTimeout = 5 * time.Second
)

// Flags defines CLI flags to configure a Redis client. These flags can also be
// set using environment variables and the application's configuration file.
func Flags(configFilePath altsrc.StringSourcer) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "redis-addr",
			Usage: "Redis server address",
			Value: DefaultAddr,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("REDIS_ADDR"),
				toml.TOML("redis.addr", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "redis-password",
			Usage: "Redis server password",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("REDIS_PASSWORD"),
				toml.TOML("redis.password", configFilePath),
			),
		},
		&cli.IntFlag{
			Name:  "redis-db",
			Usage: "Redis database number",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("REDIS_DB"),
				toml.TOML("redis.db", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "redis-key-prefix",
			Usage: "prefix of Redis keys that store Slack workspace records",
			Value: DefaultKeyPrefix,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("REDIS_KEY_PREFIX"),
				toml.TOML("redis.key_prefix", configFilePath),
			),
		},
	}
}

// client is the subset of [redis.Client] that [Store] uses.
type client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// Store keeps each Slack workspace record as a JSON
// string, under the key "<prefix><team ID>".
type Store struct {
	client client
	prefix string
	closer func() error
}

// NewStore connects to the Redis server that's configured with [Flags].
func NewStore(ctx context.Context, cmd *cli.Command) (*Store, error) {
	c := redis.NewClient(&redis.Options{
		Addr:     cmd.String("redis-addr"),
		Password: cmd.String("redis-password"),
		DB:       int(cmd.Int("redis-db")),
	})

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: c, prefix: cmd.String("redis-key-prefix"), closer: c.Close}, nil
}

func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

func (s *Store) Get(ctx context.Context, teamID string) (datastore.Record, error) {
	b, err := s.client.Get(ctx, s.prefix+teamID).Bytes()
	if errors.Is(err, redis.Nil) {
		return datastore.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get error: %w", err)
	}

	return datastore.Decode(b)
}

func (s *Store) Save(ctx context.Context, teamID string, r datastore.Record) (datastore.Record, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode workspace record: %w", err)
	}

	if err := s.client.Set(ctx, s.prefix+teamID, b, 0).Err(); err != nil {
		return nil, fmt.Errorf("redis set error: %w", err)
	}

	return r, nil
}
