// Package etcd provides a [datastore.Datastore] backed by an etcd cluster.
package etcd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v3"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/tzrikka/slackdevkit/pkg/datastore"
)

// Store keeps each Slack workspace record as a JSON
// value, under the key "<prefix><team ID>".
type Store struct {
	kv     clientv3.KV
	prefix string
	closer func() error
}

// NewStore connects to the etcd cluster that's configured with [Flags].
func NewStore(cmd *cli.Command) (*Store, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   cmd.StringSlice("etcd-endpoint-urls"),
		DialTimeout: cmd.Duration("etcd-dial-timeout"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize etcd client: %w", err)
	}

	return &Store{kv: c, prefix: cmd.String("etcd-key-prefix"), closer: c.Close}, nil
}

func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

func (s *Store) key(teamID string) string {
	return s.prefix + teamID
}

func (s *Store) Get(ctx context.Context, teamID string) (datastore.Record, error) {
	resp, err := s.kv.Get(ctx, s.key(teamID))
	if err != nil {
		return nil, fmt.Errorf("etcd get error: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return datastore.Record{}, nil
	}

	return datastore.Decode(resp.Kvs[0].Value)
}

func (s *Store) Save(ctx context.Context, teamID string, r datastore.Record) (datastore.Record, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode workspace record: %w", err)
	}

	if _, err := s.kv.Put(ctx, s.key(teamID), string(b)); err != nil {
		return nil, fmt.Errorf("etcd put error: %w", err)
	}

	return r, nil
}
