// Package sqldb provides a [datastore.Datastore] backed by
// a SQL database table, in PostgreSQL or SQLite.
package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"

	"github.com/tzrikka/slackdevkit/pkg/datastore"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"

	DefaultDriver = DriverSQLite
)

// Flags defines CLI flags to configure a SQL database connection. These flags can
// also be set using environment variables and the application's configuration file.
func Flags(configFilePath altsrc.StringSourcer) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "sql-driver",
			Usage: fmt.Sprintf("SQL database driver (%q or %q)", DriverPostgres, DriverSQLite),
			Value: DefaultDriver,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SQL_DRIVER"),
				toml.TOML("sql.driver", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "sql-dsn",
			Usage: "SQL data source name (PostgreSQL connection string, or SQLite file path)",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("SQL_DSN"),
				toml.TOML("sql.dsn", configFilePath),
			),
		},
	}
}

// Store keeps Slack workspace records as JSON
// text, in a table keyed by team ID.
type Store struct {
	db     *sql.DB
	driver string
}

// NewStore opens the SQL database that's configured with [Flags].
func NewStore(ctx context.Context, cmd *cli.Command) (*Store, error) {
	return Open(ctx, cmd.String("sql-driver"), cmd.String("sql-dsn"))
}

// Open connects to a SQL database, and creates the
// workspaces table in it, if it doesn't exist already.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported SQL driver: %q", driver)
	}
	if dsn == "" {
		return nil, errors.New("missing SQL data source name")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQL database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping SQL database: %w", err)
	}

	const schema = `CREATE TABLE IF NOT EXISTS workspaces (
		team_id TEXT PRIMARY KEY,
		data TEXT NOT NULL
	)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create workspaces table: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, teamID string) (datastore.Record, error) {
	var data string
	err := s.db.QueryRowContext(ctx, s.query("SELECT data FROM workspaces WHERE team_id = ?"), teamID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return datastore.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("SQL select error: %w", err)
	}

	return datastore.Decode([]byte(data))
}

// Save inserts or replaces a record. Both PostgreSQL and
// SQLite (3.24+) support the same upsert syntax.
func (s *Store) Save(ctx context.Context, teamID string, r datastore.Record) (datastore.Record, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode workspace record: %w", err)
	}

	q := s.query(`INSERT INTO workspaces (team_id, data) VALUES (?, ?)
		ON CONFLICT (team_id) DO UPDATE SET data = excluded.data`)
	if _, err := s.db.ExecContext(ctx, q, teamID, string(b)); err != nil {
		return nil, fmt.Errorf("SQL upsert error: %w", err)
	}

	return r, nil
}

// query adjusts the placeholders in a query to the SQL driver:
// "?" for SQLite, "$1", "$2", etc. for PostgreSQL.
func (s *Store) query(q string) string {
	if s.driver != DriverPostgres {
		return q
	}

	out := make([]byte, 0, len(q)+8)
	n := 0
	for i := range len(q) {
		if q[i] != '?' {
			out = append(out, q[i])
			continue
		}
		n++
		out = fmt.Appendf(out, "$%d", n)
	}
	return string(out)
}
