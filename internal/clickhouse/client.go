// Package clickhouse wraps the native-protocol ClickHouse client and
// provides sequential execution of multi-statement SQL scripts.
package clickhouse

import (
	"context"
	"crypto/tls"
	"fmt"
	"regexp"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Config holds connection parameters for the destination store.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Secure   bool // use TLS
	Verify   bool // verify the TLS certificate
}

// Conn is the minimal connection surface the ingestors need. The real
// implementation is backed by clickhouse-go; tests use fakes.
type Conn interface {
	// Exec runs a single SQL statement.
	Exec(ctx context.Context, query string) error

	// RowCount returns SELECT count() for a table.
	RowCount(ctx context.Context, table string) (uint64, error)

	// Close releases the underlying connection.
	Close() error
}

// Client implements Conn over the native ClickHouse protocol.
type Client struct {
	conn driver.Conn
}

// Connect opens a connection and verifies it with a ping.
// Parameters:
//   - ctx: context for the connection attempt.
//   - cfg: connection parameters.
// Returns:
//   - *Client: connected client.
//   - error: non-nil if the store is unreachable or rejects authentication.
func Connect(ctx context.Context, cfg *Config) (*Client, error) {
	var tlsCfg *tls.Config
	if cfg.Secure {
		tlsCfg = &tls.Config{InsecureSkipVerify: !cfg.Verify}
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		TLS:         tlsCfg,
		DialTimeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open clickhouse connection: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("clickhouse at %s:%d unreachable: %w", cfg.Host, cfg.Port, err)
	}

	return &Client{conn: conn}, nil
}

// Exec runs a single SQL statement.
func (c *Client) Exec(ctx context.Context, query string) error {
	return c.conn.Exec(ctx, query)
}

// RowCount returns the current row count of a table.
func (c *Client) RowCount(ctx context.Context, table string) (uint64, error) {
	var count uint64
	row := c.conn.QueryRow(ctx, fmt.Sprintf("SELECT count() FROM %s", table))
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	return count, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// insertTableRe extracts the destination table of an INSERT statement.
var insertTableRe = regexp.MustCompile(`(?i)INSERT\s+INTO\s+([^\s(]+)`)

// TableFromInsert returns the destination table of the first INSERT INTO
// statement in sql, or empty when none is found. Used for before/after
// row count logging.
func TableFromInsert(sql string) string {
	m := insertTableRe.FindStringSubmatch(sql)
	if m == nil {
		return ""
	}
	return m[1]
}
