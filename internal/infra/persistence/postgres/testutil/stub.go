// Package testutil provides a fake database/sql driver that understands the
// statements the postgres snapshot store issues against its state table.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync/atomic"
)

var driverSeq atomic.Int64

// StateConn keeps the state table as bucket -> payload. Upserts issued inside
// a transaction become visible on commit only.
type StateConn struct {
	Execs      []string
	Rows       map[string][]byte
	FailPing   bool
	FailCommit bool
	FailBucket string
	RowsErr    error

	pending map[string][]byte
	inTx    bool
}

// NewStubDB registers a fresh driver and returns a sql.DB bound to it.
func NewStubDB() (*sql.DB, *StateConn) {
	conn := &StateConn{Rows: make(map[string][]byte)}
	name := fmt.Sprintf("brewcore-stubpg-%d", driverSeq.Add(1))
	sql.Register(name, stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

type stubDriver struct {
	conn *StateConn
}

func (d stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

// Prepare implements driver.Conn. Statements always go through the context
// fast paths.
func (c *StateConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepared statements unsupported")
}

// Close implements driver.Conn.
func (c *StateConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StateConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// BeginTx implements driver.ConnBeginTx.
func (c *StateConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	c.inTx = true
	c.pending = make(map[string][]byte)
	return stateTx{conn: c}, nil
}

// Ping implements driver.Pinger.
func (c *StateConn) Ping(context.Context) error {
	if c.FailPing {
		return errors.New("connection refused")
	}
	return nil
}

// ExecContext implements driver.ExecerContext.
func (c *StateConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.Execs = append(c.Execs, query)
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "INSERT INTO STATE") {
		return driver.RowsAffected(0), nil
	}
	if len(args) != 2 {
		return nil, fmt.Errorf("state upsert expects 2 args, got %d", len(args))
	}
	bucket, ok := args[0].Value.(string)
	if !ok {
		return nil, fmt.Errorf("bucket must be a string, got %T", args[0].Value)
	}
	if bucket == c.FailBucket {
		return nil, fmt.Errorf("write %s rejected", bucket)
	}
	payload, ok := args[1].Value.([]byte)
	if !ok {
		return nil, fmt.Errorf("payload must be bytes, got %T", args[1].Value)
	}
	payload = append([]byte(nil), payload...)
	if c.inTx {
		c.pending[bucket] = payload
	} else {
		c.Rows[bucket] = payload
	}
	return driver.RowsAffected(1), nil
}

// QueryContext implements driver.QueryerContext for SELECT bucket, payload.
func (c *StateConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	if !strings.Contains(strings.ToUpper(query), "FROM STATE") {
		return nil, fmt.Errorf("unsupported query: %s", query)
	}
	buckets := make([]string, 0, len(c.Rows))
	for bucket := range c.Rows {
		buckets = append(buckets, bucket)
	}
	sort.Strings(buckets)
	rows := &stateRows{err: c.RowsErr}
	for _, bucket := range buckets {
		rows.values = append(rows.values, []driver.Value{bucket, c.Rows[bucket]})
	}
	return rows, nil
}

type stateTx struct {
	conn *StateConn
}

func (t stateTx) Commit() error {
	defer t.end()
	if t.conn.FailCommit {
		return errors.New("commit rejected")
	}
	for bucket, payload := range t.conn.pending {
		t.conn.Rows[bucket] = payload
	}
	return nil
}

func (t stateTx) Rollback() error {
	t.end()
	return nil
}

func (t stateTx) end() {
	t.conn.inTx = false
	t.conn.pending = nil
}

type stateRows struct {
	values [][]driver.Value
	idx    int
	err    error
}

func (r *stateRows) Columns() []string { return []string{"bucket", "payload"} }
func (r *stateRows) Close() error      { return nil }

func (r *stateRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.values) {
		if r.err != nil {
			return r.err
		}
		return io.EOF
	}
	copy(dest, r.values[r.idx])
	r.idx++
	return nil
}
