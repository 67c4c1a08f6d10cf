package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
)

// stateDB fakes the single state table the store snapshots into. Upserts replace the row
// for a bucket in place so reload order matches first-write order.
type stateDB struct {
	execs   []string
	buckets []string
	rows    map[string][]byte

	failExec   bool
	failPing   bool
	failBegin  bool
	failCommit bool
	rowsErr    error
}

func newStateDB() (*sql.DB, *stateDB) {
	fake := &stateDB{rows: map[string][]byte{}}
	return sql.OpenDB(fake), fake
}

func (f *stateDB) put(bucket string, payload []byte) {
	if _, ok := f.rows[bucket]; !ok {
		f.buckets = append(f.buckets, bucket)
	}
	f.rows[bucket] = payload
}

// Connect implements driver.Connector.
func (f *stateDB) Connect(context.Context) (driver.Conn, error) { return stateConn{f}, nil }

// Driver implements driver.Connector.
func (f *stateDB) Driver() driver.Driver { return stateDriver{f} }

type stateDriver struct{ db *stateDB }

func (d stateDriver) Open(string) (driver.Conn, error) { return stateConn(d), nil }

type stateConn struct{ db *stateDB }

func (stateConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare unsupported")
}

func (stateConn) Close() error { return nil }

func (c stateConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c stateConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.db.failBegin {
		return nil, errors.New("begin refused")
	}
	return stateTx(c), nil
}

func (c stateConn) Ping(context.Context) error {
	if c.db.failPing {
		return errors.New("connection refused")
	}
	return nil
}

func (c stateConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.db.execs = append(c.db.execs, query)
	if c.db.failExec {
		return nil, errors.New("exec refused")
	}
	if strings.HasPrefix(query, "INSERT INTO state") {
		if len(args) != 2 {
			return nil, errors.New("state upsert expects bucket and payload")
		}
		bucket, _ := args[0].Value.(string)
		payload, _ := args[1].Value.([]byte)
		c.db.put(bucket, append([]byte(nil), payload...))
	}
	return driver.RowsAffected(1), nil
}

func (c stateConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	if !strings.HasPrefix(query, "SELECT bucket, payload FROM state") {
		return nil, errors.New("unexpected query: " + query)
	}
	out := &stateRows{err: c.db.rowsErr}
	for _, bucket := range c.db.buckets {
		out.rows = append(out.rows, [2]driver.Value{bucket, c.db.rows[bucket]})
	}
	return out, nil
}

type stateTx struct{ db *stateDB }

func (t stateTx) Commit() error {
	if t.db.failCommit {
		return errors.New("commit refused")
	}
	return nil
}

func (stateTx) Rollback() error { return nil }

type stateRows struct {
	rows [][2]driver.Value
	next int
	err  error
}

func (*stateRows) Columns() []string { return []string{"bucket", "payload"} }
func (*stateRows) Close() error      { return nil }

func (r *stateRows) Next(dest []driver.Value) error {
	if r.next >= len(r.rows) {
		if r.err != nil {
			return r.err
		}
		return io.EOF
	}
	dest[0], dest[1] = r.rows[r.next][0], r.rows[r.next][1]
	r.next++
	return nil
}
