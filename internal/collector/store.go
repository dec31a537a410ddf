// Package collector implements the submission endpoint and its storage:
// deduplicated process identities plus one row per reported session.
package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/playwatch/playwatch/internal/logging"
	"github.com/playwatch/playwatch/internal/wire"
)

// schema creates the two tables on first connect. A process identity is the
// (executable, name) pair; sessions reference it so renames of a display
// name produce a new identity rather than rewriting history.
const schema = `
CREATE TABLE IF NOT EXISTS processes (
	id INTEGER PRIMARY KEY,
	executable TEXT NOT NULL,
	name TEXT,
	export INTEGER NOT NULL DEFAULT 1,
	UNIQUE (executable, name)
);
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY,
	time TEXT NOT NULL,
	process INTEGER NOT NULL REFERENCES processes(id),
	duration INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS events_process ON events(process);
`

// Store persists submissions in SQLite behind a small connection pool.
type Store struct {
	pool   *sqlitex.Pool
	logger *logrus.Entry
}

// OpenStore opens (creating if needed) the database at path.
func OpenStore(path string) (*Store, error) {
	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize: 4,
		PrepareConn: func(conn *sqlite.Conn) error {
			if err := sqlitex.ExecuteTransient(conn, "PRAGMA journal_mode=WAL", nil); err != nil {
				return err
			}
			if err := sqlitex.ExecuteTransient(conn, "PRAGMA busy_timeout=5000", nil); err != nil {
				return err
			}
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return &Store{
		pool:   pool,
		logger: logging.NewLogger("store"),
	}, nil
}

// Close blocks until all borrowed connections are returned.
func (s *Store) Close() error {
	return s.pool.Close()
}

// RecordSubmission inserts one session, finding or creating its process
// identity in the same transaction.
func (s *Store) RecordSubmission(ctx context.Context, sub wire.Submission, at time.Time) (err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("record submission: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer endTransaction(&err)

	processID, err := s.processID(conn, sub)
	if err != nil {
		return err
	}

	err = sqlitex.Execute(conn,
		`INSERT INTO events (time, process, duration) VALUES (?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{at.UTC().Format(time.RFC3339), processID, int64(sub.Duration)},
		})
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// processID finds the row for the submission's (executable, name) pair,
// inserting it on first sight. Resolved names are cleaned of trailing
// garbage from corrupt version-info blocks before use. NULL-safe
// comparison keeps nameless submissions deduplicated too.
func (s *Store) processID(conn *sqlite.Conn, sub wire.Submission) (int64, error) {
	var name any
	if sub.Name != nil {
		name = wire.CleanName(*sub.Name)
	}

	var id int64
	found := false
	err := sqlitex.Execute(conn,
		`SELECT id FROM processes WHERE executable = ? AND name IS ?`,
		&sqlitex.ExecOptions{
			Args: []any{sub.Executable, name},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				id = stmt.ColumnInt64(0)
				found = true
				return nil
			},
		})
	if err != nil {
		return 0, fmt.Errorf("looking up process: %w", err)
	}
	if found {
		return id, nil
	}

	err = sqlitex.Execute(conn,
		`INSERT INTO processes (executable, name) VALUES (?, ?)`,
		&sqlitex.ExecOptions{Args: []any{sub.Executable, name}})
	if err != nil {
		return 0, fmt.Errorf("inserting process: %w", err)
	}
	return conn.LastInsertRowID(), nil
}

// counts returns the total number of process identities and events, for
// tests and the startup log line.
func (s *Store) counts(ctx context.Context) (processes, events int64, err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `SELECT COUNT(*) FROM processes`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			processes = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		return 0, 0, err
	}
	err = sqlitex.Execute(conn, `SELECT COUNT(*) FROM events`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			events = stmt.ColumnInt64(0)
			return nil
		},
	})
	return processes, events, err
}

// LogCounts writes one info line with the stored totals. Called at startup
// so operators can sanity-check the database the collector picked up.
func (s *Store) LogCounts(ctx context.Context) {
	processes, events, err := s.counts(ctx)
	if err != nil {
		s.logger.Warnf("Could not count stored data: %v", err)
		return
	}
	s.logger.Infof("Database has %d processes and %d events", processes, events)
}
