package trace

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"rksys/internal/sched"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	started     TEXT NOT NULL,
	fingerprint TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS events (
	session INTEGER NOT NULL REFERENCES sessions(id),
	ts      TEXT    NOT NULL,
	tick    INTEGER NOT NULL,
	kind    TEXT    NOT NULL,
	task    INTEGER NOT NULL,
	object  INTEGER NOT NULL,
	arg     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS events_session_tick ON events(session, tick);
`

// batchSize events are committed per transaction.
const batchSize = 128

// SQLiteSink stores events in a SQLite database, one session per run.
type SQLiteSink struct {
	db      *sql.DB
	session int64
	tx      *sql.Tx
	stmt    *sql.Stmt
	n       int
}

// OpenSQLite opens (or creates) the database at path and starts a session
// tagged with the kernel configuration fingerprint.
func OpenSQLite(path, fingerprint string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("trace sqlite: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("trace sqlite: schema: %w", err)
	}
	res, err := db.Exec(`INSERT INTO sessions(started, fingerprint) VALUES (?, ?)`,
		stamp(time.Now()), fingerprint)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("trace sqlite: session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("trace sqlite: session id: %w", err)
	}
	return &SQLiteSink{db: db, session: id}, nil
}

// Session returns the id of the session this sink writes to.
func (s *SQLiteSink) Session() int64 { return s.session }

func (s *SQLiteSink) begin() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO events(session, ts, tick, kind, task, object, arg)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	s.tx, s.stmt, s.n = tx, stmt, 0
	return nil
}

func (s *SQLiteSink) commit() error {
	if s.tx == nil {
		return nil
	}
	s.stmt.Close()
	err := s.tx.Commit()
	s.tx, s.stmt = nil, nil
	return err
}

func (s *SQLiteSink) Write(ev sched.TraceEvent) error {
	if s.tx == nil {
		if err := s.begin(); err != nil {
			return fmt.Errorf("trace sqlite: %w", err)
		}
	}
	_, err := s.stmt.Exec(s.session, stamp(ev.Time), int64(ev.Tick), ev.Kind.String(),
		int(ev.Task), ev.Object, ev.Arg)
	if err != nil {
		return fmt.Errorf("trace sqlite: insert: %w", err)
	}
	if s.n++; s.n >= batchSize {
		return s.commit()
	}
	return nil
}

// Count returns how many events of this session are stored.
func (s *SQLiteSink) Count() (int, error) {
	if err := s.commit(); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM events WHERE session = ?`, s.session).Scan(&n)
	return n, err
}

func (s *SQLiteSink) Close() error {
	cerr := s.commit()
	if err := s.db.Close(); err != nil {
		return err
	}
	return cerr
}
