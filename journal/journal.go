// Package journal records envelopes in SQLite so that a mirror session can
// be replayed later, offline and in emission order.
//
// A Journal is a transport.Sink:
//
//	j, err := journal.Open("session.db")
//	p, err := mirror.NewPrimary(root, j)
//
// Replay starts from the latest snapshot of a root and yields every
// envelope recorded after it.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/dommirror/mutation"
)

const schema = `
CREATE TABLE IF NOT EXISTS envelopes (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	root       TEXT    NOT NULL,
	id         TEXT    NOT NULL DEFAULT '',
	type       TEXT    NOT NULL,
	body       TEXT    NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS envelopes_root_type ON envelopes(root, type, seq);
`

// ErrEmpty is returned by Replay when nothing was recorded for a root.
var ErrEmpty = errors.New("journal: no envelopes")

// Option configures Open.
type Option func(*Journal)

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds. Default: 10000.
func WithBusyTimeout(ms int) Option { return func(j *Journal) { j.cfg.busyTimeout = ms } }

// WithSynchronous sets PRAGMA synchronous. Default: "NORMAL".
func WithSynchronous(mode string) Option { return func(j *Journal) { j.cfg.synchronous = mode } }

// WithMkdirAll creates the parent directories of the database path.
func WithMkdirAll() Option { return func(j *Journal) { j.cfg.mkdirAll = true } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(j *Journal) { j.logger = l } }

// Journal is an SQLite envelope log.
type Journal struct {
	db     *sql.DB
	cfg    config
	logger *slog.Logger
	now    func() time.Time
}

// Open opens or creates the journal at path. ":memory:" opens a private
// in-memory journal.
func Open(path string, opts ...Option) (*Journal, error) {
	j := &Journal{cfg: defaults(), logger: slog.Default(), now: time.Now}
	for _, o := range opts {
		o(j)
	}
	db, err := openDB(path, &j.cfg)
	if err != nil {
		return nil, err
	}
	j.db = db
	return j, nil
}

// Send appends env.
func (j *Journal) Send(ctx context.Context, env mutation.Envelope) error {
	body, err := mutation.MarshalEnvelope(&env)
	if err != nil {
		return fmt.Errorf("journal: marshal: %w", err)
	}
	_, err = exec(ctx, j.db,
		`INSERT INTO envelopes (root, id, type, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		env.Root, env.ID, env.Type, string(body), j.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("journal: append %s: %w", env.ID, err)
	}
	return nil
}

// Close closes the database.
func (j *Journal) Close() error { return j.db.Close() }

// Roots returns the recorded root IDs in order of first appearance.
func (j *Journal) Roots(ctx context.Context) ([]string, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT root FROM envelopes GROUP BY root ORDER BY MIN(seq)`)
	if err != nil {
		return nil, fmt.Errorf("journal: roots: %w", err)
	}
	defer rows.Close()
	var roots []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		roots = append(roots, r)
	}
	return roots, rows.Err()
}

// Replay calls fn for every envelope of root, in order, starting from the
// latest snapshot. Without a snapshot it starts from the first envelope.
// It returns the number of envelopes passed to fn.
func (j *Journal) Replay(ctx context.Context, root string, fn func(mutation.Envelope) error) (int, error) {
	var from int64
	err := j.db.QueryRowContext(ctx,
		`SELECT seq FROM envelopes WHERE root = ? AND type = ? ORDER BY seq DESC LIMIT 1`,
		root, mutation.TypeSnapshot).Scan(&from)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("journal: replay %s: %w", root, err)
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT seq, body FROM envelopes WHERE root = ? AND seq >= ? ORDER BY seq`, root, from)
	if err != nil {
		return 0, fmt.Errorf("journal: replay %s: %w", root, err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var (
			seq  int64
			body string
		)
		if err := rows.Scan(&seq, &body); err != nil {
			return n, err
		}
		env, err := mutation.UnmarshalEnvelope([]byte(body))
		if err != nil {
			return n, fmt.Errorf("journal: envelope %d: %w", seq, err)
		}
		if err := fn(*env); err != nil {
			return n, fmt.Errorf("journal: envelope %d: %w", seq, err)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, err
	}
	if n == 0 {
		return 0, fmt.Errorf("journal: root %q: %w", root, ErrEmpty)
	}
	j.logger.Debug("journal: replayed", "root", root, "from", from, "count", n)
	return n, nil
}
