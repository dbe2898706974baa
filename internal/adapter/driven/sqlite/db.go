// Package sqlite implements the credential store port on top of modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// DB pairs a single-connection writer with a small reader pool over the same
// database file. SQLite allows one writer at a time, so funnelling writes
// through one connection avoids "database is locked" errors.
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
}

const maxReaders = 4

// Pragmas applied to every connection. busy_timeout covers the short window
// where a reader and the writer contend for the WAL.
var basePragmas = []string{"busy_timeout(5000)", "synchronous(NORMAL)", "foreign_keys(ON)"}

// NewDB opens the token database at dbPath in WAL mode.
func NewDB(ctx context.Context, dbPath string) (*DB, error) {
	return open(ctx, fileDSN(dbPath))
}

func fileDSN(path string) string {
	return "file:" + path + "?" + pragmaQuery(append([]string{"journal_mode(WAL)"}, basePragmas...))
}

// memoryDSN names a shared-cache in-memory database so the writer and the
// readers see the same data. WAL does not apply in memory.
func memoryDSN(name string) string {
	return "file:" + url.PathEscape(name) + "?mode=memory&cache=shared&" + pragmaQuery(basePragmas)
}

func pragmaQuery(pragmas []string) string {
	parts := make([]string, 0, len(pragmas))
	for _, p := range pragmas {
		parts = append(parts, "_pragma="+p)
	}
	return strings.Join(parts, "&")
}

func open(ctx context.Context, dsn string) (*DB, error) {
	writer, err := openPinged(ctx, dsn, 1)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}

	reader, err := openPinged(ctx, dsn, maxReaders)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}

	return &DB{Writer: writer, Reader: reader}, nil
}

func openPinged(ctx context.Context, dsn string, maxConns int) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxConns)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}

// Close closes both reader and writer connections. Returns the first error encountered.
func (db *DB) Close() error {
	var firstErr error

	if err := db.Reader.Close(); err != nil {
		firstErr = fmt.Errorf("close reader: %w", err)
	}

	if err := db.Writer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close writer: %w", err)
	}

	return firstErr
}

// parseTime accepts the timestamp layouts SQLite produces for DATETIME columns.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05Z",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format %q", s)
}
