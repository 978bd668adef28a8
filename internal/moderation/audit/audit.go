// Package audit keeps an append-only local record of removed messages,
// separate from the punishment ledger.
package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Entry is one removed-message record.
type Entry struct {
	UserID    int64
	Alias     string
	RuleID    string
	Message   string
	CreatedAt time.Time
}

// Log is an append-only audit log backed by a local SQLite database.
type Log struct {
	conn   *sqlite.Conn
	mu     sync.Mutex
	logger *zap.Logger
}

// Open creates or opens the audit database in dir.
func Open(dir string, logger *zap.Logger) (*Log, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	conn, err := sqlite.OpenConn(
		filepath.Join(dir, "audit.db"),
		sqlite.OpenCreate|sqlite.OpenReadWrite|sqlite.OpenWAL,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	err = sqlitex.Execute(conn, `
		CREATE TABLE IF NOT EXISTS removed_messages (
			id INTEGER PRIMARY KEY,
			user_id INTEGER NOT NULL,
			alias TEXT NOT NULL,
			rule TEXT NOT NULL,
			message TEXT NOT NULL,
			created_at TEXT NOT NULL
		)
	`, nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create audit table: %w", err)
	}

	return &Log{
		conn:   conn,
		logger: logger.Named("audit"),
	}, nil
}

// Append writes one entry. The original message text is stored verbatim;
// matching-time case folding never touches the audit record.
func (l *Log) Append(ctx context.Context, entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.conn.SetInterrupt(ctx.Done())
	defer l.conn.SetInterrupt(nil)

	err := sqlitex.Execute(l.conn, `
		INSERT INTO removed_messages (user_id, alias, rule, message, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, &sqlitex.ExecOptions{
		Args: []any{
			entry.UserID,
			entry.Alias,
			entry.RuleID,
			entry.Message,
			entry.CreatedAt.Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	return nil
}

// Close releases the database connection.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.conn.Close()
}
