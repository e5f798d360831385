package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ericksa/contractlens/internal/logger"
)

// maxFieldBytes caps stored tool input and output; uploads can be large.
const maxFieldBytes = 8 << 10

type Auditor struct {
	db  *sql.DB
	log *logger.Logger
}

type AuditEntry struct {
	ID        int64     `json:"id"`
	Tool      string    `json:"tool"`
	Input     string    `json:"input"`
	Output    string    `json:"output"`
	Error     string    `json:"error,omitempty"`
	Duration  int64     `json:"duration_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// NewAuditor opens the audit database at path.
func NewAuditor(path string, log *logger.Logger) (*Auditor, error) {
	if log == nil {
		log = logger.Nop()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create audit directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit DB: %w", err)
	}
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tool TEXT NOT NULL,
		input TEXT,
		output TEXT,
		error TEXT,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create audit table: %w", err)
	}
	return &Auditor{db: db, log: log.With("service", "Audit")}, nil
}

// Log records one tool call. Failures are logged, never returned.
func (a *Auditor) Log(tool string, input json.RawMessage, output []byte, took time.Duration, err error) {
	if a == nil || a.db == nil {
		return
	}
	var errStr string
	if err != nil {
		errStr = err.Error()
	}
	_, dbErr := a.db.Exec(
		"INSERT INTO audit_log (tool, input, output, error, duration_ms, timestamp) VALUES (?, ?, ?, ?, ?, ?)",
		tool, clip(input), clip(output), errStr, took.Milliseconds(), time.Now().UTC(),
	)
	if dbErr != nil {
		a.log.Warn("failed to write audit log", "tool", tool, "error", dbErr)
	}
}

// GetLogs returns the most recent entries first.
func (a *Auditor) GetLogs(limit int) ([]AuditEntry, error) {
	if a == nil || a.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := a.db.Query("SELECT id, tool, input, output, error, duration_ms, timestamp FROM audit_log ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []AuditEntry{}
	for rows.Next() {
		var (
			e                     AuditEntry
			input, output, errMsg sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Tool, &input, &output, &errMsg, &e.Duration, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Input, e.Output, e.Error = input.String, output.String, errMsg.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (a *Auditor) Close() {
	if a != nil && a.db != nil {
		a.db.Close()
	}
}

func clip(b []byte) string {
	if len(b) <= maxFieldBytes {
		return string(b)
	}
	return string(b[:maxFieldBytes]) + "...(truncated)"
}
