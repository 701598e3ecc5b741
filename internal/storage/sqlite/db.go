// Package sqlite implements the durable stores for places, course
// sequences, alarms and schedules on top of a single SQLite database.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/hanbitlab/coursemap/pkg/logger"
)

// Error creates a logger field with an error value
var Error = logger.Error

// Open opens (creating if needed) the SQLite database at path with foreign
// keys enforced and WAL journaling. The returned handle is shared by all
// stores.
func Open(path string, log *logger.Logger) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Named("sqlite").Info("Opened database", logger.String("path", path))
	return db, nil
}
