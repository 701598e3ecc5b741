package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hanbitlab/coursemap/internal/apperr"
	"github.com/hanbitlab/coursemap/pkg/logger"
)

// ScheduleStorage handles storage of course schedules
type ScheduleStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewScheduleStorage creates a new SQLite schedule storage
func NewScheduleStorage(db *sql.DB, logger *logger.Logger) *ScheduleStorage {
	storage := &ScheduleStorage{
		db:     db,
		logger: logger.Named("sqlite-schedules"),
	}

	if err := storage.initDB(); err != nil {
		logger.Error("Failed to initialize schedule storage", Error(err))
	}

	return storage
}

// initDB initializes the schedules table
func (s *ScheduleStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schedules (
			schedules_id INTEGER PRIMARY KEY AUTOINCREMENT,
			courses_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY (courses_id) REFERENCES courses(id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schedules table: %w", err)
	}

	return nil
}

// Insert stores a new schedule entry and returns its id
func (s *ScheduleStorage) Insert(ctx context.Context, courseID int64, title, startTime, endTime string) (int64, error) {
	if courseID <= 0 {
		return 0, apperr.Validation("a valid courses_id is required")
	}
	if title == "" {
		return 0, apperr.Validation("title must not be empty")
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO schedules (courses_id, title, start_time, end_time, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		courseID, title, startTime, endTime, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, apperr.Storage(err, "failed to insert schedule")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, apperr.Storage(err, "failed to get last insert ID")
	}

	return id, nil
}

// ListByCourse returns all schedule entries for a course
func (s *ScheduleStorage) ListByCourse(ctx context.Context, courseID int64) ([]*Schedule, error) {
	if courseID <= 0 {
		return nil, apperr.Validation("a valid courses_id is required")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT schedules_id, courses_id, title, start_time, end_time, created_at
		FROM schedules
		WHERE courses_id = ?
		ORDER BY schedules_id`,
		courseID,
	)
	if err != nil {
		return nil, apperr.Storage(err, "failed to query schedules")
	}
	defer rows.Close()

	schedules := []*Schedule{}
	for rows.Next() {
		var schedule Schedule
		var createdAt string

		if err := rows.Scan(
			&schedule.SchedulesID,
			&schedule.CoursesID,
			&schedule.Title,
			&schedule.StartTime,
			&schedule.EndTime,
			&createdAt,
		); err != nil {
			return nil, apperr.Storage(err, "failed to scan schedule")
		}

		schedule.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}

		schedules = append(schedules, &schedule)
	}

	return schedules, rows.Err()
}
