package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hanbitlab/coursemap/internal/apperr"
	"github.com/hanbitlab/coursemap/pkg/jsonid"
	"github.com/hanbitlab/coursemap/pkg/logger"
)

// AlarmStorage handles storage of alarm records. Target times are
// normalized to the fixed UTC wire format before they hit the database, so
// what a client submitted in its local serialization never leaks through.
type AlarmStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewAlarmStorage creates a new SQLite alarm storage
func NewAlarmStorage(db *sql.DB, logger *logger.Logger) *AlarmStorage {
	storage := &AlarmStorage{
		db:     db,
		logger: logger.Named("sqlite-alarms"),
	}

	if err := storage.initDB(); err != nil {
		logger.Error("Failed to initialize alarm storage", Error(err))
	}

	return storage
}

// initDB initializes the alarms table. Time columns are declared TEXT so
// the driver hands back the stored string unchanged; a TIMESTAMP affinity
// would make it re-serialize the value and lose the wire format.
func (s *AlarmStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS alarms (
			alarms_id INTEGER PRIMARY KEY AUTOINCREMENT,
			courses_id INTEGER NOT NULL,
			message TEXT NOT NULL,
			alarm_time TEXT NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY (courses_id) REFERENCES courses(id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create alarms table: %w", err)
	}

	_, err = s.db.Exec(
		`CREATE INDEX IF NOT EXISTS idx_alarms_courses_id ON alarms(courses_id)`,
	)
	if err != nil {
		return fmt.Errorf("failed to create alarms index: %w", err)
	}

	return nil
}

// Insert stores a new alarm and returns the created record.
func (s *AlarmStorage) Insert(ctx context.Context, courseID int64, message string, target time.Time) (*AlarmRecord, error) {
	if courseID <= 0 {
		return nil, apperr.Validation("a valid courses_id is required")
	}
	if message == "" || len(message) > 2000 {
		return nil, apperr.Validation("message must be 1-2000 characters")
	}
	if target.IsZero() {
		return nil, apperr.Validation("a valid alarm_time is required")
	}

	wireTime := target.UTC().Format(AlarmWireFormat)
	createdAt := time.Now().UTC()

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO alarms (courses_id, message, alarm_time, created_at)
		VALUES (?, ?, ?, ?)`,
		courseID, message, wireTime, createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return nil, apperr.Storage(err, "failed to insert alarm")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, apperr.Storage(err, "failed to get last insert ID")
	}

	s.logger.Info("Registered alarm",
		logger.Int64("alarms_id", id),
		logger.Int64("courses_id", courseID),
		logger.String("alarm_time", wireTime),
	)

	return &AlarmRecord{
		AlarmsID:  jsonid.ID(id),
		CoursesID: jsonid.ID(courseID),
		Message:   message,
		AlarmTime: wireTime,
		CreatedAt: createdAt,
		Target:    target.UTC(),
	}, nil
}

// ListByCourse returns all alarms for a course ordered by target time
// ascending.
func (s *AlarmStorage) ListByCourse(ctx context.Context, courseID int64) ([]*AlarmRecord, error) {
	if courseID <= 0 {
		return nil, apperr.Validation("a valid courses_id is required")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT alarms_id, courses_id, message, alarm_time, created_at
		FROM alarms
		WHERE courses_id = ?
		ORDER BY alarm_time ASC`,
		courseID,
	)
	if err != nil {
		return nil, apperr.Storage(err, "failed to query alarms")
	}
	defer rows.Close()

	alarms := []*AlarmRecord{}
	for rows.Next() {
		var record AlarmRecord
		var alarmTime, createdAt string

		if err := rows.Scan(
			&record.AlarmsID,
			&record.CoursesID,
			&record.Message,
			&alarmTime,
			&createdAt,
		); err != nil {
			return nil, apperr.Storage(err, "failed to scan alarm")
		}

		record.AlarmTime = alarmTime
		record.Target, err = time.ParseInLocation(AlarmWireFormat, alarmTime, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("failed to parse alarm_time: %w", err)
		}

		record.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}

		alarms = append(alarms, &record)
	}

	return alarms, rows.Err()
}

// Exists reports whether the alarm still exists. The scheduler checks this
// on the fire path so a deleted alarm never notifies.
func (s *AlarmStorage) Exists(ctx context.Context, alarmID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM alarms WHERE alarms_id = ?`, alarmID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, apperr.Storage(err, "failed to check alarm existence")
	}
	return true, nil
}

// Delete removes the alarm with the given id.
func (s *AlarmStorage) Delete(ctx context.Context, alarmID int64) error {
	if alarmID <= 0 {
		return apperr.Validation("a valid alarms_id is required")
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM alarms WHERE alarms_id = ?`, alarmID,
	)
	if err != nil {
		return apperr.Storage(err, "failed to delete alarm")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperr.Storage(err, "failed to get affected rows")
	}
	if affected == 0 {
		return apperr.NotFound("alarm %d not found", alarmID)
	}

	s.logger.Info("Deleted alarm", logger.Int64("alarms_id", alarmID))
	return nil
}
