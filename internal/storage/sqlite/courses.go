package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hanbitlab/coursemap/internal/apperr"
	"github.com/hanbitlab/coursemap/pkg/logger"
)

// DefaultCourseID is the single course the application currently operates
// on. It is seeded at startup so foreign keys hold.
const DefaultCourseID = 1

// CourseStorage handles storage of courses
type CourseStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewCourseStorage creates a new SQLite course storage
func NewCourseStorage(db *sql.DB, logger *logger.Logger) *CourseStorage {
	storage := &CourseStorage{
		db:     db,
		logger: logger.Named("sqlite-courses"),
	}

	if err := storage.initDB(); err != nil {
		logger.Error("Failed to initialize course storage", Error(err))
	}

	return storage
}

// initDB initializes the courses table and seeds the default course
func (s *CourseStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS courses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			created_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create courses table: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT OR IGNORE INTO courses (id, name, created_at) VALUES (?, ?, ?)`,
		DefaultCourseID, "My Course", time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to seed default course: %w", err)
	}

	return nil
}

// List returns all courses ordered by id
func (s *CourseStorage) List(ctx context.Context) ([]*Course, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM courses ORDER BY id`,
	)
	if err != nil {
		return nil, apperr.Storage(err, "failed to query courses")
	}
	defer rows.Close()

	var courses []*Course
	for rows.Next() {
		var course Course
		var createdAt string

		if err := rows.Scan(&course.ID, &course.Name, &createdAt); err != nil {
			return nil, apperr.Storage(err, "failed to scan course")
		}

		course.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}

		courses = append(courses, &course)
	}

	return courses, rows.Err()
}

// Exists reports whether a course with the given id exists
func (s *CourseStorage) Exists(ctx context.Context, courseID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM courses WHERE id = ?`, courseID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, apperr.Storage(err, "failed to check course existence")
	}
	return true, nil
}
