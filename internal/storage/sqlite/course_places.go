package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hanbitlab/coursemap/internal/apperr"
	"github.com/hanbitlab/coursemap/pkg/logger"
)

// CoursePlaceStorage owns the ordered association between a course and its
// places. Sequence numbers are assigned at append time from MAX(sequence)
// read inside the same transaction as the insert. Deletions leave gaps;
// listing orders by (sequence, id) so rows that ended up sharing a sequence
// value after concurrent appends still have a stable order.
type CoursePlaceStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewCoursePlaceStorage creates a new SQLite course place storage
func NewCoursePlaceStorage(db *sql.DB, logger *logger.Logger) *CoursePlaceStorage {
	storage := &CoursePlaceStorage{
		db:     db,
		logger: logger.Named("sqlite-course-places"),
	}

	if err := storage.initDB(); err != nil {
		logger.Error("Failed to initialize course place storage", Error(err))
	}

	return storage
}

// initDB initializes the course_places table
func (s *CoursePlaceStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS course_places (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			courses_id INTEGER NOT NULL,
			places_id INTEGER NOT NULL,
			sequence INTEGER NOT NULL,
			FOREIGN KEY (courses_id) REFERENCES courses(id),
			FOREIGN KEY (places_id) REFERENCES places(places_id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create course_places table: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_course_places_courses_id ON course_places(courses_id)`,
		`CREATE INDEX IF NOT EXISTS idx_course_places_places_id ON course_places(places_id)`,
	}

	for _, indexSQL := range indexes {
		_, err = s.db.Exec(indexSQL)
		if err != nil {
			return fmt.Errorf("failed to create course_places index: %w", err)
		}
	}

	return nil
}

// AppendBulk inserts the given places at the end of the course sequence as
// one atomic unit. Sequence numbers start at the current max plus one. The
// freshly joined, sequence-ordered list is returned. A constraint failure
// rolls back the whole batch.
func (s *CoursePlaceStorage) AppendBulk(ctx context.Context, courseID int64, placeIDs []int64) ([]*CoursePlace, error) {
	if courseID <= 0 {
		return nil, apperr.Validation("a valid courses_id is required")
	}
	if len(placeIDs) == 0 {
		return nil, apperr.Validation("a non-empty places array is required")
	}
	for _, id := range placeIDs {
		if id <= 0 {
			return nil, apperr.Validation("all places_id values must be positive")
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.Storage(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	maxSeq, err := maxSequence(ctx, tx, courseID)
	if err != nil {
		return nil, err
	}

	placeholders := make([]string, 0, len(placeIDs))
	values := make([]any, 0, len(placeIDs)*3)
	for i, placeID := range placeIDs {
		placeholders = append(placeholders, "(?, ?, ?)")
		values = append(values, courseID, placeID, maxSeq+int64(i)+1)
	}

	insertQuery := fmt.Sprintf(
		`INSERT INTO course_places (courses_id, places_id, sequence) VALUES %s`,
		strings.Join(placeholders, ", "),
	)

	s.logger.Debug("Executing bulk insert",
		logger.Int64("courses_id", courseID),
		logger.Int("count", len(placeIDs)),
		logger.Int64("start_sequence", maxSeq+1),
	)

	if _, err := tx.ExecContext(ctx, insertQuery, values...); err != nil {
		return nil, apperr.Storage(err, "failed to bulk insert course places")
	}

	places, err := listByCourse(ctx, tx, courseID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.Storage(err, "failed to commit bulk insert")
	}

	return places, nil
}

// ListByCourse returns the full sequence for a course joined with place
// data, ordered by (sequence, id). Every call re-runs the join; there is no
// caching layer.
func (s *CoursePlaceStorage) ListByCourse(ctx context.Context, courseID int64) ([]*CoursePlace, error) {
	if courseID <= 0 {
		return nil, apperr.Validation("a valid courses_id is required")
	}
	return listByCourse(ctx, s.db, courseID)
}

// RemoveByPlace deletes the rows matching the place within the course and
// returns the reloaded list. Sequence numbers of the remaining rows are not
// touched, so gaps accumulate.
func (s *CoursePlaceStorage) RemoveByPlace(ctx context.Context, courseID, placeID int64) ([]*CoursePlace, error) {
	if placeID <= 0 {
		return nil, apperr.Validation("a valid places_id is required")
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM course_places WHERE places_id = ? AND courses_id = ?`,
		placeID, courseID,
	)
	if err != nil {
		return nil, apperr.Storage(err, "failed to delete course place")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, apperr.Storage(err, "failed to get affected rows")
	}
	if affected == 0 {
		return nil, apperr.NotFound("place %d is not part of course %d", placeID, courseID)
	}

	s.logger.Debug("Deleted course place",
		logger.Int64("courses_id", courseID),
		logger.Int64("places_id", placeID),
	)

	return listByCourse(ctx, s.db, courseID)
}

// PromoteTempPlace turns a draft place into a durable place record and
// appends it to the course sequence in one transaction. On any failure both
// inserts roll back and the draft stays un-promoted.
func (s *CoursePlaceStorage) PromoteTempPlace(ctx context.Context, courseID int64, draft DraftPlace) (int64, error) {
	if courseID <= 0 {
		return 0, apperr.Validation("a valid courses_id is required")
	}
	if err := validateDraft(draft); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, apperr.Storage(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO places (name, address, latitude, longitude, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		draft.Name, draft.Address, draft.Latitude, draft.Longitude,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, apperr.Storage(err, "failed to insert promoted place")
	}

	placeID, err := result.LastInsertId()
	if err != nil {
		return 0, apperr.Storage(err, "failed to get promoted place ID")
	}

	maxSeq, err := maxSequence(ctx, tx, courseID)
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO course_places (courses_id, places_id, sequence) VALUES (?, ?, ?)`,
		courseID, placeID, maxSeq+1,
	); err != nil {
		return 0, apperr.Storage(err, "failed to link promoted place")
	}

	if err := tx.Commit(); err != nil {
		return 0, apperr.Storage(err, "failed to commit promotion")
	}

	s.logger.Info("Promoted temp place",
		logger.Int64("courses_id", courseID),
		logger.Int64("places_id", placeID),
		logger.String("name", draft.Name),
	)

	return placeID, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// maxSequence reads the current max sequence for a course, 0 when empty
func maxSequence(ctx context.Context, q querier, courseID int64) (int64, error) {
	var maxSeq sql.NullInt64
	err := q.QueryRowContext(ctx,
		`SELECT MAX(sequence) FROM course_places WHERE courses_id = ?`,
		courseID,
	).Scan(&maxSeq)
	if err != nil {
		return 0, apperr.Storage(err, "failed to read max sequence")
	}
	return maxSeq.Int64, nil
}

// listByCourse runs the sequence-ordered join for a course
func listByCourse(ctx context.Context, q querier, courseID int64) ([]*CoursePlace, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT cp.id, cp.courses_id, cp.places_id, p.name, p.address, p.latitude, p.longitude, cp.sequence
		FROM course_places cp
		LEFT JOIN places p ON cp.places_id = p.places_id
		WHERE cp.courses_id = ?
		ORDER BY cp.sequence, cp.id`,
		courseID,
	)
	if err != nil {
		return nil, apperr.Storage(err, "failed to query course places")
	}
	defer rows.Close()

	places := []*CoursePlace{}
	for rows.Next() {
		var cp CoursePlace
		var name, address sql.NullString
		var lat, lon sql.NullFloat64

		if err := rows.Scan(
			&cp.ID,
			&cp.CoursesID,
			&cp.PlacesID,
			&name,
			&address,
			&lat,
			&lon,
			&cp.Sequence,
		); err != nil {
			return nil, apperr.Storage(err, "failed to scan course place")
		}

		cp.Name = name.String
		cp.Address = address.String
		cp.Latitude = lat.Float64
		cp.Longitude = lon.Float64

		places = append(places, &cp)
	}

	return places, rows.Err()
}
