package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hanbitlab/coursemap/internal/apperr"
	"github.com/hanbitlab/coursemap/pkg/logger"
)

// PlaceStorage handles storage of place records
type PlaceStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewPlaceStorage creates a new SQLite place storage
func NewPlaceStorage(db *sql.DB, logger *logger.Logger) *PlaceStorage {
	storage := &PlaceStorage{
		db:     db,
		logger: logger.Named("sqlite-places"),
	}

	if err := storage.initDB(); err != nil {
		logger.Error("Failed to initialize place storage", Error(err))
	}

	return storage
}

// initDB initializes the places table
func (s *PlaceStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS places (
			places_id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			address TEXT NOT NULL,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			created_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create places table: %w", err)
	}

	return nil
}

// Insert stores a new place record and returns its id
func (s *PlaceStorage) Insert(ctx context.Context, draft DraftPlace) (int64, error) {
	if err := validateDraft(draft); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO places (name, address, latitude, longitude, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		draft.Name, draft.Address, draft.Latitude, draft.Longitude,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, apperr.Storage(err, "failed to insert place")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, apperr.Storage(err, "failed to get last insert ID")
	}

	return id, nil
}

// GetByID returns the place with the given id
func (s *PlaceStorage) GetByID(ctx context.Context, placeID int64) (*Place, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT places_id, name, address, latitude, longitude, created_at
		FROM places WHERE places_id = ?`,
		placeID,
	)

	place, err := scanPlace(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("place %d not found", placeID)
	}
	if err != nil {
		return nil, apperr.Storage(err, "failed to query place")
	}

	return place, nil
}

// List returns all place records
func (s *PlaceStorage) List(ctx context.Context) ([]*Place, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT places_id, name, address, latitude, longitude, created_at
		FROM places ORDER BY places_id`,
	)
	if err != nil {
		return nil, apperr.Storage(err, "failed to query places")
	}
	defer rows.Close()

	places := []*Place{}
	for rows.Next() {
		place, err := scanPlace(rows)
		if err != nil {
			return nil, apperr.Storage(err, "failed to scan place")
		}
		places = append(places, place)
	}

	return places, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanPlace scans one row into a Place struct
func scanPlace(row rowScanner) (*Place, error) {
	var place Place
	var createdAt string

	if err := row.Scan(
		&place.PlacesID,
		&place.Name,
		&place.Address,
		&place.Latitude,
		&place.Longitude,
		&createdAt,
	); err != nil {
		return nil, err
	}

	var err error
	place.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}

	return &place, nil
}

// validateDraft checks the bounds the API contract promises for places
func validateDraft(draft DraftPlace) error {
	if draft.Name == "" || len(draft.Name) > 255 {
		return apperr.Validation("name must be 1-255 characters")
	}
	if draft.Address == "" || len(draft.Address) > 500 {
		return apperr.Validation("address must be 1-500 characters")
	}
	if draft.Latitude < -90 || draft.Latitude > 90 {
		return apperr.Validation("latitude must be between -90 and 90")
	}
	if draft.Longitude < -180 || draft.Longitude > 180 {
		return apperr.Validation("longitude must be between -180 and 180")
	}
	return nil
}
