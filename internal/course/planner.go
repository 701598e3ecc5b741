// Package course implements the selection buffer and the commit workflow
// that reconciles it against the durable course sequence.
package course

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/hanbitlab/coursemap/internal/apperr"
	"github.com/hanbitlab/coursemap/internal/storage/sqlite"
	"github.com/hanbitlab/coursemap/pkg/logger"
)

// Store is the persistence surface the planner commits against. It is
// satisfied by the sqlite CoursePlaceStorage and by the HTTP Client.
type Store interface {
	ListByCourse(ctx context.Context, courseID int64) ([]*sqlite.CoursePlace, error)
	AppendBulk(ctx context.Context, courseID int64, placeIDs []int64) ([]*sqlite.CoursePlace, error)
	PromoteTempPlace(ctx context.Context, courseID int64, draft sqlite.DraftPlace) (int64, error)
}

// Planner owns the selection buffer for one course. All buffer state lives
// here rather than in package-level variables; handlers get a *Planner and
// use its methods as the only mutation surface. The buffer is guarded by a
// mutex so a commit in flight and a UI toggle cannot interleave.
type Planner struct {
	mu       sync.Mutex
	buffer   []SelectedPlace
	courseID int64
	store    Store
	logger   *logger.Logger
}

// NewPlanner creates a planner for the given course.
func NewPlanner(store Store, courseID int64, logger *logger.Logger) *Planner {
	return &Planner{
		courseID: courseID,
		store:    store,
		logger:   logger.Named("course-planner"),
	}
}

// ToggleSelect adds a place to the buffer. Despite the name it never
// removes: selecting an already-buffered place is a no-op, matching the
// add-only toggle the UI always had. Returns true if the place was added.
// Drafts without a local id get one assigned.
func (p *Planner) ToggleSelect(place SelectedPlace) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if place.Temp && place.LocalID == "" {
		place.LocalID = uuid.New().String()
	}

	for _, existing := range p.buffer {
		if existing.key() == place.key() {
			p.logger.Debug("Place already selected", logger.String("name", place.Name))
			return false
		}
	}

	p.buffer = append(p.buffer, place)
	return true
}

// RemoveAt removes the buffer entry at the given index.
func (p *Planner) RemoveAt(index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if index < 0 || index >= len(p.buffer) {
		return apperr.Validation("selection index %d out of range", index)
	}

	p.buffer = append(p.buffer[:index], p.buffer[index+1:]...)
	return nil
}

// Selected returns a copy of the current buffer.
func (p *Planner) Selected() []SelectedPlace {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]SelectedPlace, len(p.buffer))
	copy(out, p.buffer)
	return out
}

// Clear empties the buffer.
func (p *Planner) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buffer = nil
}

// Commit persists the buffer: durable places are bulk-appended (skipping
// ones already in the course, which are reported as duplicates), drafts are
// promoted one at a time so each promotion reads the latest max sequence.
// A failed promotion is recorded per item and processing continues. The
// buffer is cleared when the pass completes; partial results stay committed
// and are visible in the returned CommitResult.
func (p *Planner) Commit(ctx context.Context) (*CommitResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.buffer) == 0 {
		return nil, apperr.Validation("no places selected")
	}

	var durable, drafts []SelectedPlace
	for _, place := range p.buffer {
		if place.Temp {
			drafts = append(drafts, place)
		} else {
			durable = append(durable, place)
		}
	}

	existing, err := p.store.ListByCourse(ctx, p.courseID)
	if err != nil {
		return nil, err
	}
	existingIDs := make(map[int64]bool, len(existing))
	for _, cp := range existing {
		existingIDs[cp.PlacesID.Int64()] = true
	}

	result := &CommitResult{}

	var toAppend []int64
	for _, place := range durable {
		if existingIDs[place.PlacesID] {
			result.Duplicates = append(result.Duplicates, place)
			continue
		}
		toAppend = append(toAppend, place.PlacesID)
	}
	if len(result.Duplicates) > 0 {
		p.logger.Warn("Skipping already-saved places",
			logger.Int("count", len(result.Duplicates)))
	}

	if len(toAppend) > 0 {
		if _, err := p.store.AppendBulk(ctx, p.courseID, toAppend); err != nil {
			return nil, err
		}
		result.Appended = toAppend
	}

	// Sequential on purpose: each promotion reads the latest max sequence.
	for _, draft := range drafts {
		placeID, err := p.store.PromoteTempPlace(ctx, p.courseID, draft.draft())
		if err != nil {
			p.logger.Error("Failed to promote temp place",
				logger.String("name", draft.Name), logger.Error(err))
			result.Failed = append(result.Failed, PromotionFailure{Place: draft, Err: err})
			continue
		}
		draft.PlacesID = placeID
		draft.Temp = false
		draft.LocalID = ""
		result.Promoted = append(result.Promoted, draft)
	}

	result.Places, err = p.store.ListByCourse(ctx, p.courseID)
	if err != nil {
		return nil, err
	}

	p.buffer = nil

	p.logger.Info("Committed course selection",
		logger.Int("appended", len(result.Appended)),
		logger.Int("promoted", len(result.Promoted)),
		logger.Int("duplicates", len(result.Duplicates)),
		logger.Int("failed", len(result.Failed)),
	)

	return result, nil
}
