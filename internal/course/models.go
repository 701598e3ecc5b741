package course

import (
	"fmt"

	"github.com/hanbitlab/coursemap/internal/storage/sqlite"
)

// SelectedPlace is one entry of the selection buffer: either a reference to
// a durable place record or a draft that only exists client-side. Drafts
// carry a locally generated id until promotion assigns them a durable one.
type SelectedPlace struct {
	PlacesID  int64   `json:"places_id,omitempty"`
	LocalID   string  `json:"local_id,omitempty"`
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Temp      bool    `json:"is_temp"`
}

// key returns the buffer uniqueness key: the durable id for saved places,
// the local id for drafts.
func (p SelectedPlace) key() string {
	if p.Temp {
		return "temp:" + p.LocalID
	}
	return fmt.Sprintf("place:%d", p.PlacesID)
}

// draft converts the selection into a promotion payload.
func (p SelectedPlace) draft() sqlite.DraftPlace {
	return sqlite.DraftPlace{
		Name:      p.Name,
		Address:   p.Address,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
	}
}

// PromotionFailure reports one draft that could not be promoted during a
// commit. The rest of the batch is unaffected.
type PromotionFailure struct {
	Place SelectedPlace
	Err   error
}

// CommitResult is the visible outcome of a commit: which durable ids were
// appended, which selections were skipped as duplicates, which drafts were
// promoted (with their new durable ids), which failed, and the saved
// sequence as reloaded after all steps.
type CommitResult struct {
	Appended   []int64
	Duplicates []SelectedPlace
	Promoted   []SelectedPlace
	Failed     []PromotionFailure
	Places     []*sqlite.CoursePlace
}

// PartialFailure reports whether any draft promotion failed.
func (r *CommitResult) PartialFailure() bool {
	return len(r.Failed) > 0
}
