package sqlite

import (
	"time"

	"github.com/hanbitlab/coursemap/pkg/jsonid"
)

// AlarmWireFormat is the normalized storage and wire representation of an
// alarm target time, always in UTC.
const AlarmWireFormat = "2006-01-02 15:04:05"

// Course represents a named itinerary. The application currently operates
// on a single seeded course.
type Course struct {
	ID        jsonid.ID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Place represents a durable point of interest. Places are immutable once
// created; there is no update path.
type Place struct {
	PlacesID  jsonid.ID `json:"places_id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	CreatedAt time.Time `json:"created_at"`
}

// DraftPlace is the payload for promoting a client-side draft into a
// durable place linked to a course.
type DraftPlace struct {
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// CoursePlace is one row of the course sequence joined with its place.
// Address and name come from the left join, so they may be empty if the
// referenced place has gone missing.
type CoursePlace struct {
	ID        jsonid.ID `json:"id"`
	CoursesID jsonid.ID `json:"courses_id"`
	PlacesID  jsonid.ID `json:"places_id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Sequence  int64     `json:"sequence"`
}

// AlarmRecord is a course-scoped reminder. AlarmTime holds the normalized
// wire string; Target is the parsed instant for scheduling.
type AlarmRecord struct {
	AlarmsID  jsonid.ID `json:"alarms_id"`
	CoursesID jsonid.ID `json:"courses_id"`
	Message   string    `json:"message"`
	AlarmTime string    `json:"alarm_time"`
	CreatedAt time.Time `json:"created_at"`
	Target    time.Time `json:"-"`
}

// Schedule is a course-scoped itinerary entry.
type Schedule struct {
	SchedulesID jsonid.ID `json:"schedules_id"`
	CoursesID   jsonid.ID `json:"courses_id"`
	Title       string    `json:"title"`
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time"`
	CreatedAt   time.Time `json:"created_at"`
}
