package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hanbitlab/coursemap/internal/apperr"
	"github.com/hanbitlab/coursemap/pkg/jsonid"
)

// validate is the shared validator instance; struct tags mirror the bounds
// the storage layer enforces so bad input is rejected at the edge.
var validate = validator.New()

// BulkCreateRequest is the payload for POST /course_places/bulk
type BulkCreateRequest struct {
	CoursesID jsonid.ID   `json:"courses_id" validate:"required,gt=0"`
	Places    []jsonid.ID `json:"places" validate:"required,min=1,dive,gt=0"`
}

// AddTempRequest is the payload for POST /course_places/add-temp
type AddTempRequest struct {
	CoursesID jsonid.ID `json:"courses_id" validate:"required,gt=0"`
	Name      string    `json:"name" validate:"required,max=255"`
	Address   string    `json:"address" validate:"required,max=500"`
	Latitude  float64   `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64   `json:"longitude" validate:"gte=-180,lte=180"`
}

// CreateScheduleRequest is the payload for POST /schedules
type CreateScheduleRequest struct {
	CoursesID jsonid.ID `json:"courses_id" validate:"required,gt=0"`
	Title     string    `json:"title" validate:"required,max=255"`
	StartTime string    `json:"start_time" validate:"required"`
	EndTime   string    `json:"end_time" validate:"required"`
}

// CreateAlarmRequest is the payload for POST /alarms
type CreateAlarmRequest struct {
	CoursesID jsonid.ID `json:"courses_id" validate:"required,gt=0"`
	Message   string    `json:"message" validate:"required,max=2000"`
	AlarmTime string    `json:"alarm_time" validate:"required"`
}

// alarmTimeLayouts are the accepted input forms, most specific first. The
// bare datetime-local layout is what the original web form submitted.
var alarmTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ParseTarget parses the alarm_time field into an instant. Layouts without
// an offset are interpreted as UTC.
func (r CreateAlarmRequest) ParseTarget() (time.Time, error) {
	for _, layout := range alarmTimeLayouts {
		if t, err := time.Parse(layout, r.AlarmTime); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperr.Validation("alarm_time %q is not a valid ISO-8601 instant", r.AlarmTime)
}

// decodeAndValidate decodes the JSON request body into v, rejecting
// unknown fields, then runs struct validation.
func decodeAndValidate(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Validation("invalid request body: %v", err)
	}
	if err := validate.Struct(v); err != nil {
		return apperr.Validation("input validation failed: %v", err)
	}
	return nil
}
