package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hanbitlab/coursemap/internal/alarm"
	"github.com/hanbitlab/coursemap/internal/apperr"
	"github.com/hanbitlab/coursemap/internal/storage/sqlite"
	"github.com/hanbitlab/coursemap/pkg/jsonid"
	"github.com/hanbitlab/coursemap/pkg/logger"
)

// Handler implements the HTTP handlers for the course API
type Handler struct {
	courseStorage      *sqlite.CourseStorage
	placeStorage       *sqlite.PlaceStorage
	coursePlaceStorage *sqlite.CoursePlaceStorage
	alarmStorage       *sqlite.AlarmStorage
	scheduleStorage    *sqlite.ScheduleStorage
	scheduler          *alarm.Scheduler
	center             *alarm.Center
	logger             *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(
	courseStorage *sqlite.CourseStorage,
	placeStorage *sqlite.PlaceStorage,
	coursePlaceStorage *sqlite.CoursePlaceStorage,
	alarmStorage *sqlite.AlarmStorage,
	scheduleStorage *sqlite.ScheduleStorage,
	scheduler *alarm.Scheduler,
	center *alarm.Center,
	logger *logger.Logger,
) *Handler {
	return &Handler{
		courseStorage:      courseStorage,
		placeStorage:       placeStorage,
		coursePlaceStorage: coursePlaceStorage,
		alarmStorage:       alarmStorage,
		scheduleStorage:    scheduleStorage,
		scheduler:          scheduler,
		center:             center,
		logger:             logger.Named("api-handler"),
	}
}

// GetHealth reports service health
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// GetCourses handles GET /courses
func (h *Handler) GetCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.courseStorage.List(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, courses)
}

// GetPlaces handles GET /places
func (h *Handler) GetPlaces(w http.ResponseWriter, r *http.Request) {
	places, err := h.placeStorage.List(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, places)
}

// GetSchedules handles GET /schedules/courses/{courses_id}
func (h *Handler) GetSchedules(w http.ResponseWriter, r *http.Request) {
	courseID, err := h.idParam(r, "courses_id")
	if err != nil {
		h.respondError(w, err)
		return
	}

	schedules, err := h.scheduleStorage.ListByCourse(r.Context(), courseID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, schedules)
}

// CreateSchedule handles POST /schedules
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req CreateScheduleRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	id, err := h.scheduleStorage.Insert(r.Context(), req.CoursesID.Int64(), req.Title, req.StartTime, req.EndTime)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, map[string]any{
		"message":      "schedule saved",
		"schedules_id": jsonid.ID(id),
	})
}

// BulkCreateCoursePlaces handles POST /course_places/bulk
func (h *Handler) BulkCreateCoursePlaces(w http.ResponseWriter, r *http.Request) {
	var req BulkCreateRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	exists, err := h.courseStorage.Exists(r.Context(), req.CoursesID.Int64())
	if err != nil {
		h.respondError(w, err)
		return
	}
	if !exists {
		h.respondError(w, apperr.NotFound("course %d not found", req.CoursesID.Int64()))
		return
	}

	placeIDs := make([]int64, len(req.Places))
	for i, id := range req.Places {
		placeIDs[i] = id.Int64()
	}

	places, err := h.coursePlaceStorage.AppendBulk(r.Context(), req.CoursesID.Int64(), placeIDs)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, places)
}

// GetCoursePlaces handles GET /course_places/courses/{courses_id}
func (h *Handler) GetCoursePlaces(w http.ResponseWriter, r *http.Request) {
	courseID, err := h.idParam(r, "courses_id")
	if err != nil {
		h.respondError(w, err)
		return
	}

	places, err := h.coursePlaceStorage.ListByCourse(r.Context(), courseID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, places)
}

// DeleteCoursePlace handles DELETE /course_places/places/{places_id}. The
// course is the fixed default; only the place id varies.
func (h *Handler) DeleteCoursePlace(w http.ResponseWriter, r *http.Request) {
	placeID, err := h.idParam(r, "places_id")
	if err != nil {
		h.respondError(w, err)
		return
	}

	places, err := h.coursePlaceStorage.RemoveByPlace(r.Context(), sqlite.DefaultCourseID, placeID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{
		"message": "place removed from course",
		"places":  places,
	})
}

// AddTempPlace handles POST /course_places/add-temp: the atomic promotion
// of a client-side draft into a durable, linked place.
func (h *Handler) AddTempPlace(w http.ResponseWriter, r *http.Request) {
	var req AddTempRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	placeID, err := h.coursePlaceStorage.PromoteTempPlace(r.Context(), req.CoursesID.Int64(), sqlite.DraftPlace{
		Name:      req.Name,
		Address:   req.Address,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, map[string]any{
		"message":   "place saved to course",
		"places_id": jsonid.ID(placeID),
	})
}

// CreateAlarm handles POST /alarms
func (h *Handler) CreateAlarm(w http.ResponseWriter, r *http.Request) {
	var req CreateAlarmRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	target, err := req.ParseTarget()
	if err != nil {
		h.respondError(w, err)
		return
	}

	record, err := h.alarmStorage.Insert(r.Context(), req.CoursesID.Int64(), req.Message, target)
	if err != nil {
		h.respondError(w, err)
		return
	}

	// Pick the new record up immediately instead of waiting for the next
	// reload tick.
	if err := h.scheduler.Load(r.Context()); err != nil {
		h.logger.Error("Failed to arm new alarm", logger.Error(err))
	}

	h.respondJSON(w, http.StatusCreated, record)
}

// GetAlarms handles GET /alarms/courses/{courses_id}
func (h *Handler) GetAlarms(w http.ResponseWriter, r *http.Request) {
	courseID, err := h.idParam(r, "courses_id")
	if err != nil {
		h.respondError(w, err)
		return
	}

	alarms, err := h.alarmStorage.ListByCourse(r.Context(), courseID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, alarms)
}

// DeleteAlarm handles DELETE /alarms/{alarms_id}
func (h *Handler) DeleteAlarm(w http.ResponseWriter, r *http.Request) {
	alarmID, err := h.idParam(r, "alarms_id")
	if err != nil {
		h.respondError(w, err)
		return
	}

	if err := h.alarmStorage.Delete(r.Context(), alarmID); err != nil {
		h.respondError(w, err)
		return
	}
	h.scheduler.Cancel(alarmID)

	h.respondJSON(w, http.StatusOK, map[string]string{
		"message": "alarm deleted",
	})
}

// GetNotifications handles GET /alarms/notifications: the fired alarms
// still awaiting acknowledgment.
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.center.Pending())
}

// AcknowledgeNotification handles POST /alarms/notifications/{alarms_id}/ack
func (h *Handler) AcknowledgeNotification(w http.ResponseWriter, r *http.Request) {
	alarmID, err := h.idParam(r, "alarms_id")
	if err != nil {
		h.respondError(w, err)
		return
	}

	if !h.center.Acknowledge(alarmID) {
		h.respondError(w, apperr.NotFound("no pending notification for alarm %d", alarmID))
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{
		"message": "notification acknowledged",
	})
}

// idParam parses a positive integer URL parameter
func (h *Handler) idParam(r *http.Request, name string) (int64, error) {
	id, err := jsonid.Parse(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid %s parameter", name)
	}
	return id.Int64(), nil
}
