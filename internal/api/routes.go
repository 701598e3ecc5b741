package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hanbitlab/coursemap/internal/config"
	"github.com/hanbitlab/coursemap/pkg/logger"
)

// Router is the API router
type Router struct {
	handler    *Handler
	middleware *Middleware
	config     *config.Config
	logger     *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(handler *Handler, config *config.Config, logger *logger.Logger) *Router {
	return &Router{
		handler:    handler,
		middleware: NewMiddleware(logger),
		config:     config,
		logger:     logger.Named("api-router"),
	}
}

// Routes returns the API routes
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()

	// Middleware
	router.Use(r.middleware.RequestID)
	router.Use(r.middleware.Logger)
	router.Use(r.middleware.Recoverer)
	router.Use(r.middleware.CORS(r.config.Server.CORSAllowedOrigins))

	// Course place routes
	router.Route("/course_places", func(router chi.Router) {
		router.Post("/bulk", r.handler.BulkCreateCoursePlaces)
		router.Get("/courses/{courses_id}", r.handler.GetCoursePlaces)
		router.Delete("/places/{places_id}", r.handler.DeleteCoursePlace)
		router.Post("/add-temp", r.handler.AddTempPlace)
	})

	// Alarm routes
	router.Route("/alarms", func(router chi.Router) {
		router.Post("/", r.handler.CreateAlarm)
		router.Get("/courses/{courses_id}", r.handler.GetAlarms)
		router.Get("/notifications", r.handler.GetNotifications)
		router.Post("/notifications/{alarms_id}/ack", r.handler.AcknowledgeNotification)
		router.Delete("/{alarms_id}", r.handler.DeleteAlarm)
	})

	// Catalog routes
	router.Get("/places", r.handler.GetPlaces)
	router.Get("/courses", r.handler.GetCourses)
	router.Post("/schedules", r.handler.CreateSchedule)
	router.Get("/schedules/courses/{courses_id}", r.handler.GetSchedules)

	// Health check
	router.Get("/health", r.handler.GetHealth)

	return router
}
