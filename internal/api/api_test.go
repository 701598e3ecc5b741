package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanbitlab/coursemap/internal/alarm"
	"github.com/hanbitlab/coursemap/internal/config"
	"github.com/hanbitlab/coursemap/internal/storage/sqlite"
	"github.com/hanbitlab/coursemap/pkg/logger"
)

type testServer struct {
	server *httptest.Server
	places *sqlite.PlaceStorage
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	log := logger.Nop()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "api.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	courseStorage := sqlite.NewCourseStorage(db, log)
	placeStorage := sqlite.NewPlaceStorage(db, log)
	coursePlaceStorage := sqlite.NewCoursePlaceStorage(db, log)
	alarmStorage := sqlite.NewAlarmStorage(db, log)
	scheduleStorage := sqlite.NewScheduleStorage(db, log)

	center := alarm.NewCenter(log)
	scheduler := alarm.NewScheduler(alarmStorage, center, sqlite.DefaultCourseID, log)
	t.Cleanup(scheduler.Stop)

	handler := NewHandler(
		courseStorage,
		placeStorage,
		coursePlaceStorage,
		alarmStorage,
		scheduleStorage,
		scheduler,
		center,
		log,
	)
	router := NewRouter(handler, config.Default(), log)

	srv := httptest.NewServer(router.Routes())
	t.Cleanup(srv.Close)

	return &testServer{server: srv, places: placeStorage}
}

func (ts *testServer) url(path string) string {
	return ts.server.URL + path
}

func (ts *testServer) insertPlace(t *testing.T, name string) int64 {
	t.Helper()
	id, err := ts.places.Insert(context.Background(), sqlite.DraftPlace{
		Name:      name,
		Address:   "1 Test Street",
		Latitude:  37.5,
		Longitude: 127.0,
	})
	require.NoError(t, err)
	return id
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func doDelete(t *testing.T, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestBulkAppendSequencesEndToEnd(t *testing.T) {
	ts := newTestServer(t)

	p5 := ts.insertPlace(t, "Palace")
	p6 := ts.insertPlace(t, "Market")
	p7 := ts.insertPlace(t, "Tower")

	resp := postJSON(t, ts.url("/course_places/bulk"), map[string]any{
		"courses_id": 1,
		"places":     []int64{p5, p6},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rows := decodeBody[[]sqlite.CoursePlace](t, resp)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0].Sequence)
	assert.Equal(t, int64(2), rows[1].Sequence)

	// A second batch continues from the prior max and leaves 1, 2 alone.
	resp = postJSON(t, ts.url("/course_places/bulk"), map[string]any{
		"courses_id": 1,
		"places":     []int64{p7},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rows = decodeBody[[]sqlite.CoursePlace](t, resp)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(1), rows[0].Sequence)
	assert.Equal(t, int64(2), rows[1].Sequence)
	assert.Equal(t, int64(3), rows[2].Sequence)
	assert.Equal(t, p7, rows[2].PlacesID.Int64())
}

func TestBulkAppendValidation(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.url("/course_places/bulk"), map[string]any{
		"courses_id": 1,
		"places":     []int64{},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// An unknown course is a 404, not a constraint failure.
	resp = postJSON(t, ts.url("/course_places/bulk"), map[string]any{
		"courses_id": 4242,
		"places":     []int64{1},
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Unknown place ids violate the foreign key; the batch fails atomically.
	resp = postJSON(t, ts.url("/course_places/bulk"), map[string]any{
		"courses_id": 1,
		"places":     []int64{12345},
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	getResp, err := http.Get(ts.url("/course_places/courses/1"))
	require.NoError(t, err)
	rows := decodeBody[[]sqlite.CoursePlace](t, getResp)
	assert.Empty(t, rows)
}

func TestDeleteCoursePlaceEndToEnd(t *testing.T) {
	ts := newTestServer(t)

	p5 := ts.insertPlace(t, "Palace")
	p6 := ts.insertPlace(t, "Market")
	p7 := ts.insertPlace(t, "Tower")

	resp := postJSON(t, ts.url("/course_places/bulk"), map[string]any{
		"courses_id": 1,
		"places":     []int64{p5, p6, p7},
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doDelete(t, ts.url(fmt.Sprintf("/course_places/places/%d", p6)))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decodeBody[struct {
		Message string               `json:"message"`
		Places  []sqlite.CoursePlace `json:"places"`
	}](t, resp)

	require.Len(t, result.Places, 2)
	assert.Equal(t, p5, result.Places[0].PlacesID.Int64())
	assert.Equal(t, int64(1), result.Places[0].Sequence)
	assert.Equal(t, p7, result.Places[1].PlacesID.Int64())
	assert.Equal(t, int64(3), result.Places[1].Sequence)

	// Deleting a place that is not in the course is a 404.
	resp = doDelete(t, ts.url(fmt.Sprintf("/course_places/places/%d", p6)))
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAddTempPlaceEndToEnd(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.url("/course_places/add-temp"), map[string]any{
		"courses_id": 1,
		"name":       "Hidden Beach",
		"address":    "7 Coast Road",
		"latitude":   33.25,
		"longitude":  126.56,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[struct {
		Message  string `json:"message"`
		PlacesID int64  `json:"places_id"`
	}](t, resp)
	assert.Greater(t, created.PlacesID, int64(0))

	getResp, err := http.Get(ts.url("/course_places/courses/1"))
	require.NoError(t, err)
	rows := decodeBody[[]sqlite.CoursePlace](t, getResp)
	require.Len(t, rows, 1)
	assert.Equal(t, created.PlacesID, rows[0].PlacesID.Int64())
	assert.Equal(t, "Hidden Beach", rows[0].Name)
	assert.Equal(t, int64(1), rows[0].Sequence)
}

func TestAddTempPlaceValidation(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.url("/course_places/add-temp"), map[string]any{
		"courses_id": 1,
		"name":       "Out Of Range",
		"address":    "nowhere",
		"latitude":   123.0,
		"longitude":  0.0,
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAlarmLifecycleEndToEnd(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.url("/alarms"), map[string]any{
		"courses_id": 1,
		"message":    "departure",
		"alarm_time": "2099-01-01T00:00:00Z",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[sqlite.AlarmRecord](t, resp)
	assert.Equal(t, "2099-01-01 00:00:00", created.AlarmTime)
	id := created.AlarmsID.Int64()
	require.Greater(t, id, int64(0))

	getResp, err := http.Get(ts.url("/alarms/courses/1"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	alarms := decodeBody[[]sqlite.AlarmRecord](t, getResp)
	require.Len(t, alarms, 1)
	assert.Equal(t, "2099-01-01 00:00:00", alarms[0].AlarmTime)
	assert.Equal(t, "departure", alarms[0].Message)

	resp = doDelete(t, ts.url(fmt.Sprintf("/alarms/%d", id)))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// A repeated delete is a 404.
	resp = doDelete(t, ts.url(fmt.Sprintf("/alarms/%d", id)))
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAlarmValidation(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.url("/alarms"), map[string]any{
		"courses_id": 1,
		"message":    "bad time",
		"alarm_time": "not-a-time",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, ts.url("/alarms"), map[string]any{
		"courses_id": 1,
		"alarm_time": "2099-01-01T00:00:00Z",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNotificationAcknowledgeEndToEnd(t *testing.T) {
	ts := newTestServer(t)

	getResp, err := http.Get(ts.url("/alarms/notifications"))
	require.NoError(t, err)
	pending := decodeBody[[]alarm.Notification](t, getResp)
	assert.Empty(t, pending)

	resp := postJSON(t, ts.url("/alarms/notifications/99/ack"), nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateScheduleEndToEnd(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.url("/schedules"), map[string]any{
		"courses_id": 1,
		"title":      "Day 1",
		"start_time": "09:00",
		"end_time":   "18:00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[struct {
		Message     string `json:"message"`
		SchedulesID int64  `json:"schedules_id"`
	}](t, resp)
	assert.Greater(t, created.SchedulesID, int64(0))

	getResp, err := http.Get(ts.url("/schedules/courses/1"))
	require.NoError(t, err)
	schedules := decodeBody[[]sqlite.Schedule](t, getResp)
	require.Len(t, schedules, 1)
	assert.Equal(t, "Day 1", schedules[0].Title)

	resp = postJSON(t, ts.url("/schedules"), map[string]any{
		"courses_id": 1,
		"title":      "",
		"start_time": "09:00",
		"end_time":   "18:00",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCatalogEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.insertPlace(t, "Palace")

	getResp, err := http.Get(ts.url("/places"))
	require.NoError(t, err)
	places := decodeBody[[]sqlite.Place](t, getResp)
	require.Len(t, places, 1)
	assert.Equal(t, "Palace", places[0].Name)

	getResp, err = http.Get(ts.url("/courses"))
	require.NoError(t, err)
	courses := decodeBody[[]sqlite.Course](t, getResp)
	require.Len(t, courses, 1)

	getResp, err = http.Get(ts.url("/schedules/courses/1"))
	require.NoError(t, err)
	schedules := decodeBody[[]sqlite.Schedule](t, getResp)
	assert.Empty(t, schedules)

	getResp, err = http.Get(ts.url("/health"))
	require.NoError(t, err)
	getResp.Body.Close()
	assert.Equal(t, http.StatusOK, getResp.StatusCode)
}
