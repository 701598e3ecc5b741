package course

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hanbitlab/coursemap/internal/apperr"
	"github.com/hanbitlab/coursemap/internal/storage/sqlite"
	"github.com/hanbitlab/coursemap/pkg/jsonid"
	"github.com/hanbitlab/coursemap/pkg/logger"
)

// Client talks to a remote course API and satisfies the planner Store
// interface. Ids on the wire may arrive as strings when they exceed the
// safe-integer range; jsonid handles the narrowing.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a new course API client
func NewClient(baseURL string, timeout time.Duration, logger *logger.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.Named("course-client"),
	}
}

// ListByCourse fetches the saved sequence for a course
func (c *Client) ListByCourse(ctx context.Context, courseID int64) ([]*sqlite.CoursePlace, error) {
	url := fmt.Sprintf("%s/course_places/courses/%d", c.baseURL, courseID)

	var places []*sqlite.CoursePlace
	if err := c.get(ctx, url, &places); err != nil {
		return nil, err
	}
	return places, nil
}

// AppendBulk sends the ordered place ids as one atomic bulk append
func (c *Client) AppendBulk(ctx context.Context, courseID int64, placeIDs []int64) ([]*sqlite.CoursePlace, error) {
	ids := make([]jsonid.ID, len(placeIDs))
	for i, id := range placeIDs {
		ids[i] = jsonid.ID(id)
	}

	body := struct {
		CoursesID jsonid.ID   `json:"courses_id"`
		Places    []jsonid.ID `json:"places"`
	}{CoursesID: jsonid.ID(courseID), Places: ids}

	var places []*sqlite.CoursePlace
	if err := c.post(ctx, c.baseURL+"/course_places/bulk", body, &places); err != nil {
		return nil, err
	}
	return places, nil
}

// PromoteTempPlace promotes a draft place and returns its durable id
func (c *Client) PromoteTempPlace(ctx context.Context, courseID int64, draft sqlite.DraftPlace) (int64, error) {
	body := struct {
		CoursesID jsonid.ID `json:"courses_id"`
		Name      string    `json:"name"`
		Address   string    `json:"address"`
		Latitude  float64   `json:"latitude"`
		Longitude float64   `json:"longitude"`
	}{
		CoursesID: jsonid.ID(courseID),
		Name:      draft.Name,
		Address:   draft.Address,
		Latitude:  draft.Latitude,
		Longitude: draft.Longitude,
	}

	var resp struct {
		Message  string    `json:"message"`
		PlacesID jsonid.ID `json:"places_id"`
	}
	if err := c.post(ctx, c.baseURL+"/course_places/add-temp", body, &resp); err != nil {
		return 0, err
	}
	return resp.PlacesID.Int64(), nil
}

// RemoveByPlace deletes a place from the course and returns the reloaded
// sequence
func (c *Client) RemoveByPlace(ctx context.Context, courseID, placeID int64) ([]*sqlite.CoursePlace, error) {
	url := fmt.Sprintf("%s/course_places/places/%d", c.baseURL, placeID)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var resp struct {
		Message string                `json:"message"`
		Places  []*sqlite.CoursePlace `json:"places"`
	}
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return resp.Places, nil
}

func (c *Client) get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	c.logger.Debug("Course API request",
		logger.String("method", req.Method),
		logger.String("url", req.URL.String()),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.errorFromResponse(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// errorFromResponse maps an API error payload back into the taxonomy
func (c *Client) errorFromResponse(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(data, &payload); err != nil || payload.Error == "" {
		payload.Error = fmt.Sprintf("unexpected status code: %d", resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperr.NotFound("%s", payload.Error)
	case resp.StatusCode == http.StatusConflict:
		return apperr.Conflict("%s", payload.Error)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return apperr.Validation("%s", payload.Error)
	default:
		return apperr.Storage(nil, "%s", payload.Error)
	}
}
