// Package lmscore implements the CourseCatalog and StudentDirectory
// interfaces by communicating with the LMS core API, which owns the course
// catalog and user accounts.
package lmscore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/learnhub/learnhub-payments/internal/domain"
)

// Client implements domain.CourseCatalog and domain.StudentDirectory by
// making HTTP requests to the LMS core API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new LMS core client.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// courseResponse represents the JSON response from the core API.
type courseResponse struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Price         float64 `json:"price"`
	EnrolledCount int     `json:"enrolled_count"`
}

// GetCourse fetches a course by id from the LMS core.
func (c *Client) GetCourse(ctx context.Context, courseID string) (*domain.Course, error) {
	url := fmt.Sprintf("%s/api/internal/courses/%s/", c.baseURL, courseID)

	body, err := c.get(ctx, url, domain.ErrCourseNotFound)
	if err != nil {
		return nil, err
	}

	var courseResp courseResponse
	if err := json.Unmarshal(body, &courseResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &domain.Course{
		ID:            courseResp.ID,
		Title:         courseResp.Title,
		Price:         courseResp.Price,
		EnrolledCount: courseResp.EnrolledCount,
	}, nil
}

// studentResponse represents the JSON response from the core API.
type studentResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// GetStudent fetches a student's contact fields by id from the LMS core.
func (c *Client) GetStudent(ctx context.Context, studentID string) (*domain.Student, error) {
	url := fmt.Sprintf("%s/api/internal/users/%s/", c.baseURL, studentID)

	body, err := c.get(ctx, url, domain.ErrStudentNotFound)
	if err != nil {
		return nil, err
	}

	var studentResp studentResponse
	if err := json.Unmarshal(body, &studentResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &domain.Student{
		ID:      studentResp.ID,
		Name:    studentResp.Name,
		Email:   studentResp.Email,
		Phone:   studentResp.Phone,
		Address: studentResp.Address,
	}, nil
}

// IncrementEnrolledCount asks the core to add one enrollment to the course.
// A non-2xx response or transport failure means the increment was not
// confirmed; the caller decides whether to retry.
func (c *Client) IncrementEnrolledCount(ctx context.Context, courseID string) error {
	url := fmt.Sprintf("%s/api/internal/courses/%s/enrollments/", c.baseURL, courseID)

	payload, err := json.Marshal(map[string]int{"increment": 1})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Internal-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return domain.ErrCourseNotFound
	default:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("core API returned status %d: %s", resp.StatusCode, string(body))
	}
}

// get performs an authenticated GET and maps 404 to the given sentinel.
func (c *Client) get(ctx context.Context, url string, notFound error) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Internal-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Success - continue
	case http.StatusNotFound:
		return nil, notFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("authentication failed with core API")
	default:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}

var (
	_ domain.CourseCatalog    = (*Client)(nil)
	_ domain.StudentDirectory = (*Client)(nil)
)
