package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/LucadeVeintemilla/emotionTracking/core"
	"github.com/LucadeVeintemilla/emotionTracking/core/emotion"
	"github.com/LucadeVeintemilla/emotionTracking/core/live"
	"github.com/LucadeVeintemilla/emotionTracking/core/student"
)

const (
	statsPath    = "/session/stats/"
	studentsPath = "/user/students"
	loginPath    = "/user/login"
)

var (
	// errors
	ErrUnauthorized = errors.New("backend rejected the credentials")
)

// StatusError is a non-2xx answer to a JSON call.
type StatusError struct {
	Path   string
	Status int
	Body   string
}

func (err *StatusError) Error() string {
	return fmt.Sprintf("backend %s: status %d: %s", err.Path, err.Status, err.Body)
}

// Client talks to the emotion-recognition backend.
// It is the live.Transport, the emotion.TallySource and the student.Repository of the app.
type Client struct {
	baseURL string
	token   string
	rest    *rest.Client
	logger  core.Logger
}

var (
	_ live.Transport      = (*Client)(nil)
	_ emotion.TallySource = (*Client)(nil)
	_ student.Repository  = (*Client)(nil)
)

func NewClient(conf core.BackendConfig, logger core.Logger) *Client {
	// no client-side timeout: a slow exchange holds the in-flight slot until it resolves or is cancelled
	return &Client{
		baseURL: strings.TrimRight(conf.BaseURL, "/"),
		token:   conf.Token,
		rest:    &rest.Client{HTTPClient: &http.Client{}},
		logger:  logger,
	}
}

// WithToken returns a copy of the client authenticating with `token`.
func (c *Client) WithToken(token string) *Client {
	cc := *c
	cc.token = token
	return &cc
}

func (c *Client) headers(contentType string) map[string]string {
	h := map[string]string{"Accept": "application/json"}
	if contentType != "" {
		h["Content-Type"] = contentType
	}
	if c.token != "" {
		h["Authorization"] = "Bearer " + c.token
	}
	return h
}

func (c *Client) send(ctx context.Context, req rest.Request) (*rest.Response, error) {
	start := time.Now()
	hreq, err := rest.BuildRequestObject(req)
	if err != nil {
		return nil, errors.Wrap(err, "building backend request")
	}
	hresp, err := c.rest.MakeRequest(hreq.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	resp, err := rest.BuildResponse(hresp)
	if err != nil {
		return nil, errors.Wrap(err, "reading backend response")
	}
	c.logger.Debug("backend request", map[string]interface{}{
		"method":   string(req.Method),
		"url":      req.BaseURL,
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	})
	return resp, nil
}

// Exchange performs one request for the live pipeline. Non-2xx statuses are returned, not turned into errors.
func (c *Client) Exchange(ctx context.Context, req live.Request) (live.Response, error) {
	resp, err := c.send(ctx, rest.Request{
		Method:  rest.Post,
		BaseURL: c.baseURL + req.Path,
		Headers: c.headers(req.ContentType),
		Body:    req.Body,
	})
	if err != nil {
		return live.Response{}, err
	}
	return live.Response{Status: resp.StatusCode, Body: []byte(resp.Body)}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, dst interface{}) error {
	resp, err := c.send(ctx, rest.Request{
		Method:  rest.Get,
		BaseURL: c.baseURL + path,
		Headers: c.headers(""),
	})
	if err != nil {
		return errors.Wrap(err, "GET "+path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Path: path, Status: resp.StatusCode, Body: resp.Body}
	}
	if err := json.Unmarshal([]byte(resp.Body), dst); err != nil {
		return errors.Wrap(err, "decoding "+path)
	}
	return nil
}

type wireTally struct {
	StudentID   string         `json:"student_id"`
	Before      map[string]int `json:"before"`
	After       map[string]int `json:"after"`
	TotalFrames int            `json:"total_frames"`
}

func toCounts(wire map[string]int) emotion.Counts {
	counts := emotion.NewCounts()
	for key, n := range wire {
		if l, ok := emotion.ParseLabel(key); ok && n > 0 {
			counts[l] += n
		}
	}
	return counts
}

// SessionTallies fetches the per-student emotion tallies of a session.
func (c *Client) SessionTallies(ctx context.Context, sessionID string) ([]emotion.Tally, error) {
	var wire []wireTally
	if err := c.getJSON(ctx, statsPath+url.PathEscape(sessionID), &wire); err != nil {
		var serr *StatusError
		if errors.As(err, &serr) && serr.Status == http.StatusNotFound {
			return nil, nil // no tallies yet
		}
		return nil, err
	}

	tallies := make([]emotion.Tally, 0, len(wire))
	for _, w := range wire {
		tallies = append(tallies, emotion.Tally{
			SubjectID:   w.StudentID,
			Before:      toCounts(w.Before),
			After:       toCounts(w.After),
			TotalFrames: w.TotalFrames,
		})
	}
	return tallies, nil
}

type wireStudent struct {
	ID       string   `json:"_id"`
	Name     string   `json:"name"`
	LastName string   `json:"last_name"`
	Email    string   `json:"email"`
	Images   []string `json:"images"`
}

func (c *Client) QueryStudents(ctx context.Context) ([]student.Student, error) {
	var wire []wireStudent
	if err := c.getJSON(ctx, studentsPath, &wire); err != nil {
		return nil, err
	}
	students := make([]student.Student, 0, len(wire))
	for _, w := range wire {
		students = append(students, student.Student{
			ID:       w.ID,
			Name:     w.Name,
			LastName: w.LastName,
			Email:    w.Email,
			Images:   w.Images,
		})
	}
	return students, nil
}

// GetStudent looks the student up in the roster. The backend has no single-student endpoint.
func (c *Client) GetStudent(ctx context.Context, id string) (student.Student, error) {
	students, err := c.QueryStudents(ctx)
	if err != nil {
		return student.Student{}, err
	}
	for _, s := range students {
		if s.ID == id {
			return s, nil
		}
	}
	return student.Student{}, student.ErrNotFound
}

// Login exchanges instructor credentials for a backend token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	_ = w.WriteField("email", email)
	_ = w.WriteField("password", password)
	if err := w.Close(); err != nil {
		return "", err
	}

	resp, err := c.send(ctx, rest.Request{
		Method:  rest.Post,
		BaseURL: c.baseURL + loginPath,
		Headers: map[string]string{"Content-Type": w.FormDataContentType()},
		Body:    body.Bytes(),
	})
	if err != nil {
		return "", errors.Wrap(err, "POST "+loginPath)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return "", ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", &StatusError{Path: loginPath, Status: resp.StatusCode, Body: resp.Body}
	}

	var payload struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal([]byte(resp.Body), &payload); err != nil {
		return "", errors.Wrap(err, "decoding login response")
	}
	if payload.Token != "" {
		return payload.Token, nil
	}
	if payload.AccessToken != "" {
		return payload.AccessToken, nil
	}
	return "", errors.New("login response has no token")
}
