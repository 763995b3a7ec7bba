// Package joplin is a client for the destination's data API.
package joplin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lherron/relink/internal/domain"
)

const (
	// PingResponse is the body a live data API answers /ping with
	PingResponse = "JoplinClipperServer"

	// NoteFields are the catalog fields the resolver joins on
	NoteFields = "id,title,created_time,markup_language"

	pageLimit      = 100
	defaultTimeout = 30 * time.Second
	maxBodySize    = 64 << 20
)

// ConnectivityError reports a failed call to the data API
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("destination %s: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// StatusError is a non-2xx answer from the data API
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.Code, http.StatusText(e.Code), e.Body)
}

type page[T any] struct {
	Items   []T  `json:"items"`
	HasMore bool `json:"has_more"`
}

// Note is a note as returned by GET /notes/{id}
type Note struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	CreatedAt int64          `json:"created_time"`
	Dialect   domain.Dialect `json:"markup_language"`
}

// Client talks to the data API on baseURL, passing token as a query credential
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

// BaseURL joins a host URL and port the way the destination is configured.
// A port already present in host wins.
func BaseURL(host string, port int) string {
	host = strings.TrimRight(host, "/")
	if port <= 0 {
		return host
	}
	if u, err := url.Parse(host); err == nil && u.Port() != "" {
		return host
	}
	return host + ":" + strconv.Itoa(port)
}

// NewClient creates a data API client
func NewClient(baseURL, token string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  logger,
	}
}

// Ping checks that the data API is up and answers as expected
func (c *Client) Ping(ctx context.Context) error {
	data, err := c.do(ctx, http.MethodGet, "/ping", nil, nil)
	if err != nil {
		return &ConnectivityError{Op: "ping", Err: err}
	}
	if got := strings.TrimSpace(string(data)); got != PingResponse {
		return &ConnectivityError{Op: "ping", Err: fmt.Errorf("unexpected response %q, is the clipper service enabled?", got)}
	}
	return nil
}

// Search returns every note matching query, following has_more pagination
func (c *Client) Search(ctx context.Context, query, fields string) ([]domain.NoteStub, error) {
	params := url.Values{}
	params.Set("query", query)
	if fields != "" {
		params.Set("fields", fields)
	}
	notes, err := collectPages[domain.NoteStub](ctx, c, "/search", params)
	if err != nil {
		return nil, &ConnectivityError{Op: "search", Err: err}
	}
	return notes, nil
}

// ListNotes returns every note with the requested fields
func (c *Client) ListNotes(ctx context.Context, fields string) ([]domain.DestinationNote, error) {
	params := url.Values{}
	if fields != "" {
		params.Set("fields", fields)
	}
	notes, err := collectPages[domain.DestinationNote](ctx, c, "/notes", params)
	if err != nil {
		return nil, &ConnectivityError{Op: "list notes", Err: err}
	}
	return notes, nil
}

// GetNote fetches one note with the requested fields
func (c *Client) GetNote(ctx context.Context, id, fields string) (Note, error) {
	params := url.Values{}
	if fields != "" {
		params.Set("fields", fields)
	}
	var note Note
	data, err := c.do(ctx, http.MethodGet, "/notes/"+url.PathEscape(id), params, nil)
	if err != nil {
		return Note{}, err
	}
	if err := json.Unmarshal(data, &note); err != nil {
		return Note{}, fmt.Errorf("failed to decode note %s: %w", id, err)
	}
	return note, nil
}

// GetNoteBody fetches only the body of a note
func (c *Client) GetNoteBody(ctx context.Context, id string) (string, error) {
	note, err := c.GetNote(ctx, id, "body")
	if err != nil {
		return "", err
	}
	return note.Body, nil
}

// UpdateNote sets one field of a note and returns the updated note
func (c *Client) UpdateNote(ctx context.Context, id, field string, value any) (Note, error) {
	payload, err := json.Marshal(map[string]any{field: value})
	if err != nil {
		return Note{}, fmt.Errorf("failed to encode update: %w", err)
	}
	data, err := c.do(ctx, http.MethodPut, "/notes/"+url.PathEscape(id), nil, payload)
	if err != nil {
		return Note{}, err
	}
	var note Note
	if err := json.Unmarshal(data, &note); err != nil {
		return Note{}, fmt.Errorf("failed to decode updated note %s: %w", id, err)
	}
	return note, nil
}

// UpdateNoteBody replaces a note's body
func (c *Client) UpdateNoteBody(ctx context.Context, id, body string) error {
	_, err := c.UpdateNote(ctx, id, "body", body)
	return err
}

func collectPages[T any](ctx context.Context, c *Client, path string, params url.Values) ([]T, error) {
	var all []T
	for n := 1; ; n++ {
		params.Set("page", strconv.Itoa(n))
		params.Set("limit", strconv.Itoa(pageLimit))

		data, err := c.do(ctx, http.MethodGet, path, params, nil)
		if err != nil {
			return nil, err
		}
		var p page[T]
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to decode %s page %d: %w", path, n, err)
		}
		all = append(all, p.Items...)
		c.logger.Debug("fetched destination page",
			zap.String("path", path),
			zap.Int("page", n),
			zap.Int("items", len(p.Items)),
			zap.Bool("has_more", p.HasMore))
		if !p.HasMore {
			return all, nil
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body []byte) ([]byte, error) {
	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	if c.token != "" {
		query.Set("token", c.token)
	}
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return data, nil
}
