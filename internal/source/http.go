package source

import (
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
	defaultTimeout = 30 * time.Second
	maxBodySize    = 32 << 20
)

// notesResponse is the body of a notebook listing
type notesResponse struct {
	TotalNotes int                 `json:"total_notes"`
	Notes      []domain.LegacyNote `json:"notes"`
}

// Client reads notebooks and note metadata from the source's JSON API
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a client for the API rooted at baseURL.
// The token is sent as a bearer credential on every request.
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

// ListNotebooks returns every notebook owned by the token's user
func (c *Client) ListNotebooks(ctx context.Context) ([]domain.Notebook, error) {
	var notebooks []domain.Notebook
	if err := c.get(ctx, "/notebooks", nil, &notebooks); err != nil {
		return nil, &ConnectivityError{Op: "list notebooks", Err: err}
	}
	return notebooks, nil
}

// ListNotes returns one page of a notebook's notes ordered by creation time
func (c *Client) ListNotes(ctx context.Context, notebookGUID string, offset, limit int) (Page, error) {
	query := url.Values{}
	query.Set("offset", strconv.Itoa(offset))
	query.Set("max", strconv.Itoa(limit))
	query.Set("order", "created")

	var resp notesResponse
	path := "/notebooks/" + url.PathEscape(notebookGUID) + "/notes"
	if err := c.get(ctx, path, query, &resp); err != nil {
		return Page{}, &ConnectivityError{Op: "list notes", Err: err}
	}
	c.logger.Debug("fetched source page",
		zap.String("notebook_guid", notebookGUID),
		zap.Int("offset", offset),
		zap.Int("notes", len(resp.Notes)),
		zap.Int("total", resp.TotalNotes))
	return Page{Notes: resp.Notes, Total: resp.TotalNotes}, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("GET %s: %s: %s", path, resp.Status, strings.TrimSpace(string(data)))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}
