package datasource

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/refnet/pkg/debug"
	"github.com/vanderheijden86/refnet/pkg/model"
)

// StatusError is returned for any response with status >= 400.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api error (%d)", e.Code)
	}
	return fmt.Sprintf("api error (%d): %s", e.Code, e.Body)
}

// StatusCode exposes the HTTP status for error classification.
func (e *StatusError) StatusCode() int { return e.Code }

// HTTPClient talks to the commission platform's JSON API.
type HTTPClient struct {
	httpClient *http.Client
	server     string
	token      string
}

// NewHTTPClient returns a client for server. A zero timeout means 20s.
func NewHTTPClient(server, token string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HTTPClient{
		httpClient: &http.Client{Timeout: timeout},
		server:     strings.TrimRight(server, "/"),
		token:      token,
	}
}

func (c *HTTPClient) request(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return err
		}
		body = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.server+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	debug.Log("%s %s -> %d in %v", method, path, resp.StatusCode, time.Since(start))

	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// GetDirectDescendants lists the descendants of parentID up to maxDepth
// levels below it, paginated by limit and offset.
func (c *HTTPClient) GetDirectDescendants(ctx context.Context, parentID int64, maxDepth, limit, offset int) (model.RawPage, error) {
	q := url.Values{}
	q.Set("maxDepth", strconv.Itoa(maxDepth))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	path := fmt.Sprintf("/api/network/%d/descendants?%s", parentID, q.Encode())

	var page model.RawPage
	if err := c.request(ctx, http.MethodGet, path, nil, &page); err != nil {
		return model.RawPage{}, err
	}
	return page, nil
}

type viewerResponse struct {
	UserModel string `json:"userModel"`
}

// GetViewerModel returns the signed-in viewer's MLM model.
func (c *HTTPClient) GetViewerModel(ctx context.Context) (model.ViewerModel, error) {
	var v viewerResponse
	if err := c.request(ctx, http.MethodGet, "/api/me", nil, &v); err != nil {
		return "", err
	}
	return model.ParseViewerModel(v.UserModel), nil
}

// GetUser returns the record for id.
func (c *HTTPClient) GetUser(ctx context.Context, id int64) (model.RawUserRecord, error) {
	var u model.RawUserRecord
	if err := c.request(ctx, http.MethodGet, fmt.Sprintf("/api/users/%d", id), nil, &u); err != nil {
		return model.RawUserRecord{}, err
	}
	return u, nil
}

type countResponse struct {
	Count int `json:"count"`
}

// ClaimedCount returns the number of processed commission claims.
func (c *HTTPClient) ClaimedCount(ctx context.Context) (int, error) {
	var r countResponse
	if err := c.request(ctx, http.MethodGet, "/api/commissions/claimed/count", nil, &r); err != nil {
		return 0, err
	}
	return r.Count, nil
}

// ClaimAll asks the platform to claim every pending commission.
func (c *HTTPClient) ClaimAll(ctx context.Context) error {
	return c.request(ctx, http.MethodPost, "/api/commissions/claim-all", struct{}{}, nil)
}
