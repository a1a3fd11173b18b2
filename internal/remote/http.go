package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPConfig holds connection settings for the HTTP remote service.
type HTTPConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// HTTPService implements Service over a JSON HTTP API.
type HTTPService struct {
	config     HTTPConfig
	httpClient *http.Client
}

// NewHTTPService creates an HTTPService.
func NewHTTPService(config HTTPConfig) *HTTPService {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &HTTPService{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// Upsert issues PUT /api/{resource}/{id}.
func (s *HTTPService) Upsert(ctx context.Context, resource, remoteID string, fields json.RawMessage) error {
	_, err := s.do(ctx, http.MethodPut, s.resourcePath(resource, remoteID), fields)
	return err
}

// Create issues POST /api/{resource} and returns the assigned id.
func (s *HTTPService) Create(ctx context.Context, resource string, fields json.RawMessage) (string, error) {
	body, err := s.do(ctx, http.MethodPost, s.resourcePath(resource, ""), fields)
	if err != nil {
		return "", err
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil || created.ID == "" {
		return "", &Error{Kind: KindRejected, Message: "create response missing id", Err: err}
	}
	return created.ID, nil
}

// Delete issues DELETE /api/{resource}/{id}.
func (s *HTTPService) Delete(ctx context.Context, resource, remoteID string) error {
	_, err := s.do(ctx, http.MethodDelete, s.resourcePath(resource, remoteID), nil)
	return err
}

// PatchConfig issues PATCH /api/config/{section}.
func (s *HTTPService) PatchConfig(ctx context.Context, section string, fields json.RawMessage) error {
	path := "/api/config/" + url.PathEscape(section)
	_, err := s.do(ctx, http.MethodPatch, path, fields)
	return err
}

// Fetch issues GET /api/{resource}.
func (s *HTTPService) Fetch(ctx context.Context, resource string) (json.RawMessage, error) {
	return s.do(ctx, http.MethodGet, s.resourcePath(resource, ""), nil)
}

func (s *HTTPService) resourcePath(resource, remoteID string) string {
	path := "/api/" + url.PathEscape(resource)
	if remoteID != "" {
		path += "/" + url.PathEscape(remoteID)
	}
	return path
}

// do runs one request and classifies the outcome. Transport failures
// are network-class; any non-2xx response reached the server and is
// rejected-class, with the status retained in the message.
func (s *HTTPService) do(ctx context.Context, method, path string, body json.RawMessage) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.BaseURL+path, reader)
	if err != nil {
		return nil, &Error{Kind: KindRejected, Message: "failed to build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.Token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Message: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Message: "reading response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Kind:    KindRejected,
			Message: fmt.Sprintf("%s %s: status %d: %s", method, path, resp.StatusCode, truncate(respBody, 200)),
		}
	}

	return respBody, nil
}

func truncate(b []byte, n int) string {
	s := string(b)
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
