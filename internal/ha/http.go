package ha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPSupervisor talks to the Home Assistant supervisor's snapshot API over
// its REST interface. All requests carry the supervisor token as a bearer
// token.
type HTTPSupervisor struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPSupervisor creates a supervisor client for the given base URL
// (typically http://supervisor inside an add-on container).
func NewHTTPSupervisor(baseURL, token string) *HTTPSupervisor {
	return &HTTPSupervisor{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Minute},
	}
}

// envelope is the supervisor's standard response wrapper.
type envelope struct {
	Result  string         `json:"result"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

func (s *HTTPSupervisor) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building request %s %s: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling supervisor %s %s: %w", method, path, err)
	}
	return resp, nil
}

// doJSON performs a request and decodes the standard envelope, failing on a
// non-ok result.
func (s *HTTPSupervisor) doJSON(ctx context.Context, method, path string, body any) (map[string]any, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	resp, err := s.do(ctx, method, path, reader)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding supervisor response for %s: %w", path, err)
	}
	if env.Result != "ok" {
		return nil, fmt.Errorf("supervisor request %s failed: %s", path, env.Message)
	}
	return env.Data, nil
}

// List returns the full raw record of every snapshot the supervisor holds.
// The list endpoint only returns abbreviated entries, so each slug needs a
// follow-up info call for the fields the records are expected to carry.
func (s *HTTPSupervisor) List(ctx context.Context) ([]map[string]any, error) {
	data, err := s.doJSON(ctx, http.MethodGet, "/snapshots", nil)
	if err != nil {
		return nil, err
	}

	entries, _ := data["snapshots"].([]any)
	records := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		abbreviated, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		slug, _ := abbreviated["slug"].(string)
		if slug == "" {
			continue
		}
		info, err := s.doJSON(ctx, http.MethodGet, "/snapshots/"+slug+"/info", nil)
		if err != nil {
			return nil, fmt.Errorf("fetching snapshot %s: %w", slug, err)
		}
		records = append(records, info)
	}
	return records, nil
}

// Create requests a new full snapshot and returns its slug. The call blocks
// until the supervisor finishes building the snapshot.
func (s *HTTPSupervisor) Create(ctx context.Context, name string, password string) (string, error) {
	body := map[string]any{"name": name}
	if password != "" {
		body["password"] = password
	}

	data, err := s.doJSON(ctx, http.MethodPost, "/snapshots/new/full", body)
	if err != nil {
		return "", err
	}
	slug, _ := data["slug"].(string)
	if slug == "" {
		return "", fmt.Errorf("supervisor returned no slug for new snapshot")
	}
	return slug, nil
}

// Download streams the snapshot tarball. The caller must close the returned
// reader.
func (s *HTTPSupervisor) Download(ctx context.Context, slug string) (io.ReadCloser, error) {
	resp, err := s.do(ctx, http.MethodGet, "/snapshots/"+slug+"/download", nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("downloading snapshot %s: unexpected status %s", slug, resp.Status)
	}
	return resp.Body, nil
}

// Upload imports a snapshot tarball and returns the assigned slug.
func (s *HTTPSupervisor) Upload(ctx context.Context, r io.Reader) (string, error) {
	resp, err := s.do(ctx, http.MethodPost, "/snapshots/new/upload", r)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return "", fmt.Errorf("decoding upload response: %w", err)
	}
	if env.Result != "ok" {
		return "", fmt.Errorf("supervisor upload failed: %s", env.Message)
	}
	slug, _ := env.Data["slug"].(string)
	if slug == "" {
		return "", fmt.Errorf("supervisor returned no slug for uploaded snapshot")
	}
	return slug, nil
}

// Delete removes the snapshot from the supervisor.
func (s *HTTPSupervisor) Delete(ctx context.Context, slug string) error {
	_, err := s.doJSON(ctx, http.MethodPost, "/snapshots/"+slug+"/remove", nil)
	return err
}
