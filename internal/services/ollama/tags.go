package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Tags lists the model names available on the server.
func (c *Client) Tags(ctx context.Context) ([]string, error) {
	endpoint, err := url.JoinPath(c.cfg.BaseURL, "/api/tags")
	if err != nil {
		return nil, fmt.Errorf("ollama tags: build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("ollama tags: new request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama tags: http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ollama tags: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("ollama tags: http %d: %s", resp.StatusCode, apiErrorMessage(body))
	}
	var payload struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("ollama tags: decode response: %w", err)
	}
	names := make([]string, 0, len(payload.Models))
	for _, model := range payload.Models {
		if name := strings.TrimSpace(model.Name); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// HealthCheck verifies the server is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.Tags(ctx)
	return err
}

// MissingModels reports which of the given aliases the server has not
// pulled. A bare alias matches its ":latest" tag.
func (c *Client) MissingModels(ctx context.Context, models []string) ([]string, error) {
	names, err := c.Tags(ctx)
	if err != nil {
		return nil, err
	}
	available := make(map[string]struct{}, len(names)*2)
	for _, name := range names {
		available[name] = struct{}{}
		available[strings.TrimSuffix(name, ":latest")] = struct{}{}
	}
	var missing []string
	for _, model := range models {
		model = strings.TrimSpace(model)
		if model == "" {
			continue
		}
		if _, ok := available[model]; ok {
			continue
		}
		missing = append(missing, model)
	}
	return missing, nil
}
