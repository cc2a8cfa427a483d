package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client calls the catalog lookup microservice.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// NewClient creates a client with a short timeout; a scan must answer fast.
func NewClient(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Resolve asks the catalog service what a code identifies. With Skip set it
// answers from the code prefix so the rest of the system runs without the
// service (dev and demo setups).
func (c *Client) Resolve(ctx context.Context, code string) (Entity, bool, error) {
	if c.Skip {
		return resolveByPrefix(code)
	}
	if code == "" {
		return Entity{}, false, fmt.Errorf("code required")
	}

	body, _ := json.Marshal(map[string]string{"code": code})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/resolve", bytes.NewReader(body))
	if err != nil {
		return Entity{}, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Entity{}, false, fmt.Errorf("lookup service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Entity{}, false, nil
	}
	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return Entity{}, false, fmt.Errorf("lookup service error %s: %s", resp.Status, string(bodyBytes))
	}

	var out Entity
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Entity{}, false, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.ID == "" {
		return Entity{}, false, nil
	}
	return out, true, nil
}

// Health checks if the lookup service is available.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("lookup service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("lookup service unhealthy: %s", resp.Status)
	}

	return nil
}

// resolveByPrefix mirrors the school's barcode scheme: S for student IDs,
// B for book accession numbers, E for equipment tags.
func resolveByPrefix(code string) (Entity, bool, error) {
	if len(code) < 2 {
		return Entity{}, false, nil
	}
	switch strings.ToUpper(code[:1]) {
	case "S":
		return Entity{Kind: KindStudent, ID: code}, true, nil
	case "B":
		return Entity{Kind: KindBook, ID: code}, true, nil
	case "E":
		return Entity{Kind: KindEquipment, ID: code}, true, nil
	}
	return Entity{}, false, nil
}
