// Package content talks to the external content service that owns document
// storage. Creating a collaborative session clones the source document there;
// this subsystem only holds the resulting opaque content id.
package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Cloner duplicates documents and their annotations in the content service.
type Cloner interface {
	// OwnsContent reports whether the user owns the source document.
	OwnsContent(ctx context.Context, userID int64, contentID string) (bool, error)
	// Clone duplicates the source document under a new content identity.
	Clone(ctx context.Context, sourceContentID string) (string, error)
	// EnrichClone copies prior message history and annotations from the
	// source conversation onto the clone. Best-effort: callers retry in the
	// background and never surface failures to the user.
	EnrichClone(ctx context.Context, cloneContentID, sourceConversationID string) error
}

// Config holds content service connection settings.
type Config struct {
	BaseURL string
	APIKey  string
}

// Client is the HTTP implementation of Cloner.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type ownershipResponse struct {
	Owner bool `json:"owner"`
}

type cloneRequest struct {
	SourceContentID string `json:"source_content_id"`
}

type cloneResponse struct {
	ContentID string `json:"content_id"`
}

type enrichRequest struct {
	ContentID            string `json:"content_id"`
	SourceConversationID string `json:"source_conversation_id"`
}

func (c *Client) OwnsContent(ctx context.Context, userID int64, contentID string) (bool, error) {
	url := fmt.Sprintf("%s/api/content/%s/ownership?user_id=%d", c.cfg.BaseURL, contentID, userID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}

	var out ownershipResponse
	if err := c.do(req, &out); err != nil {
		return false, err
	}
	return out.Owner, nil
}

func (c *Client) Clone(ctx context.Context, sourceContentID string) (string, error) {
	body, err := json.Marshal(cloneRequest{SourceContentID: sourceContentID})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/api/content/clone", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out cloneResponse
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	if out.ContentID == "" {
		return "", fmt.Errorf("content service returned empty content id")
	}
	return out.ContentID, nil
}

func (c *Client) EnrichClone(ctx context.Context, cloneContentID, sourceConversationID string) error {
	body, err := json.Marshal(enrichRequest{
		ContentID:            cloneContentID,
		SourceConversationID: sourceConversationID,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/api/content/enrich", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("content service request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("content service returned status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
