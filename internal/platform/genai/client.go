package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/atelierhq/roomora-backend/internal/conversation"
	"github.com/atelierhq/roomora-backend/internal/pkg/faults"
	"github.com/atelierhq/roomora-backend/internal/platform/envutil"
	"github.com/atelierhq/roomora-backend/internal/platform/logger"
)

// GenerateDesignRequest drives one design-candidate render.
type GenerateDesignRequest struct {
	Prompt          string   `json:"prompt"`
	RoomPhotoURLs   []string `json:"room_photo_urls"`
	InspirationURLs []string `json:"inspiration_urls,omitempty"`
	ScanRef         string   `json:"scan_ref,omitempty"`
}

// DesignArtifact references a rendered design hosted by the provider.
type DesignArtifact struct {
	ImageURL string `json:"image_url"`
	Summary  string `json:"summary,omitempty"`
}

// ExtractedItem is one furnishing the model identified in a final design.
type ExtractedItem struct {
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Size     string `json:"size,omitempty"`
}

// Client is the image-model provider client. What the model does with the
// prompts is opaque to the rest of the backend.
type Client interface {
	GenerateDesign(ctx context.Context, req GenerateDesignRequest) (DesignArtifact, error)
	ExtractItems(ctx context.Context, prompt string, imageURL string) ([]ExtractedItem, error)

	// Continue satisfies conversation.Model: one multi-turn exchange with
	// full restored history as context.
	Continue(ctx context.Context, history []conversation.Turn, parts []conversation.Part) (conversation.Turn, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	maxRetries int
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	baseURL := envutil.Str("DESIGN_MODEL_BASE_URL", "")
	apiKey := envutil.Str("DESIGN_MODEL_API_KEY", "")
	if baseURL == "" || apiKey == "" {
		return nil, fmt.Errorf("missing DESIGN_MODEL_BASE_URL or DESIGN_MODEL_API_KEY")
	}
	return &client{
		log:        log.With("service", "DesignModelClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      envutil.Str("DESIGN_MODEL_NAME", "design-xl"),
		httpClient: &http.Client{Timeout: envutil.Seconds("DESIGN_MODEL_TIMEOUT_SECONDS", 120)},
		maxRetries: envutil.Int("DESIGN_MODEL_MAX_RETRIES", 2),
	}, nil
}

func (c *client) GenerateDesign(ctx context.Context, req GenerateDesignRequest) (DesignArtifact, error) {
	var resp struct {
		ImageURL string `json:"image_url"`
		Summary  string `json:"summary"`
	}
	body := map[string]any{
		"model":            c.model,
		"prompt":           req.Prompt,
		"room_photo_urls":  req.RoomPhotoURLs,
		"inspiration_urls": req.InspirationURLs,
		"scan_ref":         req.ScanRef,
	}
	if err := c.post(ctx, "/v1/designs/generate", body, &resp); err != nil {
		return DesignArtifact{}, err
	}
	if resp.ImageURL == "" {
		return DesignArtifact{}, faults.Transient("provider returned no image", nil)
	}
	return DesignArtifact{ImageURL: resp.ImageURL, Summary: resp.Summary}, nil
}

func (c *client) ExtractItems(ctx context.Context, prompt string, imageURL string) ([]ExtractedItem, error) {
	var resp struct {
		Items []ExtractedItem `json:"items"`
	}
	body := map[string]any{
		"model":     c.model,
		"prompt":    prompt,
		"image_url": imageURL,
	}
	if err := c.post(ctx, "/v1/designs/extract", body, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// Wire form for the conversational endpoint. Mirrors the persisted session
// layout so histories cross the boundary without re-shaping.
type wirePart struct {
	Text      string `json:"text,omitempty"`
	Image     string `json:"image,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	Token     string `json:"continuation_token,omitempty"`
}

type wireTurn struct {
	Role  string     `json:"role"`
	Parts []wirePart `json:"parts"`
}

func (c *client) Continue(ctx context.Context, history []conversation.Turn, parts []conversation.Part) (conversation.Turn, error) {
	body := map[string]any{
		"model":   c.model,
		"history": encodeTurns(history),
		"parts":   encodeParts(parts),
	}
	var resp struct {
		Text   string `json:"text"`
		Images []struct {
			Data      string `json:"data"`
			MediaType string `json:"media_type"`
		} `json:"images"`
		ContinuationToken string `json:"continuation_token"`
	}
	if err := c.post(ctx, "/v1/designs/converse", body, &resp); err != nil {
		return conversation.Turn{}, err
	}

	reply := conversation.Turn{Role: conversation.RoleModel}
	if resp.Text != "" {
		reply.Parts = append(reply.Parts, conversation.Part{Text: resp.Text})
	}
	for _, img := range resp.Images {
		raw, err := base64.StdEncoding.DecodeString(img.Data)
		if err != nil {
			return conversation.Turn{}, faults.Permanent("provider returned undecodable image payload", err)
		}
		reply.Parts = append(reply.Parts, conversation.Part{Image: raw, MediaType: img.MediaType})
	}
	if resp.ContinuationToken != "" {
		// Opaque, possibly binary; carried byte-exact.
		raw, err := base64.StdEncoding.DecodeString(resp.ContinuationToken)
		if err != nil {
			raw = []byte(resp.ContinuationToken)
		}
		reply.Parts = append(reply.Parts, conversation.Part{Token: raw})
	}
	return reply, nil
}

func encodeTurns(turns []conversation.Turn) []wireTurn {
	out := make([]wireTurn, 0, len(turns))
	for _, t := range turns {
		out = append(out, wireTurn{Role: string(t.Role), Parts: encodeParts(t.Parts)})
	}
	return out
}

func encodeParts(parts []conversation.Part) []wirePart {
	out := make([]wirePart, 0, len(parts))
	for _, p := range parts {
		switch {
		case p.IsImage():
			out = append(out, wirePart{
				Image:     base64.StdEncoding.EncodeToString(p.Image),
				MediaType: p.MediaType,
			})
		case p.IsToken():
			out = append(out, wirePart{Token: base64.StdEncoding.EncodeToString(p.Token)})
		default:
			out = append(out, wirePart{Text: p.Text})
		}
	}
	return out
}

func (c *client) post(ctx context.Context, path string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return faults.Permanent("encode provider request", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return faults.Transient("provider call canceled", ctx.Err())
			case <-time.After(time.Duration(attempt) * 2 * time.Second):
			}
		}
		lastErr = c.doOnce(ctx, path, raw, out)
		if lastErr == nil {
			return nil
		}
		if cls, ok := faults.Classify(lastErr); ok && !cls.Retryable {
			return lastErr
		}
		c.log.Warn("provider call failed; retrying", "path", path, "attempt", attempt+1, "error", lastErr)
	}
	return lastErr
}

func (c *client) doOnce(ctx context.Context, path string, raw []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return faults.Permanent("build provider request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return faults.Transient("provider unreachable", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return faults.Transient("read provider response", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(payload, out); err != nil {
			return faults.Transient("decode provider response", err)
		}
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return faults.Transient(fmt.Sprintf("provider returned %d", resp.StatusCode), nil)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return faults.Validation(fmt.Sprintf("provider rejected request: %s", truncate(payload, 200)), nil)
	default:
		// 401/403/451 and friends: policy or config, never healed by retry.
		return faults.Permanent(fmt.Sprintf("provider returned %d: %s", resp.StatusCode, truncate(payload, 200)), nil)
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
