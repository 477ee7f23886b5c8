// Package sentiment classifies story text through a local Ollama instance.
// The backend is best-effort: every failure degrades to Unknown so display
// and rotation are never blocked on the model.
package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Label is the sentiment attached to a displayed story.
type Label string

const (
	Positive Label = "Positive"
	Negative Label = "Negative"
	Neutral  Label = "Neutral"
	Unknown  Label = "Unknown"
)

const promptTemplate = `Analyze the sentiment of this news story. Respond with exactly one word: positive, negative, or neutral.

%s`

// Analyzer classifies text. Implementations must be safe for concurrent use.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (Label, error)
}

// Client talks to a local Ollama instance.
type Client struct {
	endpoint string
	model    string
	client   *http.Client

	checkOnce sync.Once
	checkErr  error
}

func NewClient(endpoint, model string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3:latest"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		client:   &http.Client{Timeout: timeout},
	}
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Models lists the models available on the Ollama instance.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing models: status %d", resp.StatusCode)
	}
	var tr tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	names := make([]string, 0, len(tr.Models))
	for _, m := range tr.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// checkModel validates the configured model exists, once per run.
func (c *Client) checkModel(ctx context.Context) error {
	c.checkOnce.Do(func() {
		models, err := c.Models(ctx)
		if err != nil {
			c.checkErr = err
			return
		}
		for _, m := range models {
			if m == c.model {
				return
			}
		}
		c.checkErr = fmt.Errorf("model %q not found (available: %s)", c.model, strings.Join(models, ", "))
	})
	return c.checkErr
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Analyze classifies one piece of text. It returns Unknown alongside the
// error on any failure; callers log and move on.
func (c *Client) Analyze(ctx context.Context, text string) (Label, error) {
	if err := c.checkModel(ctx); err != nil {
		return Unknown, err
	}

	body, _ := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: fmt.Sprintf(promptTemplate, text),
		Stream: false,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return Unknown, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Unknown, fmt.Errorf("generate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Unknown, fmt.Errorf("generate: status %d: %s", resp.StatusCode, string(b))
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return Unknown, fmt.Errorf("generate: decoding: %w", err)
	}
	return ParseLabel(gr.Response), nil
}

// ParseLabel maps free-form model output onto a Label.
func ParseLabel(s string) Label {
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, "positive"):
		return Positive
	case strings.Contains(s, "negative"):
		return Negative
	case strings.Contains(s, "neutral"):
		return Neutral
	default:
		return Unknown
	}
}
