package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultOllamaBaseURL points at a local Ollama instance.
const DefaultOllamaBaseURL = "http://localhost:11434"

// DefaultOllamaModel is the embedding model used when none is configured.
const DefaultOllamaModel = "nomic-embed-text"

// embedConcurrency bounds parallel embed calls so a local instance isn't
// overwhelmed by large title batches.
const embedConcurrency = 4

// OllamaClient generates embeddings with a local Ollama instance, an offline
// alternative to the hosted OpenAI provider.
type OllamaClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllama creates a client targeting the given Ollama base URL. Empty
// baseURL or model fall back to localhost and nomic-embed-text.
func NewOllama(baseURL, model string) *OllamaClient {
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	return &OllamaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// embedRequest is the JSON body for POST /api/embed.
type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// embedResponse is the JSON returned by POST /api/embed.
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// EmbedTitles embeds each title with a separate API call, bounded to
// embedConcurrency in flight, and returns vectors in input order.
func (c *OllamaClient) EmbedTitles(ctx context.Context, titles []string) ([][]float32, error) {
	if len(titles) == 0 {
		return nil, nil
	}

	vecs := make([][]float32, len(titles))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)

	for i, title := range titles {
		g.Go(func() error {
			vec, err := c.embed(gCtx, title)
			if err != nil {
				return fmt.Errorf("embedding title %d: %w", i, err)
			}
			vecs[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vecs, nil
}

func (c *OllamaClient) embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: c.model, Input: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed: unexpected status %d", resp.StatusCode)
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding embed response: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("embed: empty embeddings array")
	}
	return result.Embeddings[0], nil
}
