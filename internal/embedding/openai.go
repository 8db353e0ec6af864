package embedding

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

// DefaultOpenAIBaseURL is the hosted OpenAI API endpoint.
const DefaultOpenAIBaseURL = "https://api.openai.com"

// DefaultOpenAIModel is the embedding model used when none is configured.
const DefaultOpenAIModel = "text-embedding-3-small"

// OpenAIClient talks to the OpenAI embeddings API (or any compatible
// endpoint) over HTTP.
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAI creates a client for the given endpoint. Empty baseURL or model
// fall back to the hosted API and text-embedding-3-small.
func NewOpenAI(baseURL, apiKey, model string) *OpenAIClient {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// embeddingsRequest is the JSON body for POST /v1/embeddings.
type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embeddingsResponse is the JSON returned by POST /v1/embeddings.
type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// apiError is the error envelope the OpenAI API returns on non-2xx status.
type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// EmbedTitles embeds the whole batch in a single API call and returns the
// vectors in input order.
func (c *OpenAIClient) EmbedTitles(ctx context.Context, titles []string) ([][]float32, error) {
	if len(titles) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embeddingsRequest{Model: c.model, Input: titles})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating embeddings request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embeddings request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("embeddings: status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("embeddings: unexpected status %d", resp.StatusCode)
	}

	var result embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding embeddings response: %w", err)
	}
	if len(result.Data) != len(titles) {
		return nil, fmt.Errorf("embeddings: got %d vectors for %d titles", len(result.Data), len(titles))
	}

	// The API documents data as index-annotated; order by index rather than
	// trusting response order.
	vecs := make([][]float32, len(titles))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, fmt.Errorf("embeddings: index %d out of range", d.Index)
		}
		vecs[d.Index] = d.Embedding
	}
	for i, v := range vecs {
		if len(v) == 0 {
			return nil, fmt.Errorf("embeddings: missing vector for title %d", i)
		}
	}
	return vecs, nil
}
