package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ai-docreview-be/internal/pkg/apperrors"
)

type embeddingRequestContentPart struct {
	Text string `json:"text"`
}

type embeddingRequestContent struct {
	Parts []embeddingRequestContentPart `json:"parts"`
}

type embeddingRequest struct {
	Model    string                  `json:"model"`
	Content  embeddingRequestContent `json:"content"`
	TaskType string                  `json:"taskType,omitempty"`
}

type embeddingResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

type GeminiProvider struct {
	apiKey    string
	modelName string
	dimension int
	client    *http.Client
}

func NewGeminiProvider(apiKey string, modelName string, dimension int) EmbeddingProvider {
	return &GeminiProvider{
		apiKey:    apiKey,
		modelName: modelName,
		dimension: dimension,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *GeminiProvider) Generate(ctx context.Context, text string, taskType string) ([]float32, error) {
	geminiReq := embeddingRequest{
		Model: p.modelName,
		Content: embeddingRequestContent{
			Parts: []embeddingRequestContentPart{
				{
					Text: text,
				},
			},
		},
		TaskType: taskType,
	}
	geminiReqJson, err := json.Marshal(geminiReq)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf(
		"https://generativelanguage.googleapis.com/v1/models/%s:embedContent",
		p.modelName,
	)

	req, err := http.NewRequestWithContext(
		ctx,
		"POST",
		endpoint,
		bytes.NewBuffer(geminiReqJson),
	)
	if err != nil {
		return nil, err
	}

	req.Header.Set("x-goog-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	resByte, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	if res.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("embedding quota exhausted: %w", apperrors.NewRateLimitError(30))
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("error from gemini embedding response, code %d, body %s", res.StatusCode, string(resByte))
	}

	var resEmbedding embeddingResponse
	err = json.Unmarshal(resByte, &resEmbedding)
	if err != nil {
		return nil, err
	}

	values := resEmbedding.Embedding.Values
	if len(values) == 0 {
		return nil, fmt.Errorf("gemini embedding response contained no values")
	}
	if p.dimension > 0 && len(values) != p.dimension {
		return nil, fmt.Errorf("gemini embedding dimension mismatch: got %d, want %d", len(values), p.dimension)
	}

	return values, nil
}
