package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"ai-docreview-be/internal/entity"
	"ai-docreview-be/internal/pkg/apperrors"
)

// RemoteOCRProvider calls an external OCR service that returns per-page
// text and word bounding boxes for a PDF.
type RemoteOCRProvider struct {
	BaseURL string
	ApiKey  string
	client  *http.Client
}

func NewRemoteOCRProvider(baseURL, apiKey string) (Extractor, error) {
	if baseURL == "" {
		return nil, apperrors.NewConfigurationError("OCR_SERVICE_URL not configured")
	}
	return &RemoteOCRProvider{
		BaseURL: baseURL,
		ApiKey:  apiKey,
		client:  &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func (p *RemoteOCRProvider) Extract(ctx context.Context, documentPath string) (*entity.Extraction, error) {
	pdfBytes, err := os.ReadFile(documentPath)
	if err != nil {
		return nil, apperrors.NewExtractionError(fmt.Sprintf("failed to read document: %v", err), "")
	}

	endpoint := fmt.Sprintf("%s/v1/extract", p.BaseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(pdfBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("Authorization", "Bearer "+p.ApiKey)

	res, err := p.client.Do(req)
	if err != nil {
		return nil, apperrors.NewExtractionError(fmt.Sprintf("extraction request failed: %v", err), "")
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	if res.StatusCode != http.StatusOK {
		return nil, apperrors.NewExtractionError(
			fmt.Sprintf("extraction service returned %d: %s", res.StatusCode, string(resBody)), "")
	}

	var result entity.Extraction
	if err := json.Unmarshal(resBody, &result); err != nil {
		return nil, apperrors.NewExtractionError(fmt.Sprintf("malformed extraction response: %v", err), "")
	}

	if result.Metadata.PageCount == 0 {
		result.Metadata.PageCount = len(result.Pages)
	}
	if result.Metadata.WordCount == 0 {
		for _, page := range result.Pages {
			result.Metadata.WordCount += len(page.Words)
		}
	}

	return &result, nil
}
