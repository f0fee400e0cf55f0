package speech

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

const (
	sttEndpoint = "https://api.deepgram.com/v1/listen?model=nova-2&language=en&smart_format=true&punctuate=true"
	ttsEndpoint = "https://api.deepgram.com/v1/speak?model=aura-2-en&encoding=linear16&sample_rate=24000&container=wav"
)

type transcriptionResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

type DeepgramProvider struct {
	apiKey string
	client *http.Client
}

func NewDeepgramProvider(apiKey string) SpeechProvider {
	return &DeepgramProvider{
		apiKey: apiKey,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *DeepgramProvider) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if p.apiKey == "" {
		return "", apperrors.NewConfigurationError("DEEPGRAM_API_KEY not configured")
	}
	if mimeType == "" {
		mimeType = "audio/webm"
	}

	req, err := http.NewRequestWithContext(ctx, "POST", sttEndpoint, bytes.NewReader(audio))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	req.Header.Set("Content-Type", mimeType)

	res, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return "", err
	}
	if res.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("deepgram quota exhausted: %w", apperrors.NewRateLimitError(30))
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("deepgram transcription failed, code %d, body %s", res.StatusCode, string(resBody))
	}

	var parsed transcriptionResponse
	if err := json.Unmarshal(resBody, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Results.Channels) == 0 || len(parsed.Results.Channels[0].Alternatives) == 0 {
		return "", fmt.Errorf("deepgram transcription response contained no alternatives")
	}

	return parsed.Results.Channels[0].Alternatives[0].Transcript, nil
}

func (p *DeepgramProvider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if p.apiKey == "" {
		return nil, apperrors.NewConfigurationError("DEEPGRAM_API_KEY not configured")
	}

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", ttsEndpoint, bytes.NewBuffer(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	audio, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("deepgram quota exhausted: %w", apperrors.NewRateLimitError(30))
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("deepgram synthesis failed, code %d, body %s", res.StatusCode, string(audio))
	}

	return audio, nil
}
