package speech

import "context"

// SpeechProvider defines the interface for voice transcription and synthesis
type SpeechProvider interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
