package entity

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionStatusUploading  SessionStatus = "uploading"
	SessionStatusExtracting SessionStatus = "extracting"
	SessionStatusRedacting  SessionStatus = "redacting"
	SessionStatusAnalyzing  SessionStatus = "analyzing"
	SessionStatusComplete   SessionStatus = "complete"
	SessionStatusError      SessionStatus = "error"
)

// Terminal reports whether the pipeline is finished for this status.
// Terminal sessions stay readable until TTL expiry or explicit deletion.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusComplete || s == SessionStatusError
}

type AnalysisSession struct {
	Id           uuid.UUID
	DocumentName string
	Status       SessionStatus
	Progress     int
	Message      string
	Error        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ExpiresAt    time.Time

	// Populated when the pipeline reaches complete.
	Result *AnalysisResult

	// Distinct-from-predecessor progress messages, in order.
	MessageHistory []string

	// Path of the stored upload, removed on delete/expiry.
	TempFilePath string

	// Admission origin (client identifier) used for per-origin ceilings.
	Origin string
}

func (s *AnalysisSession) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// SessionUpdate is a partial-field patch applied atomically by the store.
// Nil fields are left untouched.
type SessionUpdate struct {
	Status   *SessionStatus
	Progress *int
	Message  *string
	Error    *string
	Result   *AnalysisResult
	TempPath *string
}

func StatusPtr(s SessionStatus) *SessionStatus { return &s }
func IntPtr(i int) *int                        { return &i }
func StrPtr(s string) *string                  { return &s }

// Apply merges the patch into the session. Messages are appended to the
// history only when they differ from the last entry, so consecutive
// duplicates collapse. Every backend routes its atomic update through
// this so merge semantics cannot drift between them.
func (s *AnalysisSession) Apply(patch SessionUpdate, now time.Time) {
	if patch.Status != nil {
		s.Status = *patch.Status
	}
	if patch.Progress != nil {
		s.Progress = *patch.Progress
	}
	if patch.Message != nil {
		s.Message = *patch.Message
		if n := len(s.MessageHistory); n == 0 || s.MessageHistory[n-1] != *patch.Message {
			s.MessageHistory = append(s.MessageHistory, *patch.Message)
		}
	}
	if patch.Error != nil {
		s.Error = *patch.Error
	}
	if patch.Result != nil {
		s.Result = patch.Result
	}
	if patch.TempPath != nil {
		s.TempFilePath = *patch.TempPath
	}
	s.UpdatedAt = now
}

// Clone returns a snapshot safe to hand to concurrent readers. The result
// pointer is shared; results are immutable once attached.
func (s *AnalysisSession) Clone() *AnalysisSession {
	cp := *s
	cp.MessageHistory = append([]string(nil), s.MessageHistory...)
	return &cp
}
