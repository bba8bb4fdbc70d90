package transcript

import (
	"context"
	"time"
)

// Transcript is the rendered conversation context captured for one inbound message.
type Transcript struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Author      string    `json:"author"`
	Prompt      string    `json:"prompt"`
	Turns       int       `json:"turns"`
	PIIRedacted bool      `json:"pii_redacted"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store archives transcripts. Archiving is best-effort and never feeds back into memory.
type Store interface {
	Save(ctx context.Context, t Transcript) error
	Close() error
}
