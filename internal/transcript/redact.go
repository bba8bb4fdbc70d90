package transcript

import (
	"context"

	"github.com/ent0n29/nova-relay/internal/policy"
)

// RedactingStore masks PII in the prompt before handing the transcript on.
type RedactingStore struct {
	next Store
}

func NewRedactingStore(next Store) *RedactingStore {
	return &RedactingStore{next: next}
}

func (s *RedactingStore) Save(ctx context.Context, t Transcript) error {
	redacted, changed := policy.RedactPII(t.Prompt)
	t.Prompt = redacted
	t.PIIRedacted = t.PIIRedacted || changed
	return s.next.Save(ctx, t)
}

func (s *RedactingStore) Close() error { return s.next.Close() }
