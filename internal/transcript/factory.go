package transcript

import (
	"context"
	"strings"
)

// Config selects the transcript sinks.
type Config struct {
	Dir         string
	DatabaseURL string
	RedactPII   bool
}

// NewStore builds a store for every configured sink. With no sinks it returns a no-op store.
func NewStore(ctx context.Context, cfg Config) (Store, error) {
	var stores []Store
	if dir := strings.TrimSpace(cfg.Dir); dir != "" {
		stores = append(stores, NewFileStore(dir))
	}
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		pg, err := NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		stores = append(stores, pg)
	}

	var s Store
	switch len(stores) {
	case 0:
		return NopStore{}, nil
	case 1:
		s = stores[0]
	default:
		s = NewMultiStore(stores...)
	}
	if cfg.RedactPII {
		s = NewRedactingStore(s)
	}
	return s, nil
}

// NopStore discards transcripts.
type NopStore struct{}

func (NopStore) Save(context.Context, Transcript) error { return nil }
func (NopStore) Close() error                           { return nil }
