package store

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

const (
	StatsDocument = "stats"
	UsersDocument = "users"
)

// DocumentStore persists named JSON documents. Load returns an error wrapping
// ErrDocumentNotFound when nothing has been saved under name yet.
type DocumentStore interface {
	Load(ctx context.Context, name string, into any) error
	Save(ctx context.Context, name string, value any) error
}

// LoadOrDefault reads a document, substituting fallback() when the document
// is absent, unreadable or malformed. Read failures are logged, never returned.
func LoadOrDefault[T any](ctx context.Context, docs DocumentStore, name string, fallback func() T, logger zerolog.Logger) T {
	var value T
	err := docs.Load(ctx, name, &value)
	if err == nil {
		return value
	}
	if errors.Is(err, ErrDocumentNotFound) {
		logger.Debug().Str("document", name).Msg("document not found, using default")
	} else {
		logger.Warn().Err(err).Str("document", name).Msg("document unreadable, using default")
	}
	return fallback()
}
