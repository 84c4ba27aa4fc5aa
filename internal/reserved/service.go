// Package reserved maintains the administrator-curated deny-list of names
// withheld from public minting. One list is shared by every namespace ledger.
package reserved

import (
	"context"
	"errors"
	"log/slog"

	"meroku/internal/names"
	dErrors "meroku/pkg/domain-errors"
	"meroku/pkg/platform/sentinel"
)

// Store persists the reserved set. Lookups are case-insensitive; stores keep
// names folded to lower case.
type Store interface {
	// Add inserts a name, returning sentinel.ErrAlreadyUsed for duplicates.
	Add(ctx context.Context, name string) error
	Contains(ctx context.Context, name string) (bool, error)
	List(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
}

// WatermarkStore records per-source ingestion progress so a partially failed
// batch run resumes from the last committed index.
type WatermarkStore interface {
	Watermark(ctx context.Context, source string) (int, error)
	SetWatermark(ctx context.Context, source string, index int) error
}

// Service wraps the store with normalization and batch ingestion.
type Service struct {
	store      Store
	watermarks WatermarkStore
	logger     *slog.Logger
}

type Option func(*Service)

func WithWatermarks(ws WatermarkStore) Option {
	return func(s *Service) { s.watermarks = ws }
}

func New(store Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{store: store, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsReserved reports whether the (normalized) name is withheld from minting.
func (s *Service) IsReserved(ctx context.Context, name string) (bool, error) {
	ok, err := s.store.Contains(ctx, names.Fold(name))
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check reserved list")
	}
	return ok, nil
}

// Append adds names to the reserved set. Duplicates are skipped silently; the
// returned count is the number of names actually inserted.
func (s *Service) Append(ctx context.Context, raw []string) (int, error) {
	added := 0
	for _, name := range raw {
		folded := names.Fold(name)
		if folded == "" {
			continue
		}
		err := s.store.Add(ctx, folded)
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			continue
		}
		if err != nil {
			return added, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append reserved name")
		}
		added++
	}
	return added, nil
}

// List returns the full reserved set.
func (s *Service) List(ctx context.Context) ([]string, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list reserved names")
	}
	return list, nil
}

// Count returns the size of the reserved set.
func (s *Service) Count(ctx context.Context) (int, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count reserved names")
	}
	return n, nil
}

// ingestBatchSize matches the bulk tooling's append batches.
const ingestBatchSize = 100

// Ingest appends list in batches of 100, committing a watermark per batch so
// a failed run resumes from the last whitelisted index instead of the start.
func (s *Service) Ingest(ctx context.Context, source string, list []string) (int, error) {
	if s.watermarks == nil {
		return 0, dErrors.New(dErrors.CodeInternal, "ingestion requires a watermark store")
	}

	start, err := s.watermarks.Watermark(ctx, source)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read ingest watermark")
	}
	if start >= len(list) {
		return 0, nil
	}

	added := 0
	for idx := start; idx < len(list); idx += ingestBatchSize {
		end := min(idx+ingestBatchSize, len(list))
		n, err := s.Append(ctx, list[idx:end])
		if err != nil {
			return added, err
		}
		added += n
		if err := s.watermarks.SetWatermark(ctx, source, end); err != nil {
			return added, dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit ingest watermark")
		}
		s.logger.InfoContext(ctx, "reserved names batch committed",
			"source", source, "from", idx, "to", end, "added", n)
	}
	return added, nil
}
