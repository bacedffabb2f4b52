// Package service serves the release note feed with cache-aside reads.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"roadbook/internal/cache"
	"roadbook/internal/update/models"
	dErrors "roadbook/pkg/domain-errors"
	"roadbook/pkg/platform/sentinel"
)

type Store interface {
	UpdatesAfterVersion(ctx context.Context, version string, page, limit int) ([]models.Row, int, error)
}

var ErrVersionNotFound = dErrors.New(dErrors.CodeNotFound, "unknown version")

type Service struct {
	store  Store
	cache  cache.Store
	logger *slog.Logger
	tracer trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(store Store, cacheStore cache.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("update store is required")
	}
	if cacheStore == nil {
		return nil, errors.New("cache store is required")
	}
	svc := &Service{
		store:  store,
		cache:  cacheStore,
		logger: slog.Default(),
		tracer: otel.Tracer("roadbook/update"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// UpdatesAfterVersion returns the page of updates released after the
// client's version plus a total. On a cache hit the cached page's length
// stands in for the total; the table is effectively append-only, so the
// snapshot and its count age out together with the TTL.
func (s *Service) UpdatesAfterVersion(ctx context.Context, q models.Query) ([]models.Update, int, error) {
	if err := q.Validate(); err != nil {
		return nil, 0, err
	}

	ctx, span := s.tracer.Start(ctx, "update.version_lookup")
	defer span.End()

	key := cache.UpdatesKey(q.Version, q.Page, q.Limit)
	raw, found, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "cache read failed", "error", err, "key", key)
	} else if found {
		var cached []models.Update
		if err := json.Unmarshal(raw, &cached); err == nil {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return cached, len(cached), nil
		}
		s.logger.WarnContext(ctx, "corrupt cache entry", "key", key)
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	rows, total, err := s.store.UpdatesAfterVersion(ctx, q.Version, q.Page, q.Limit)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, 0, ErrVersionNotFound
		}
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load updates")
	}

	updates := make([]models.Update, 0, len(rows))
	for _, r := range rows {
		updates = append(updates, r.ToUpdate())
	}

	if encoded, err := json.Marshal(updates); err == nil {
		if err := s.cache.SetTTL(ctx, key, encoded, cache.UpdatesTTL); err != nil {
			s.logger.WarnContext(ctx, "cache write failed", "error", err, "key", key)
		}
	}

	return updates, total, nil
}
