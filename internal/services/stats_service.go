package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/adanyl0v/tasks-plus/internal/docstore"
)

const countTimeout = 10 * time.Second

type statsServiceImpl struct {
	logger   zerolog.Logger
	store    docstore.Store
	interval time.Duration
	now      func() time.Time

	group singleflight.Group

	mu     sync.RWMutex
	cached *Counts
}

func NewStatsService(
	logger zerolog.Logger,
	store docstore.Store,
	interval time.Duration,
) StatsService {
	return &statsServiceImpl{
		logger:   logger,
		store:    store,
		interval: interval,
		now:      time.Now,
	}
}

func (s *statsServiceImpl) Counts(ctx context.Context) (*Counts, error) {
	s.mu.RLock()
	cached := s.cached
	s.mu.RUnlock()

	if cached != nil && s.now().Sub(cached.RevalidatedAt) < s.interval {
		counts := *cached
		return &counts, nil
	}

	v, err, shared := s.group.Do("counts", func() (any, error) {
		return s.revalidate(context.WithoutCancel(ctx))
	})
	if err != nil {
		if cached != nil {
			s.logger.Warn().
				Err(err).
				Time("revalidated_at", cached.RevalidatedAt).
				Msg("serving stale counts")
			counts := *cached
			return &counts, nil
		}
		return nil, err
	}

	s.logger.Debug().
		Bool("shared", shared).
		Msg("revalidated counts")
	counts := *v.(*Counts)
	return &counts, nil
}

func (s *statsServiceImpl) revalidate(ctx context.Context) (*Counts, error) {
	ctx, cancel := context.WithTimeout(ctx, countTimeout)
	defer cancel()

	counts := &Counts{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.store.Count(gctx, TasksCollection)
		if err != nil {
			return remoteError(OpRead, TasksCollection, err)
		}
		counts.Tasks = n
		return nil
	})
	g.Go(func() error {
		n, err := s.store.Count(gctx, CommentsCollection)
		if err != nil {
			return remoteError(OpRead, CommentsCollection, err)
		}
		counts.Comments = n
		return nil
	})

	err := g.Wait()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to count documents")
		return nil, err
	}
	counts.RevalidatedAt = s.now()

	s.mu.Lock()
	s.cached = counts
	s.mu.Unlock()

	s.logger.Info().
		Int64("tasks", counts.Tasks).
		Int64("comments", counts.Comments).
		Msg("counted documents")
	return counts, nil
}
