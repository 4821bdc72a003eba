package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PageView is one visit to a public task page. Its comment thread lives
// exactly as long as the view.
type PageView struct {
	ID     string
	Task   TaskView
	Thread *CommentThread

	lastSeen time.Time
}

// ViewRegistry keeps open page views and drops the ones that were idle for
// longer than the ttl.
type ViewRegistry struct {
	logger   zerolog.Logger
	comments CommentService
	ttl      time.Duration
	now      func() time.Time

	mu    sync.Mutex
	views map[string]*PageView
}

func NewViewRegistry(
	logger zerolog.Logger,
	comments CommentService,
	ttl time.Duration,
) *ViewRegistry {
	return &ViewRegistry{
		logger:   logger,
		comments: comments,
		ttl:      ttl,
		now:      time.Now,
		views:    make(map[string]*PageView),
	}
}

// Open starts a page view for an allowed task and loads its comments.
func (r *ViewRegistry) Open(ctx context.Context, task TaskView) (*PageView, error) {
	viewUUID, err := uuid.NewV7()
	if err != nil {
		r.logger.Error().
			Err(err).
			Msg("failed to generate view uuid")
		return nil, err
	}

	thread := NewCommentThread(r.logger.With().Str("view_id", viewUUID.String()).Logger(), r.comments)
	_, err = thread.Load(ctx, task.TaskID)
	if err != nil {
		return nil, err
	}

	view := &PageView{
		ID:       viewUUID.String(),
		Task:     task,
		Thread:   thread,
		lastSeen: r.now(),
	}

	r.mu.Lock()
	r.views[view.ID] = view
	r.mu.Unlock()

	r.logger.Debug().
		Str("view_id", view.ID).
		Str("task_id", task.TaskID).
		Msg("opened page view")
	return view, nil
}

// Get returns an open view and marks it as used.
func (r *ViewRegistry) Get(viewID string) (*PageView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	view, ok := r.views[viewID]
	if !ok || r.expired(view) {
		return nil, ErrViewNotFound
	}
	view.lastSeen = r.now()
	return view, nil
}

// Close ends a view, waiting for its pending comment writes.
func (r *ViewRegistry) Close(viewID string) {
	r.mu.Lock()
	view, ok := r.views[viewID]
	delete(r.views, viewID)
	r.mu.Unlock()

	if ok {
		view.Thread.Close()
		r.logger.Debug().
			Str("view_id", viewID).
			Msg("closed page view")
	}
}

// Sweep drops expired views and returns how many were dropped.
func (r *ViewRegistry) Sweep() int {
	r.mu.Lock()
	var expired []*PageView
	for id, view := range r.views {
		if r.expired(view) {
			expired = append(expired, view)
			delete(r.views, id)
		}
	}
	r.mu.Unlock()

	for _, view := range expired {
		view.Thread.Close()
	}
	if len(expired) > 0 {
		r.logger.Debug().
			Int("count", len(expired)).
			Msg("swept expired page views")
	}
	return len(expired)
}

// CloseAll ends every view, waiting for their pending comment writes, and
// returns how many were closed.
func (r *ViewRegistry) CloseAll() int {
	r.mu.Lock()
	views := r.views
	r.views = make(map[string]*PageView)
	r.mu.Unlock()

	for _, view := range views {
		view.Thread.Close()
	}
	return len(views)
}

// Run sweeps every ttl until ctx is done.
func (r *ViewRegistry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *ViewRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

func (r *ViewRegistry) expired(view *PageView) bool {
	return r.now().Sub(view.lastSeen) > r.ttl
}
