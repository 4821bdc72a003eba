package docstore

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

type fetchFunc func(ctx context.Context, q Query) ([]Document, error)

type subscription struct {
	logger zerolog.Logger
	query  Query
	fetch  fetchFunc
	fn     func([]Document)

	ctx    context.Context
	cancel context.CancelFunc
	// changed holds at most one pending signal, so a burst of changes
	// collapses into a single refetch.
	changed chan struct{}
	done    chan struct{}

	// mu is held for the whole delivery so Cancel can wait it out.
	mu     sync.Mutex
	closed bool

	once     sync.Once
	onCancel func(*subscription)
}

func newSubscription(
	ctx context.Context,
	logger zerolog.Logger,
	q Query,
	fetch fetchFunc,
	fn func([]Document),
	onCancel func(*subscription),
) *subscription {
	ctx, cancel := context.WithCancel(ctx)
	return &subscription{
		logger:   logger,
		query:    q,
		fetch:    fetch,
		fn:       fn,
		ctx:      ctx,
		cancel:   cancel,
		changed:  make(chan struct{}, 1),
		done:     make(chan struct{}),
		onCancel: onCancel,
	}
}

func (s *subscription) start() {
	s.notify()
	go s.run()
}

func (s *subscription) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

func (s *subscription) run() {
	defer close(s.done)
	defer s.Cancel()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.changed:
		}

		docs, err := s.fetch(s.ctx, s.query)
		if err != nil {
			if errors.Is(err, context.Canceled) || s.ctx.Err() != nil {
				return
			}
			s.logger.Error().
				Err(err).
				Str("collection", s.query.Collection).
				Msg("failed to refresh subscription")
			continue
		}
		s.deliver(docs)
	}
}

func (s *subscription) deliver(docs []Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.fn(docs)
}

func (s *subscription) Cancel() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.cancel()
		if s.onCancel != nil {
			s.onCancel(s)
		}
		s.logger.Debug().
			Str("collection", s.query.Collection).
			Msg("cancelled subscription")
	})
}

// hub fans collection change signals out to subscriptions. resized runs
// after every add and remove, outside the hub lock, so a backend can keep its
// change feed open only while somebody is listening.
type hub struct {
	mu    sync.Mutex
	subs  map[string]map[*subscription]struct{}
	count int

	resized func()
}

func newHub(resized func()) *hub {
	return &hub{
		subs:    make(map[string]map[*subscription]struct{}),
		resized: resized,
	}
}

func (h *hub) add(s *subscription) {
	h.mu.Lock()
	set, ok := h.subs[s.query.Collection]
	if !ok {
		set = make(map[*subscription]struct{})
		h.subs[s.query.Collection] = set
	}
	set[s] = struct{}{}
	h.count++
	h.mu.Unlock()

	if h.resized != nil {
		h.resized()
	}
}

func (h *hub) remove(s *subscription) {
	h.mu.Lock()
	set := h.subs[s.query.Collection]
	if _, ok := set[s]; !ok {
		h.mu.Unlock()
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, s.query.Collection)
	}
	h.count--
	h.mu.Unlock()

	if h.resized != nil {
		h.resized()
	}
}

func (h *hub) publish(collection string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.subs[collection] {
		s.notify()
	}
}

func (h *hub) publishAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, set := range h.subs {
		for s := range set {
			s.notify()
		}
	}
}

func (h *hub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

func (h *hub) cancelAll() {
	h.mu.Lock()
	all := make([]*subscription, 0, h.count)
	for _, set := range h.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	h.mu.Unlock()

	for _, s := range all {
		s.Cancel()
	}
}

// feed runs a backend change listener while active reports true.
type feed struct {
	mu     sync.Mutex
	active func() bool
	listen func(ctx context.Context)
	cancel context.CancelFunc
	done   chan struct{}
}

func (f *feed) reconcile() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set(f.active())
}

func (f *feed) stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set(false)
}

func (f *feed) set(active bool) {
	switch {
	case active && f.cancel == nil:
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		f.cancel, f.done = cancel, done
		go func() {
			defer close(done)
			f.listen(ctx)
		}()
	case !active && f.cancel != nil:
		f.cancel()
		<-f.done
		f.cancel, f.done = nil, nil
	}
}

func (f *feed) running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancel != nil
}
