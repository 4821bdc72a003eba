package docstore

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type memoryDocument struct {
	seq    int64
	fields Fields
}

// MemoryStore keeps documents in process. Writes notify subscribers
// directly, so it behaves like the remote backends minus the network.
type MemoryStore struct {
	logger zerolog.Logger

	mu          sync.RWMutex
	seq         int64
	collections map[string]map[string]memoryDocument

	hub *hub
}

func NewMemoryStore(logger zerolog.Logger) *MemoryStore {
	return &MemoryStore{
		logger:      logger,
		collections: make(map[string]map[string]memoryDocument),
		hub:         newHub(nil),
	}
}

func (s *MemoryStore) Get(_ context.Context, collection, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return &Document{ID: id, Fields: doc.fields.clone()}, nil
}

func (s *MemoryStore) Add(ctx context.Context, collection string, fields Fields) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate document id: %w", err)
	}

	err = s.Put(ctx, collection, id.String(), fields)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *MemoryStore) Put(_ context.Context, collection, id string, fields Fields) error {
	if collection == "" || id == "" {
		return fmt.Errorf("%w: empty collection or id", ErrMalformedDocument)
	}
	normalized, err := normalize(fields)
	if err != nil {
		return err
	}

	s.mu.Lock()
	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]memoryDocument)
		s.collections[collection] = docs
	}
	var seq int64
	if existing, ok := docs[id]; ok {
		seq = existing.seq
	} else {
		s.seq++
		seq = s.seq
	}
	docs[id] = memoryDocument{seq: seq, fields: normalized}
	s.mu.Unlock()

	s.logger.Debug().
		Str("collection", collection).
		Str("id", id).
		Msg("stored document")
	s.hub.publish(collection)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	_, ok := s.collections[collection][id]
	if ok {
		delete(s.collections[collection], id)
	}
	s.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	s.logger.Debug().
		Str("collection", collection).
		Str("id", id).
		Msg("deleted document")
	s.hub.publish(collection)
	return nil
}

func (s *MemoryStore) Find(_ context.Context, q Query) ([]Document, error) {
	err := q.validate()
	if err != nil {
		return nil, err
	}
	filters, err := q.normalizedFilters()
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	found := make([]memoryDocument, 0)
	ids := make(map[int64]string)
	for id, doc := range s.collections[q.Collection] {
		if !matches(doc.fields, filters) {
			continue
		}
		found = append(found, memoryDocument{seq: doc.seq, fields: doc.fields.clone()})
		ids[doc.seq] = id
	}
	s.mu.RUnlock()

	slices.SortFunc(found, func(a, b memoryDocument) int {
		if q.Sort != nil {
			c := compareValues(a.fields[q.Sort.Field], b.fields[q.Sort.Field])
			if q.Sort.Direction == Descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		default:
			return 0
		}
	})

	out := make([]Document, len(found))
	for i, doc := range found {
		out[i] = Document{ID: ids[doc.seq], Fields: doc.fields}
	}
	return out, nil
}

func (s *MemoryStore) Count(_ context.Context, collection string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.collections[collection])), nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, q Query, fn func([]Document)) (Subscription, error) {
	err := q.validate()
	if err != nil {
		return nil, err
	}

	sub := newSubscription(ctx, s.logger, q, s.Find, fn, s.hub.remove)
	s.hub.add(sub)
	sub.start()
	return sub, nil
}

func (s *MemoryStore) Close(_ context.Context) error {
	s.hub.cancelAll()
	return nil
}
