package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/adanyl0v/tasks-plus/internal/docstore"
	"github.com/adanyl0v/tasks-plus/internal/models"
)

var errUnavailable = errors.New("store unavailable")

// flakyStore wraps a store and fails the operations switched on.
type flakyStore struct {
	docstore.Store

	mu         sync.Mutex
	failWrites bool
	failReads  bool
	block      chan struct{}
	puts       int
}

func (s *flakyStore) setFailWrites(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = v
}

func (s *flakyStore) setFailReads(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failReads = v
}

func (s *flakyStore) writesFail() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failWrites
}

func (s *flakyStore) readsFail() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failReads
}

func (s *flakyStore) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

func (s *flakyStore) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	if s.readsFail() {
		return nil, errUnavailable
	}
	return s.Store.Get(ctx, collection, id)
}

func (s *flakyStore) Add(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	if s.writesFail() {
		return "", errUnavailable
	}
	return s.Store.Add(ctx, collection, fields)
}

func (s *flakyStore) Put(ctx context.Context, collection, id string, fields docstore.Fields) error {
	s.mu.Lock()
	s.puts++
	block := s.block
	s.mu.Unlock()

	if block != nil {
		<-block
	}
	if s.writesFail() {
		return errUnavailable
	}
	return s.Store.Put(ctx, collection, id, fields)
}

func (s *flakyStore) Delete(ctx context.Context, collection, id string) error {
	if s.writesFail() {
		return errUnavailable
	}
	return s.Store.Delete(ctx, collection, id)
}

func (s *flakyStore) Find(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if s.readsFail() {
		return nil, errUnavailable
	}
	return s.Store.Find(ctx, q)
}

func (s *flakyStore) Count(ctx context.Context, collection string) (int64, error) {
	if s.readsFail() {
		return 0, errUnavailable
	}
	return s.Store.Count(ctx, collection)
}

func newFlakyStore() *flakyStore {
	return &flakyStore{Store: docstore.NewMemoryStore(zerolog.Nop())}
}

var (
	alice = &models.Identity{Email: "alice@example.com", Name: "Alice"}
	bob   = &models.Identity{Email: "bob@example.com", Name: "Bob"}
)

func seedTask(t *testing.T, store docstore.Store, owner, text string, isPublic bool, createdAt time.Time) string {
	t.Helper()
	id, err := store.Add(context.Background(), TasksCollection, taskFields(&models.Task{
		Owner:     owner,
		Text:      text,
		IsPublic:  isPublic,
		CreatedAt: createdAt,
	}))
	require.NoError(t, err)
	return id
}

func seedComment(t *testing.T, store docstore.Store, id, taskID string, author *models.Identity, text string) {
	t.Helper()
	require.NoError(t, store.Put(context.Background(), CommentsCollection, id, commentFields(&models.Comment{
		ID:        id,
		TaskID:    taskID,
		Author:    *author,
		Text:      text,
		CreatedAt: time.Now(),
	})))
}

func nextTasks(t *testing.T, ch <-chan []models.Task) []models.Task {
	t.Helper()
	select {
	case tasks := <-ch:
		return tasks
	case <-time.After(2 * time.Second):
		t.Fatal("no task delivery")
		return nil
	}
}

func taskTexts(tasks []models.Task) []string {
	out := make([]string, len(tasks))
	for i, task := range tasks {
		out[i] = task.Text
	}
	return out
}
