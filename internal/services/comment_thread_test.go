package services

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adanyl0v/tasks-plus/internal/docstore"
	"github.com/adanyl0v/tasks-plus/internal/models"
)

func newThread(store *flakyStore) *CommentThread {
	return NewCommentThread(zerolog.Nop(), NewCommentService(zerolog.Nop(), store))
}

func commentTexts(views []CommentView) []string {
	out := make([]string, len(views))
	for i, v := range views {
		out[i] = v.Text
	}
	return out
}

func TestCommentThread_LoadOnlyTaskComments(t *testing.T) {
	store := newFlakyStore()
	seedComment(t, store, "c1", "abc", alice, "first")
	seedComment(t, store, "c2", "other", bob, "elsewhere")
	seedComment(t, store, "c3", "abc", bob, "second")

	thread := newThread(store)
	comments, err := thread.Load(context.Background(), "abc")
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "abc", thread.TaskID())
	for _, c := range comments {
		assert.Equal(t, "abc", c.TaskID)
	}
}

func TestCommentThread_LoadFailureNotifies(t *testing.T) {
	store := newFlakyStore()
	store.setFailReads(true)
	thread := newThread(store)

	_, err := thread.Load(context.Background(), "abc")
	assert.Error(t, err)

	notices := thread.Notifications()
	require.Len(t, notices, 1)
	assert.Equal(t, NotificationError, notices[0].Kind)
}

func TestCommentThread_AppendIsOptimistic(t *testing.T) {
	store := newFlakyStore()
	store.block = make(chan struct{})
	thread := newThread(store)
	_, err := thread.Load(context.Background(), "abc")
	require.NoError(t, err)

	comment, ok := thread.Append(context.Background(), alice, "abc", "nice task")
	require.True(t, ok)
	assert.Equal(t, alice.Email, comment.Author.Email)
	assert.Equal(t, "Alice", comment.Author.Name)

	// The write is still blocked, yet the comment is already listed.
	assert.Equal(t, []string{"nice task"}, commentTexts(thread.Comments(alice)))
	assert.Empty(t, thread.Notifications())

	close(store.block)
	thread.Wait()

	notices := thread.Notifications()
	require.Len(t, notices, 1)
	assert.Equal(t, NotificationSuccess, notices[0].Kind)

	doc, err := store.Get(context.Background(), CommentsCollection, comment.ID)
	require.NoError(t, err)
	stored, err := decodeComment(*doc)
	require.NoError(t, err)
	assert.Equal(t, "abc", stored.TaskID)
	assert.Equal(t, alice.Email, stored.Author.Email)
}

func TestCommentThread_AppendSurvivesCancelledRequest(t *testing.T) {
	store := newFlakyStore()
	thread := newThread(store)
	_, err := thread.Load(context.Background(), "abc")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	comment, ok := thread.Append(ctx, alice, "abc", "still stored")
	require.True(t, ok)
	cancel()
	thread.Wait()

	_, err = store.Get(context.Background(), CommentsCollection, comment.ID)
	assert.NoError(t, err)
}

func TestCommentThread_AppendFailureKeepsLocalEntry(t *testing.T) {
	store := newFlakyStore()
	thread := newThread(store)
	_, err := thread.Load(context.Background(), "abc")
	require.NoError(t, err)

	store.setFailWrites(true)
	_, ok := thread.Append(context.Background(), alice, "abc", "lost")
	require.True(t, ok)
	thread.Wait()

	assert.Equal(t, []string{"lost"}, commentTexts(thread.Comments(alice)))
	notices := thread.Notifications()
	require.Len(t, notices, 1)
	assert.Equal(t, NotificationError, notices[0].Kind)
	assert.Equal(t, 1, store.putCount())
}

func TestCommentThread_AppendNoOps(t *testing.T) {
	store := newFlakyStore()
	thread := newThread(store)
	_, err := thread.Load(context.Background(), "abc")
	require.NoError(t, err)

	cases := []struct {
		name     string
		identity *models.Identity
		taskID   string
		text     string
	}{
		{"empty text", alice, "abc", ""},
		{"blank text", alice, "abc", "   "},
		{"no identity", nil, "abc", "hi"},
		{"identity without email", &models.Identity{Name: "ghost"}, "abc", "hi"},
		{"other task", alice, "xyz", "hi"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := thread.Append(context.Background(), tc.identity, tc.taskID, tc.text)
			assert.False(t, ok)
		})
	}

	thread.Wait()
	assert.Empty(t, thread.Comments(alice))
	assert.Empty(t, thread.Notifications())
	assert.Zero(t, store.putCount())
}

func TestCommentThread_RemoveOwnComment(t *testing.T) {
	store := newFlakyStore()
	seedComment(t, store, "c1", "abc", alice, "mine")
	seedComment(t, store, "c2", "abc", bob, "theirs")
	thread := newThread(store)
	_, err := thread.Load(context.Background(), "abc")
	require.NoError(t, err)

	require.NoError(t, thread.Remove(context.Background(), alice, "c1"))
	assert.Equal(t, []string{"theirs"}, commentTexts(thread.Comments(alice)))

	_, err = store.Get(context.Background(), CommentsCollection, "c1")
	assert.Error(t, err)

	notices := thread.Notifications()
	require.Len(t, notices, 1)
	assert.Equal(t, NotificationSuccess, notices[0].Kind)
}

func TestCommentThread_RemoveWaitsForPendingWrite(t *testing.T) {
	store := newFlakyStore()
	store.block = make(chan struct{})
	thread := newThread(store)
	_, err := thread.Load(context.Background(), "abc")
	require.NoError(t, err)

	comment, ok := thread.Append(context.Background(), alice, "abc", "regret")
	require.True(t, ok)

	removed := make(chan error, 1)
	go func() {
		removed <- thread.Remove(context.Background(), alice, comment.ID)
	}()

	select {
	case err := <-removed:
		t.Fatalf("Remove returned before the write finished: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(store.block)
	select {
	case err := <-removed:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Remove did not return")
	}
	thread.Wait()

	assert.Empty(t, thread.Comments(alice))
	_, err = store.Get(context.Background(), CommentsCollection, comment.ID)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestCommentThread_RemovePendingGivesUpWithContext(t *testing.T) {
	store := newFlakyStore()
	store.block = make(chan struct{})
	thread := newThread(store)
	_, err := thread.Load(context.Background(), "abc")
	require.NoError(t, err)

	comment, ok := thread.Append(context.Background(), alice, "abc", "kept")
	require.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = thread.Remove(ctx, alice, comment.ID)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"kept"}, commentTexts(thread.Comments(alice)))

	close(store.block)
	thread.Wait()

	_, err = store.Get(context.Background(), CommentsCollection, comment.ID)
	assert.NoError(t, err)
}

func TestCommentThread_ClosedThreadRefusesAppend(t *testing.T) {
	store := newFlakyStore()
	thread := newThread(store)
	_, err := thread.Load(context.Background(), "abc")
	require.NoError(t, err)

	thread.Close()

	_, ok := thread.Append(context.Background(), alice, "abc", "too late")
	assert.False(t, ok)
	assert.Empty(t, thread.Comments(alice))
	assert.Zero(t, store.putCount())
}

func TestCommentThread_RemoveRefusesOtherAuthors(t *testing.T) {
	store := newFlakyStore()
	seedComment(t, store, "c2", "abc", bob, "theirs")
	thread := newThread(store)
	_, err := thread.Load(context.Background(), "abc")
	require.NoError(t, err)

	assert.ErrorIs(t, thread.Remove(context.Background(), alice, "c2"), ErrNotCommentAuthor)
	assert.ErrorIs(t, thread.Remove(context.Background(), nil, "c2"), ErrNotCommentAuthor)
	assert.ErrorIs(t, thread.Remove(context.Background(), alice, "missing"), ErrCommentNotFound)
	assert.Len(t, thread.Comments(bob), 1)
}

func TestCommentThread_RemoveFailureKeepsEntry(t *testing.T) {
	store := newFlakyStore()
	seedComment(t, store, "c1", "abc", alice, "mine")
	thread := newThread(store)
	_, err := thread.Load(context.Background(), "abc")
	require.NoError(t, err)

	store.setFailWrites(true)
	err = thread.Remove(context.Background(), alice, "c1")
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)

	assert.Len(t, thread.Comments(alice), 1)
	notices := thread.Notifications()
	require.Len(t, notices, 1)
	assert.Equal(t, NotificationError, notices[0].Kind)
}

func TestCommentThread_DeleteAffordanceOnlyForAuthor(t *testing.T) {
	store := newFlakyStore()
	seedComment(t, store, "c1", "abc", alice, "mine")
	seedComment(t, store, "c2", "abc", bob, "theirs")
	thread := newThread(store)
	_, err := thread.Load(context.Background(), "abc")
	require.NoError(t, err)

	canDelete := func(viewer *models.Identity) map[string]bool {
		out := make(map[string]bool)
		for _, v := range thread.Comments(viewer) {
			out[v.ID] = v.CanDelete
		}
		return out
	}
	assert.Equal(t, map[string]bool{"c1": true, "c2": false}, canDelete(alice))
	assert.Equal(t, map[string]bool{"c1": false, "c2": true}, canDelete(bob))
	assert.Equal(t, map[string]bool{"c1": false, "c2": false}, canDelete(nil))
}

func TestCommentThread_ReloadSeesOtherViewsComments(t *testing.T) {
	store := newFlakyStore()
	first := newThread(store)
	second := newThread(store)
	ctx := context.Background()
	_, err := first.Load(ctx, "abc")
	require.NoError(t, err)
	_, err = second.Load(ctx, "abc")
	require.NoError(t, err)

	_, ok := first.Append(ctx, alice, "abc", "from first view")
	require.True(t, ok)
	first.Wait()

	assert.Empty(t, second.Comments(bob))

	reloaded, err := second.Load(ctx, "abc")
	require.NoError(t, err)
	require.Len(t, reloaded, 1)
	assert.Equal(t, "from first view", reloaded[0].Text)
	assert.WithinDuration(t, time.Now(), reloaded[0].CreatedAt, time.Minute)
}

func TestCommentThread_AppendGoesLast(t *testing.T) {
	store := newFlakyStore()
	seedComment(t, store, "c1", "abc", alice, "one")
	seedComment(t, store, "c2", "abc", bob, "two")
	thread := newThread(store)
	before, err := thread.Load(context.Background(), "abc")
	require.NoError(t, err)

	comment, ok := thread.Append(context.Background(), bob, "abc", "three")
	require.True(t, ok)
	assert.Equal(t, "abc", comment.TaskID)

	after := thread.Comments(bob)
	require.Len(t, after, len(before)+1)
	assert.Equal(t, comment.ID, after[len(after)-1].ID)
	thread.Wait()
}
