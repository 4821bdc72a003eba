package services

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adanyl0v/tasks-plus/internal/docstore"
)

func TestCommentService_ListSkipsMalformed(t *testing.T) {
	store := newFlakyStore()
	comments := NewCommentService(zerolog.Nop(), store)
	seedComment(t, store, "c1", "abc", alice, "ok")
	require.NoError(t, store.Put(context.Background(), CommentsCollection, "broken", docstore.Fields{
		fieldTaskID: "abc",
	}))

	list, err := comments.ListComments(context.Background(), "abc")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "c1", list[0].ID)
}

func TestCommentService_DeleteMissingSucceeds(t *testing.T) {
	comments := NewCommentService(zerolog.Nop(), newFlakyStore())
	assert.NoError(t, comments.DeleteComment(context.Background(), "missing"))
}

func TestCommentService_ListRemoteFailure(t *testing.T) {
	store := newFlakyStore()
	store.setFailReads(true)
	comments := NewCommentService(zerolog.Nop(), store)

	_, err := comments.ListComments(context.Background(), "abc")
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, OpRead, remote.Op)
	assert.Equal(t, CommentsCollection, remote.Collection)
}
