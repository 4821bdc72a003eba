package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/adanyl0v/tasks-plus/internal/models"
)

const commentWriteTimeout = 10 * time.Second

// CommentThread holds the comments of one task for the lifetime of one page
// view. The list is read once by Load and afterwards only patched locally.
//
// Append is optimistic: the write is started and the comment is added to the
// local list without waiting for it. If the write fails the entry stays and an
// error notification is queued, so the list may show a comment the store never
// got until the page is loaded again. Nothing is rolled back or retried.
type CommentThread struct {
	logger   zerolog.Logger
	comments CommentService

	mu       sync.Mutex
	taskID   string
	list     []models.Comment
	notices  []Notification
	pending  map[string]chan struct{}
	closed   bool
	inflight sync.WaitGroup
}

func NewCommentThread(
	logger zerolog.Logger,
	comments CommentService,
) *CommentThread {
	return &CommentThread{
		logger:   logger,
		comments: comments,
		pending:  make(map[string]chan struct{}),
	}
}

func (t *CommentThread) TaskID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.taskID
}

// Load reads the task's comments once. Comments posted elsewhere later are
// not seen until the next Load.
func (t *CommentThread) Load(ctx context.Context, taskID string) ([]models.Comment, error) {
	comments, err := t.comments.ListComments(ctx, taskID)
	if err != nil {
		t.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to load comments")
		t.notify(NotificationError, "Could not load comments.")
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.taskID = taskID
	t.list = comments
	t.logger.Debug().
		Str("task_id", taskID).
		Int("count", len(comments)).
		Msg("loaded comment thread")
	return cloneComments(t.list), nil
}

// Append posts a comment as identity. Empty text or a missing identity make
// it a silent no-op, reported as false.
func (t *CommentThread) Append(ctx context.Context, identity *models.Identity, taskID, text string) (*models.Comment, bool) {
	if strings.TrimSpace(text) == "" || identity == nil || identity.Email == "" {
		return nil, false
	}
	if bound := t.TaskID(); bound != "" && bound != taskID {
		t.logger.Warn().
			Str("task_id", taskID).
			Str("thread_task_id", bound).
			Msg("comment for another task ignored")
		return nil, false
	}

	commentUUID, err := uuid.NewV7()
	if err != nil {
		t.logger.Error().
			Err(err).
			Msg("failed to generate comment uuid")
		t.notify(NotificationError, "Could not add the comment.")
		return nil, false
	}

	comment := models.Comment{
		ID:        commentUUID.String(),
		TaskID:    taskID,
		Author:    *identity,
		Text:      text,
		CreatedAt: time.Now(),
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, false
	}
	done := make(chan struct{})
	t.pending[comment.ID] = done
	t.inflight.Add(1)
	t.list = append(t.list, comment)
	t.mu.Unlock()

	go t.write(context.WithoutCancel(ctx), comment, done)

	t.logger.Debug().
		Str("comment_id", comment.ID).
		Str("task_id", taskID).
		Msg("appended comment locally")
	return &comment, true
}

func (t *CommentThread) write(ctx context.Context, comment models.Comment, done chan struct{}) {
	defer t.inflight.Done()
	defer func() {
		t.mu.Lock()
		delete(t.pending, comment.ID)
		t.mu.Unlock()
		close(done)
	}()

	ctx, cancel := context.WithTimeout(ctx, commentWriteTimeout)
	defer cancel()

	err := t.comments.CreateComment(ctx, &comment)
	if err != nil {
		t.logger.Error().
			Err(err).
			Str("comment_id", comment.ID).
			Msg("optimistic comment was not stored")
		t.notify(NotificationError, "Could not add the comment.")
		return
	}
	t.notify(NotificationSuccess, "Comment added!")
}

// Remove deletes one of identity's own comments, first from the store and
// then from the local list. A comment whose Append write is still running is
// deleted only after that write finishes, so the delete cannot land first.
func (t *CommentThread) Remove(ctx context.Context, identity *models.Identity, commentID string) error {
	t.mu.Lock()
	var (
		target models.Comment
		found  bool
	)
	for _, c := range t.list {
		if c.ID == commentID {
			target, found = c, true
			break
		}
	}
	done := t.pending[commentID]
	t.mu.Unlock()

	if !found {
		return ErrCommentNotFound
	}
	if !identity.Is(target.Author.Email) {
		t.logger.Warn().
			Str("comment_id", commentID).
			Msg("refusing to remove a comment by another author")
		return ErrNotCommentAuthor
	}

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	err := t.comments.DeleteComment(ctx, commentID)
	if err != nil {
		t.notify(NotificationError, "Could not delete the comment.")
		return err
	}

	t.mu.Lock()
	kept := t.list[:0]
	for _, c := range t.list {
		if c.ID != commentID {
			kept = append(kept, c)
		}
	}
	t.list = kept
	t.mu.Unlock()

	t.notify(NotificationSuccess, "Comment deleted!")
	return nil
}

// Comments returns the local list as viewer sees it: CanDelete is set only
// on viewer's own comments.
func (t *CommentThread) Comments(viewer *models.Identity) []CommentView {
	t.mu.Lock()
	defer t.mu.Unlock()

	views := make([]CommentView, len(t.list))
	for i, c := range t.list {
		views[i] = CommentView{
			Comment:   c,
			CanDelete: viewer.Is(c.Author.Email),
		}
	}
	return views
}

// Notifications returns and clears the queued notifications.
func (t *CommentThread) Notifications() []Notification {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := t.notices
	t.notices = nil
	return out
}

// Wait blocks until every write started by Append has finished.
func (t *CommentThread) Wait() {
	t.inflight.Wait()
}

// Close stops the thread from taking new comments and waits for the writes
// already started. Append on a closed thread is a no-op.
func (t *CommentThread) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	t.inflight.Wait()
}

func (t *CommentThread) notify(kind NotificationKind, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.notices = append(t.notices, Notification{
		Kind:    kind,
		Message: message,
		At:      time.Now(),
	})
}

func cloneComments(in []models.Comment) []models.Comment {
	out := make([]models.Comment, len(in))
	copy(out, in)
	return out
}
