package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/adanyl0v/tasks-plus/internal/docstore"
	"github.com/adanyl0v/tasks-plus/internal/models"
)

type commentServiceImpl struct {
	logger zerolog.Logger
	store  docstore.Store
}

func NewCommentService(
	logger zerolog.Logger,
	store docstore.Store,
) CommentService {
	return &commentServiceImpl{
		logger: logger,
		store:  store,
	}
}

func (s *commentServiceImpl) ListComments(ctx context.Context, taskID string) ([]models.Comment, error) {
	query := docstore.NewQuery(CommentsCollection).Where(fieldTaskID, taskID)

	docs, err := s.store.Find(ctx, query)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to list comments")
		return nil, remoteError(OpRead, CommentsCollection, err)
	}

	comments := make([]models.Comment, 0, len(docs))
	for _, doc := range docs {
		comment, err := decodeComment(doc)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("comment_id", doc.ID).
				Msg("skipping malformed comment")
			continue
		}
		comments = append(comments, *comment)
	}

	s.logger.Debug().
		Str("task_id", taskID).
		Int("count", len(comments)).
		Msg("listed comments")
	return comments, nil
}

func (s *commentServiceImpl) CreateComment(ctx context.Context, comment *models.Comment) error {
	err := s.store.Put(ctx, CommentsCollection, comment.ID, commentFields(comment))
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("comment_id", comment.ID).
			Str("task_id", comment.TaskID).
			Msg("failed to create comment")
		return remoteError(OpWrite, CommentsCollection, err)
	}

	s.logger.Info().
		Str("comment_id", comment.ID).
		Str("task_id", comment.TaskID).
		Msg("created comment")
	return nil
}

func (s *commentServiceImpl) DeleteComment(ctx context.Context, commentID string) error {
	err := s.store.Delete(ctx, CommentsCollection, commentID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			s.logger.Debug().
				Str("comment_id", commentID).
				Msg("comment already deleted")
			return nil
		}

		s.logger.Error().
			Err(err).
			Str("comment_id", commentID).
			Msg("failed to delete comment")
		return remoteError(OpDelete, CommentsCollection, err)
	}

	s.logger.Info().
		Str("comment_id", commentID).
		Msg("deleted comment")
	return nil
}
