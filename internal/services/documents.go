package services

import (
	"fmt"
	"strings"

	"github.com/adanyl0v/tasks-plus/internal/docstore"
	"github.com/adanyl0v/tasks-plus/internal/models"
)

const (
	TasksCollection    = "tasks"
	CommentsCollection = "comments"
)

const (
	fieldText           = "text"
	fieldCreatedAt      = "createdAt"
	fieldOwner          = "owner"
	fieldIsPublic       = "isPublic"
	fieldTaskID         = "taskId"
	fieldAuthorIdentity = "authorIdentity"
	fieldAuthorName     = "authorName"
)

func taskFields(task *models.Task) docstore.Fields {
	return docstore.Fields{
		fieldText:      task.Text,
		fieldCreatedAt: task.CreatedAt,
		fieldOwner:     task.Owner,
		fieldIsPublic:  task.IsPublic,
	}
}

// decodeTask turns a stored document into a Task. Documents missing any
// field are rejected instead of producing zero values.
func decodeTask(doc docstore.Document) (*models.Task, error) {
	var missing []string

	text, ok := doc.Fields.String(fieldText)
	if !ok || text == "" {
		missing = append(missing, fieldText)
	}
	owner, ok := doc.Fields.String(fieldOwner)
	if !ok || owner == "" {
		missing = append(missing, fieldOwner)
	}
	isPublic, ok := doc.Fields.Bool(fieldIsPublic)
	if !ok {
		missing = append(missing, fieldIsPublic)
	}
	createdAt, ok := doc.Fields.Time(fieldCreatedAt)
	if !ok {
		missing = append(missing, fieldCreatedAt)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: task %s lacks %s",
			docstore.ErrMalformedDocument, doc.ID, strings.Join(missing, ", "))
	}
	return &models.Task{
		ID:        doc.ID,
		Owner:     owner,
		Text:      text,
		IsPublic:  isPublic,
		CreatedAt: createdAt,
	}, nil
}

func commentFields(comment *models.Comment) docstore.Fields {
	return docstore.Fields{
		fieldText:           comment.Text,
		fieldCreatedAt:      comment.CreatedAt,
		fieldAuthorIdentity: comment.Author.Email,
		fieldAuthorName:     comment.Author.Name,
		fieldTaskID:         comment.TaskID,
	}
}

func decodeComment(doc docstore.Document) (*models.Comment, error) {
	var missing []string

	text, ok := doc.Fields.String(fieldText)
	if !ok || text == "" {
		missing = append(missing, fieldText)
	}
	taskID, ok := doc.Fields.String(fieldTaskID)
	if !ok || taskID == "" {
		missing = append(missing, fieldTaskID)
	}
	email, ok := doc.Fields.String(fieldAuthorIdentity)
	if !ok || email == "" {
		missing = append(missing, fieldAuthorIdentity)
	}
	// Older comments may lack a display name; the identity is what counts.
	name, _ := doc.Fields.String(fieldAuthorName)
	createdAt, ok := doc.Fields.Time(fieldCreatedAt)
	if !ok {
		missing = append(missing, fieldCreatedAt)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: comment %s lacks %s",
			docstore.ErrMalformedDocument, doc.ID, strings.Join(missing, ", "))
	}
	return &models.Comment{
		ID:     doc.ID,
		TaskID: taskID,
		Author: models.Identity{
			Email: email,
			Name:  name,
		},
		Text:      text,
		CreatedAt: createdAt,
	}, nil
}
