package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/adanyl0v/tasks-plus/internal/docstore"
	"github.com/adanyl0v/tasks-plus/internal/models"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserAlreadyExists    = errors.New("user already exists")
	ErrUserPasswordMismatch = errors.New("user password mismatch")
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionExpired       = errors.New("session expired")

	ErrTaskNotFound     = errors.New("task not found")
	ErrTaskNotOwned     = errors.New("task belongs to another user")
	ErrTaskNotPublic    = errors.New("task is not public")
	ErrCommentNotFound  = errors.New("comment not found")
	ErrNotCommentAuthor = errors.New("comment belongs to another author")
	ErrViewNotFound     = errors.New("page view not found")
)

// ValidationError rejects user input before anything is sent to the store.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

type Op string

const (
	OpRead   Op = "read"
	OpWrite  Op = "write"
	OpDelete Op = "delete"
)

// RemoteError is a failed document store call. Nothing retries it.
type RemoteError struct {
	Op         Op
	Collection string
	Err        error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s on %s failed: %v", e.Op, e.Collection, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

func remoteError(op Op, collection string, err error) error {
	return &RemoteError{Op: op, Collection: collection, Err: err}
}

type AuthService interface {
	// Login authenticates the user by email and password.
	//
	// It deletes all sessions with the same user ID and creates
	// a new session and generates a new JWT token pair.
	//
	// It returns ErrUserNotFound if the user with the given
	// email doesn't exist or ErrUserPasswordMismatch if the
	// given password doesn't match the user's password.
	Login(ctx context.Context, params LoginParams) (*LoginResult, error)

	// Refresh rotates the refresh token of the session it belongs to.
	//
	// It returns ErrSessionNotFound if no session matches the token and
	// fingerprint or ErrSessionExpired if the session is expired.
	Refresh(ctx context.Context, params RefreshParams) (*LoginResult, error)

	// Register creates a user with a display name and opens a session
	// for it the same way Login does.
	//
	// It returns ErrUserAlreadyExists if the email is taken.
	Register(ctx context.Context, params RegisterParams) (*LoginResult, error)

	// Logout invalidates all sessions with the given user ID.
	Logout(ctx context.Context, userID string) error

	// ParseJWTToken parses the given JWT token and returns the registered
	// claims or jwt.ErrTokenExpired if the token is expired.
	ParseJWTToken(token string) (*jwt.RegisteredClaims, error)
}

type SessionService interface {
	// GetSessionByID returns the session together with the identity of
	// the user it belongs to.
	GetSessionByID(ctx context.Context, sessionID string) (*models.Session, error)
}

// TaskService mirrors a user's tasks from the document store.
type TaskService interface {
	// Subscribe delivers owner's tasks, newest first, every time the
	// task collection changes. Every delivery is the complete list.
	Subscribe(ctx context.Context, owner string, fn func([]models.Task)) (docstore.Subscription, error)

	// CreateTask stores a new task and returns its id once the store
	// has acknowledged the write.
	CreateTask(ctx context.Context, params CreateTaskParams) (string, error)

	// DeleteTask removes a task. Deleting a missing task succeeds.
	DeleteTask(ctx context.Context, taskID string) error

	GetTask(ctx context.Context, taskID string) (*models.Task, error)
}

// AccessGuard decides who may look at what.
type AccessGuard interface {
	// ResolveForDirectAccess allows a task only if it exists and is
	// public. Who asks does not matter.
	ResolveForDirectAccess(ctx context.Context, taskID string) (*Decision, error)

	// ResolveForDashboardAccess allows any signed-in identity.
	ResolveForDashboardAccess(identity *models.Identity) *Decision
}

// CommentService is the remote side of comment threads.
type CommentService interface {
	// ListComments returns a task's comments in the order the store
	// returns them.
	ListComments(ctx context.Context, taskID string) ([]models.Comment, error)

	CreateComment(ctx context.Context, comment *models.Comment) error

	// DeleteComment removes a comment. Deleting a missing comment succeeds.
	DeleteComment(ctx context.Context, commentID string) error
}

type StatsService interface {
	// Counts returns the number of tasks and comments, recounted at most
	// once per revalidation interval.
	Counts(ctx context.Context) (*Counts, error)
}

type LoginParams struct {
	Email       string
	Password    string
	Fingerprint string
}

type RegisterParams struct {
	LoginParams
	Name string
}

type LoginResult struct {
	UserID                string
	SessionID             string
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
}

type RefreshParams struct {
	RefreshToken string
	Fingerprint  string
}

type CreateTaskParams struct {
	Owner    string
	Text     string
	IsPublic bool
}

// Decision is the outcome of an access check. A denied request is sent
// to Redirect instead of failing.
type Decision struct {
	Allowed  bool
	Redirect string
	Task     *TaskView
}

type TaskView struct {
	TaskID    string
	Owner     string
	Text      string
	IsPublic  bool
	CreatedAt time.Time
}

type Counts struct {
	Tasks         int64
	Comments      int64
	RevalidatedAt time.Time
}

type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationInfo    NotificationKind = "info"
	NotificationError   NotificationKind = "error"
)

// Notification is a transient, non-blocking message for the person
// looking at a page.
type Notification struct {
	Kind    NotificationKind
	Message string
	At      time.Time
}

// CommentView is a comment plus the controls its viewer gets.
type CommentView struct {
	models.Comment
	CanDelete bool
}
