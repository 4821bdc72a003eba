package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adanyl0v/tasks-plus/internal/docstore"
	"github.com/adanyl0v/tasks-plus/internal/models"
	"github.com/adanyl0v/tasks-plus/internal/services"
)

// httptest requests come from 192.0.2.1 without a user agent.
const recorderFingerprint = `{"client_ip":"192.0.2.1","user_agent":""}`

var (
	alice = models.Identity{Email: "alice@example.com", Name: "Alice"}
	bob   = models.Identity{Email: "bob@example.com", Name: "Bob"}
)

type fakeAuth struct {
	services.AuthService
	tokens map[string]string
}

func (a *fakeAuth) ParseJWTToken(token string) (*jwt.RegisteredClaims, error) {
	sessionID, ok := a.tokens[token]
	if !ok {
		return nil, errors.New("invalid token")
	}
	return &jwt.RegisteredClaims{Subject: sessionID}, nil
}

type fakeSessions struct {
	sessions map[string]*models.Session
}

func (s *fakeSessions) GetSessionByID(_ context.Context, sessionID string) (*models.Session, error) {
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, services.ErrSessionNotFound
	}
	return session, nil
}

type testEnv struct {
	router   *gin.Engine
	store    *docstore.MemoryStore
	tasks    services.TaskService
	views    *services.ViewRegistry
	sessions *fakeSessions
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zerolog.Nop()
	store := docstore.NewMemoryStore(logger)
	tasks := services.NewTaskService(logger, store)
	comments := services.NewCommentService(logger, store)
	views := services.NewViewRegistry(logger, comments, time.Minute)

	auth := &fakeAuth{tokens: map[string]string{
		"alice-token": "s-alice",
		"bob-token":   "s-bob",
	}}
	sessions := &fakeSessions{sessions: map[string]*models.Session{
		"s-alice": {ID: "s-alice", UserID: "u-alice", Identity: alice, Fingerprint: recorderFingerprint},
		"s-bob":   {ID: "s-bob", UserID: "u-bob", Identity: bob, Fingerprint: recorderFingerprint},
	}}

	h := New(
		logger,
		auth,
		sessions,
		tasks,
		services.NewAccessGuard(logger, tasks),
		views,
		services.NewStatsService(logger, store, 2*time.Minute),
		"https://tasks.example.com/",
	)
	router := gin.New()
	RegisterRoutes(router, h)

	t.Cleanup(func() { _ = store.Close(context.Background()) })
	return &testEnv{
		router:   router,
		store:    store,
		tasks:    tasks,
		views:    views,
		sessions: sessions,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) createTask(t *testing.T, owner models.Identity, text string, isPublic bool) string {
	t.Helper()
	id, err := e.tasks.CreateTask(context.Background(), services.CreateTaskParams{
		Owner:    owner.Email,
		Text:     text,
		IsPublic: isPublic,
	})
	require.NoError(t, err)
	return id
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLanding_Counts(t *testing.T) {
	env := newTestEnv(t)
	taskID := env.createTask(t, alice, "one", true)
	env.createTask(t, bob, "two", false)
	require.NoError(t, services.NewCommentService(zerolog.Nop(), env.store).CreateComment(context.Background(), &models.Comment{
		ID:        "c1",
		TaskID:    taskID,
		Author:    bob,
		Text:      "hi",
		CreatedAt: time.Now(),
	}))

	w := env.do(t, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[landingResponse](t, w)
	assert.Equal(t, int64(2), resp.Tasks)
	assert.Equal(t, int64(1), resp.Comments)
}

func TestDashboard_RedirectsWithoutSession(t *testing.T) {
	env := newTestEnv(t)

	for _, token := range []string{"", "forged-token"} {
		w := env.do(t, http.MethodGet, "/dashboard", token, nil)
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/", w.Header().Get("Location"))
	}
}

func TestDashboard_RedirectsOnFingerprintMismatch(t *testing.T) {
	env := newTestEnv(t)
	env.sessions.sessions["s-alice"].Fingerprint = "another browser"

	w := env.do(t, http.MethodGet, "/dashboard", "alice-token", nil)
	assert.Equal(t, http.StatusFound, w.Code)
}

func TestDashboard_ListsOwnTasksNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	env.createTask(t, alice, "older", false)
	time.Sleep(2 * time.Millisecond)
	env.createTask(t, alice, "newer", true)
	env.createTask(t, bob, "bob's", true)

	w := env.do(t, http.MethodGet, "/dashboard", "alice-token", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[dashboardResponse](t, w)
	assert.Equal(t, alice.Email, resp.Identity.Email)
	require.Len(t, resp.Tasks, 2)
	assert.Equal(t, "newer", resp.Tasks[0].Text)
	assert.Equal(t, "older", resp.Tasks[1].Text)
}

func TestDashboard_AcceptsAccessTokenCookie(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: accessTokenCookie, Value: "alice-token"})
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTaskPage_DeniedRequestsRedirectHome(t *testing.T) {
	env := newTestEnv(t)
	private := env.createTask(t, alice, "secret", false)

	for _, path := range []string{"/task/" + private, "/task/xyz"} {
		// The owner gets no exception on the public page.
		w := env.do(t, http.MethodGet, path, "alice-token", nil)
		assert.Equal(t, http.StatusFound, w.Code, path)
		assert.Equal(t, "/", w.Header().Get("Location"), path)
	}
	assert.Zero(t, env.views.Len())
}

func TestTaskPage_PublicTaskWithComments(t *testing.T) {
	env := newTestEnv(t)
	taskID := env.createTask(t, alice, "hello world", true)

	// Bob opens the page, comments, and sees a delete control on his comment.
	w := env.do(t, http.MethodGet, "/task/"+taskID, "bob-token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[taskPageResponse](t, w)
	assert.Equal(t, "hello world", page.Task.Text)
	assert.Equal(t, alice.Email, page.Task.Owner)
	assert.NotEmpty(t, page.Task.CreatedAtDisplay)
	assert.Empty(t, page.Comments)

	w = env.do(t, http.MethodPost, "/api/v1/views/"+page.ViewID+"/comments", "bob-token", gin.H{"text": "nice"})
	require.Equal(t, http.StatusAccepted, w.Code)
	created := decode[createCommentResponse](t, w)
	assert.Equal(t, bob.Email, created.Comment.Author.Email)
	assert.True(t, created.Comment.CanDelete)

	view, err := env.views.Get(page.ViewID)
	require.NoError(t, err)
	view.Thread.Wait()

	// Alice opens a fresh view and sees the comment without a delete control.
	w = env.do(t, http.MethodGet, "/task/"+taskID, "alice-token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	alicePage := decode[taskPageResponse](t, w)
	require.Len(t, alicePage.Comments, 1)
	assert.Equal(t, "nice", alicePage.Comments[0].Text)
	assert.False(t, alicePage.Comments[0].CanDelete)

	commentPath := "/api/v1/views/" + alicePage.ViewID + "/comments/" + created.Comment.ID
	w = env.do(t, http.MethodDelete, commentPath, "alice-token", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	commentPath = "/api/v1/views/" + page.ViewID + "/comments/" + created.Comment.ID
	w = env.do(t, http.MethodDelete, commentPath, "bob-token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[viewResponse](t, w).Comments)

	n, err := env.store.Count(context.Background(), services.CommentsCollection)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestViews_AnonymousCommentIsIgnored(t *testing.T) {
	env := newTestEnv(t)
	taskID := env.createTask(t, alice, "hello", true)

	w := env.do(t, http.MethodGet, "/task/"+taskID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[taskPageResponse](t, w)

	w = env.do(t, http.MethodPost, "/api/v1/views/"+page.ViewID+"/comments", "", gin.H{"text": "drive-by"})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/views/"+page.ViewID+"/comments", "bob-token", gin.H{"text": "   "})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/views/"+page.ViewID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[viewResponse](t, w).Comments)
}

func TestViews_UnknownView(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/v1/views/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateTask(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/tasks", "", gin.H{"text": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/tasks", "alice-token", gin.H{"text": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/tasks", "alice-token", gin.H{"text": "write docs", "is_public": true})
	require.Equal(t, http.StatusCreated, w.Code)
	resp := decode[createTaskResponse](t, w)
	assert.NotEmpty(t, resp.ID)
	assert.Empty(t, resp.Input)
	assert.Equal(t, string(services.NotificationSuccess), resp.Notification.Kind)

	task, err := env.tasks.GetTask(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.Email, task.Owner)
	assert.True(t, task.IsPublic)
}

func TestDeleteTask(t *testing.T) {
	env := newTestEnv(t)
	taskID := env.createTask(t, alice, "mine", false)

	w := env.do(t, http.MethodDelete, "/api/v1/tasks/"+taskID, "bob-token", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodDelete, "/api/v1/tasks/"+taskID, "alice-token", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	_, err := env.tasks.GetTask(context.Background(), taskID)
	assert.ErrorIs(t, err, services.ErrTaskNotFound)

	w = env.do(t, http.MethodDelete, "/api/v1/tasks/"+taskID, "alice-token", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestShareTask(t *testing.T) {
	env := newTestEnv(t)
	public := env.createTask(t, alice, "share me", true)
	private := env.createTask(t, alice, "keep me", false)

	w := env.do(t, http.MethodGet, "/api/v1/tasks/"+public+"/share", "alice-token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[shareTaskResponse](t, w)
	assert.Equal(t, "https://tasks.example.com/task/"+public, resp.URL)
	assert.Equal(t, string(services.NotificationInfo), resp.Notification.Kind)

	w = env.do(t, http.MethodGet, "/api/v1/tasks/"+private+"/share", "alice-token", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/tasks/"+public+"/share", "bob-token", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/tasks/missing/share", "alice-token", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTaskPage_VisitorAndAuthorScenario(t *testing.T) {
	env := newTestEnv(t)
	abc := env.createTask(t, alice, "Private plan", false)
	xyz := env.createTask(t, alice, "Read chapter 3", true)

	w := env.do(t, http.MethodGet, "/task/"+abc, "", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	w = env.do(t, http.MethodGet, "/task/"+xyz, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	anonymous := decode[taskPageResponse](t, w)
	assert.Equal(t, "Read chapter 3", anonymous.Task.Text)
	assert.Empty(t, anonymous.Comments)

	// Alice comments from her own view.
	w = env.do(t, http.MethodGet, "/task/"+xyz, "alice-token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	alicePage := decode[taskPageResponse](t, w)

	w = env.do(t, http.MethodPost, "/api/v1/views/"+alicePage.ViewID+"/comments", "alice-token", gin.H{"text": "Looks good"})
	require.Equal(t, http.StatusAccepted, w.Code)
	view, err := env.views.Get(alicePage.ViewID)
	require.NoError(t, err)
	view.Thread.Wait()

	w = env.do(t, http.MethodGet, "/api/v1/views/"+alicePage.ViewID, "alice-token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	aliceView := decode[viewResponse](t, w)
	require.Len(t, aliceView.Comments, 1)
	assert.Equal(t, "Looks good", aliceView.Comments[0].Text)
	assert.Equal(t, alice.Email, aliceView.Comments[0].Author.Email)
	assert.True(t, aliceView.Comments[0].CanDelete)

	// Bob sees the comment without a delete control.
	w = env.do(t, http.MethodGet, "/task/"+xyz, "bob-token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	bobPage := decode[taskPageResponse](t, w)
	require.Len(t, bobPage.Comments, 1)
	assert.False(t, bobPage.Comments[0].CanDelete)

	commentID := aliceView.Comments[0].ID
	w = env.do(t, http.MethodDelete, "/api/v1/views/"+alicePage.ViewID+"/comments/"+commentID, "alice-token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[viewResponse](t, w).Comments)

	_, err = env.store.Get(context.Background(), services.CommentsCollection, commentID)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}
