package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"fraudechat/internal/auth"
	"fraudechat/internal/config"
	"fraudechat/internal/models"
	"fraudechat/internal/persona"
	"fraudechat/internal/service/ai"
	"fraudechat/internal/service/assistant"
	"fraudechat/internal/service/chat"
	"fraudechat/internal/storage"
)

type mockProvider struct {
	mu       sync.Mutex
	calls    [][]ai.Turn
	replyErr error
	titleErr error
	title    string
}

func (m *mockProvider) Complete(_ context.Context, turns []ai.Turn) (*ai.Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, append([]ai.Turn(nil), turns...))
	if m.replyErr != nil {
		return nil, m.replyErr
	}
	last := turns[len(turns)-1]
	return &ai.Completion{Text: fmt.Sprintf("Echo of %s.", last.Content)}, nil
}

func (m *mockProvider) CompleteSimple(context.Context, string) (string, error) {
	if m.titleErr != nil {
		return "", m.titleErr
	}
	return m.title, nil
}

type testServer struct {
	router   *gin.Engine
	svc      *assistant.Service
	provider *mockProvider
}

func newTestServer(t *testing.T, opts RouterOptions) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: ":memory:"},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	provider := &mockProvider{titleErr: errors.New("503 unavailable")}
	tools, err := ai.NewToolbox(context.Background(), ai.NewMathTool())
	if err != nil {
		t.Fatalf("toolbox: %v", err)
	}
	svc := assistant.NewService(db, nil)
	authSvc := auth.NewService("test-secret", nil, time.Hour, nil)
	orchestrator := chat.NewOrchestrator(provider, tools, persona.NewRegistry(), nil, chat.Options{Pick: func(int) int { return 0 }})
	titles := assistant.NewTitleGenerator(provider, time.Second, nil)
	handler := NewHandler(svc, authSvc, orchestrator, titles, db, nil)
	return &testServer{router: NewRouter(handler, opts), svc: svc, provider: provider}
}

func TestChatEndToEndFlow(t *testing.T) {
	srv := newTestServer(t, RouterOptions{})
	authHeader := registerAndLogin(t, srv.router, "seeker@example.com")

	resp := doJSONRequest(t, srv.router, http.MethodPost, "/chat/message", map[string]any{"content": "Hello"}, authHeader)
	assertStatus(t, resp, http.StatusCreated)
	var first struct {
		Reply        string            `json:"chatbot_reply"`
		Mode         string            `json:"mode"`
		SessionID    int64             `json:"session_id"`
		SessionTitle string            `json:"session_title"`
		Messages     []*models.Message `json:"messages"`
	}
	decodeJSON(t, resp.Body.Bytes(), &first)
	if first.SessionID <= 0 || first.Reply == "" || first.Mode != "fraude" {
		t.Fatalf("unexpected reply body %+v", first)
	}
	if first.SessionTitle == models.DefaultSessionTitle || first.SessionTitle != "Hello" {
		t.Fatalf("expected heuristic title, got %q", first.SessionTitle)
	}

	resp = doJSONRequest(t, srv.router, http.MethodGet, fmt.Sprintf("/chat/message?session_id=%d", first.SessionID), nil, authHeader)
	assertStatus(t, resp, http.StatusOK)
	var history struct {
		Messages []*models.Message `json:"messages"`
		Total    int               `json:"total"`
	}
	decodeJSON(t, resp.Body.Bytes(), &history)
	if len(history.Messages) != 2 || history.Total != 2 {
		t.Fatalf("expected 2 messages, got %d (total %d)", len(history.Messages), history.Total)
	}
	if history.Messages[0].Role != models.RoleUser || history.Messages[0].Content != "Hello" {
		t.Fatalf("first message should be the user turn, got %+v", history.Messages[0])
	}
	if history.Messages[1].Role != models.RoleAssistant || history.Messages[1].Content != first.Reply {
		t.Fatalf("second message should be the reply, got %+v", history.Messages[1])
	}
}

func TestFirstMessageMatchingDefaultTitle(t *testing.T) {
	srv := newTestServer(t, RouterOptions{})
	authHeader := registerAndLogin(t, srv.router, "newchat@example.com")

	// the heuristic title equals the stored default, so the update changes nothing
	resp := doJSONRequest(t, srv.router, http.MethodPost, "/chat/message", map[string]any{"content": "new chat"}, authHeader)
	assertStatus(t, resp, http.StatusCreated)
	var body struct {
		SessionID    int64  `json:"session_id"`
		SessionTitle string `json:"session_title"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body.SessionTitle != models.DefaultSessionTitle {
		t.Fatalf("expected %q, got %q", models.DefaultSessionTitle, body.SessionTitle)
	}

	path := fmt.Sprintf("/chat/sessions/%d", body.SessionID)
	for i := 0; i < 2; i++ {
		resp = doJSONRequest(t, srv.router, http.MethodDelete, path, nil, authHeader)
		assertStatus(t, resp, http.StatusOK)
	}
}

func TestSecondTurnCarriesFirstTurn(t *testing.T) {
	srv := newTestServer(t, RouterOptions{})
	authHeader := registerAndLogin(t, srv.router, "two@example.com")

	resp := doJSONRequest(t, srv.router, http.MethodPost, "/chat/message", map[string]any{"content": "Describe the tide"}, authHeader)
	assertStatus(t, resp, http.StatusCreated)
	var first struct {
		Reply     string `json:"chatbot_reply"`
		SessionID int64  `json:"session_id"`
		Title     string `json:"session_title"`
	}
	decodeJSON(t, resp.Body.Bytes(), &first)

	resp = doJSONRequest(t, srv.router, http.MethodPost, "/chat/message",
		map[string]any{"content": "And the moon?", "session_id": first.SessionID}, authHeader)
	assertStatus(t, resp, http.StatusCreated)
	var second struct {
		Title string `json:"session_title"`
	}
	decodeJSON(t, resp.Body.Bytes(), &second)
	if second.Title != first.Title {
		t.Fatalf("title must only be generated on the first turn: %q vs %q", first.Title, second.Title)
	}

	if len(srv.provider.calls) != 2 {
		t.Fatalf("expected 2 provider calls, got %d", len(srv.provider.calls))
	}
	turns := srv.provider.calls[1]
	// instructions, acknowledgement, first user, first reply, newest user
	if len(turns) != 5 {
		t.Fatalf("expected 5 turns, got %d", len(turns))
	}
	if turns[2].Role != ai.RoleUser || turns[2].Content != "Describe the tide" {
		t.Fatalf("unexpected first user turn %+v", turns[2])
	}
	if turns[3].Role != ai.RoleAssistant || turns[3].Content != first.Reply {
		t.Fatalf("unexpected first reply turn %+v", turns[3])
	}
	if turns[4].Role != ai.RoleUser || turns[4].Content != "And the moon?" {
		t.Fatalf("unexpected newest turn %+v", turns[4])
	}
}

func TestProviderFailureStillCreatesReply(t *testing.T) {
	srv := newTestServer(t, RouterOptions{})
	srv.provider.replyErr = errors.New("googleapi: Error 429: quota exceeded")
	authHeader := registerAndLogin(t, srv.router, "quota@example.com")

	resp := doJSONRequest(t, srv.router, http.MethodPost, "/chat/message", map[string]any{"content": "Tell me a secret", "mode": "eren"}, authHeader)
	assertStatus(t, resp, http.StatusCreated)
	var body struct {
		Reply string `json:"chatbot_reply"`
		Mode  string `json:"mode"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body.Reply != persona.DailyQuotaMessage || body.Mode != "eren" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestIdentityQuestionSkipsProvider(t *testing.T) {
	srv := newTestServer(t, RouterOptions{})
	authHeader := registerAndLogin(t, srv.router, "who@example.com")
	resp := doJSONRequest(t, srv.router, http.MethodPost, "/chat/message", map[string]any{"content": "Sen kimsin?", "mode": "LUCIFER"}, authHeader)
	assertStatus(t, resp, http.StatusCreated)
	var body struct {
		Reply string `json:"chatbot_reply"`
		Mode  string `json:"mode"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body.Mode != "lucifer" || !strings.Contains(body.Reply, "Lucifer") {
		t.Fatalf("unexpected identity reply %+v", body)
	}
	if len(srv.provider.calls) != 0 {
		t.Fatalf("identity questions must not reach the provider")
	}
}

func TestSoftDeleteSession(t *testing.T) {
	srv := newTestServer(t, RouterOptions{})
	authHeader := registerAndLogin(t, srv.router, "del@example.com")

	resp := doJSONRequest(t, srv.router, http.MethodPost, "/chat/sessions", map[string]any{"title": "Doomed"}, authHeader)
	assertStatus(t, resp, http.StatusCreated)
	var created struct {
		SessionID int64 `json:"session_id"`
	}
	decodeJSON(t, resp.Body.Bytes(), &created)

	resp = doJSONRequest(t, srv.router, http.MethodPost, "/chat/message",
		map[string]any{"content": "Remember this", "session_id": created.SessionID}, authHeader)
	assertStatus(t, resp, http.StatusCreated)

	resp = doJSONRequest(t, srv.router, http.MethodDelete, fmt.Sprintf("/chat/sessions/%d", created.SessionID), nil, authHeader)
	assertStatus(t, resp, http.StatusOK)

	resp = doJSONRequest(t, srv.router, http.MethodGet, "/chat/sessions", nil, authHeader)
	assertStatus(t, resp, http.StatusOK)
	var list struct {
		Sessions []*models.Session `json:"sessions"`
	}
	decodeJSON(t, resp.Body.Bytes(), &list)
	for _, s := range list.Sessions {
		if s.ID == created.SessionID {
			t.Fatalf("deleted session still listed")
		}
	}

	resp = doJSONRequest(t, srv.router, http.MethodGet, fmt.Sprintf("/chat/message?session_id=%d", created.SessionID), nil, authHeader)
	assertStatus(t, resp, http.StatusOK)
	var history struct {
		Messages []*models.Message `json:"messages"`
	}
	decodeJSON(t, resp.Body.Bytes(), &history)
	if len(history.Messages) != 2 {
		t.Fatalf("messages of a deleted session must stay readable, got %d", len(history.Messages))
	}
	session, err := srv.svc.GetSession(context.Background(), created.SessionID)
	if err != nil || session.IsActive {
		t.Fatalf("expected inactive session row, got %+v %v", session, err)
	}
}

func TestSessionOwnership(t *testing.T) {
	srv := newTestServer(t, RouterOptions{})
	owner := registerAndLogin(t, srv.router, "owner@example.com")
	intruder := registerAndLogin(t, srv.router, "intruder@example.com")

	resp := doJSONRequest(t, srv.router, http.MethodPost, "/chat/sessions", nil, owner)
	assertStatus(t, resp, http.StatusCreated)
	var created struct {
		SessionID int64  `json:"session_id"`
		Title     string `json:"title"`
	}
	decodeJSON(t, resp.Body.Bytes(), &created)
	if created.Title != models.DefaultSessionTitle {
		t.Fatalf("expected default title, got %q", created.Title)
	}

	path := fmt.Sprintf("/chat/message?session_id=%d", created.SessionID)
	assertStatus(t, doJSONRequest(t, srv.router, http.MethodGet, path, nil, intruder), http.StatusForbidden)
	assertStatus(t, doJSONRequest(t, srv.router, http.MethodDelete, fmt.Sprintf("/chat/sessions/%d", created.SessionID), nil, intruder), http.StatusForbidden)
	assertStatus(t, doJSONRequest(t, srv.router, http.MethodPost, "/chat/message",
		map[string]any{"content": "hi", "session_id": created.SessionID}, intruder), http.StatusForbidden)
	assertStatus(t, doJSONRequest(t, srv.router, http.MethodDelete, "/chat/sessions/9999", nil, owner), http.StatusNotFound)
}

func TestRequestValidation(t *testing.T) {
	srv := newTestServer(t, RouterOptions{})

	cases := []struct {
		body   map[string]any
		status int
	}{
		{map[string]any{"email": "a@example.com", "username": "a", "password": "x"}, http.StatusBadRequest},
		{map[string]any{"email": "a@example.com", "username": "a", "password": "x", "confirm_password": "y"}, http.StatusBadRequest},
		{map[string]any{"email": "a@example.com", "username": "a", "password": "x", "confirm_password": "x"}, http.StatusCreated},
		{map[string]any{"email": "A@example.com", "username": "b", "password": "x", "confirm_password": "x"}, http.StatusConflict},
	}
	for i, tc := range cases {
		resp := doJSONRequest(t, srv.router, http.MethodPost, "/register", tc.body, nil)
		if resp.Code != tc.status {
			t.Fatalf("case %d: want %d got %d (%s)", i, tc.status, resp.Code, resp.Body.String())
		}
	}

	resp := doJSONRequest(t, srv.router, http.MethodPost, "/login", map[string]any{"email": "a@example.com", "password": "wrong"}, nil)
	assertStatus(t, resp, http.StatusUnauthorized)

	assertStatus(t, doJSONRequest(t, srv.router, http.MethodPost, "/chat/message", map[string]any{"content": "hi"}, nil), http.StatusUnauthorized)
	expired := map[string]string{"Authorization": "Bearer not-a-token"}
	assertStatus(t, doJSONRequest(t, srv.router, http.MethodGet, "/chat/sessions", nil, expired), http.StatusUnauthorized)

	authHeader := registerAndLogin(t, srv.router, "valid@example.com")
	assertStatus(t, doJSONRequest(t, srv.router, http.MethodPost, "/chat/message", map[string]any{"content": "   "}, authHeader), http.StatusBadRequest)
	if len(srv.provider.calls) != 0 {
		t.Fatalf("invalid input must not reach the provider")
	}
}

func TestAdminRoutes(t *testing.T) {
	srv := newTestServer(t, RouterOptions{})
	if err := srv.svc.EnsureAdmin(context.Background(), "root", "root@example.com", "rootpw"); err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	user := registerAndLogin(t, srv.router, "plain@example.com")
	for i := 0; i < 3; i++ {
		assertStatus(t, doJSONRequest(t, srv.router, http.MethodPost, "/chat/sessions", nil, user), http.StatusCreated)
	}

	assertStatus(t, doJSONRequest(t, srv.router, http.MethodGet, "/admin/users", nil, user), http.StatusForbidden)
	assertStatus(t, doJSONRequest(t, srv.router, http.MethodGet, "/admin/sessions", nil, user), http.StatusForbidden)

	admin := login(t, srv.router, "root@example.com", "rootpw")
	resp := doJSONRequest(t, srv.router, http.MethodGet, "/admin/sessions?page=2&limit=2", nil, admin)
	assertStatus(t, resp, http.StatusOK)
	var sessions struct {
		Items      []*models.Session `json:"items"`
		Page       int               `json:"page"`
		Total      int               `json:"total"`
		TotalPages int               `json:"total_pages"`
	}
	decodeJSON(t, resp.Body.Bytes(), &sessions)
	if sessions.Total != 3 || sessions.TotalPages != 2 || sessions.Page != 2 || len(sessions.Items) != 1 {
		t.Fatalf("unexpected admin sessions page %+v", sessions)
	}
	if sessions.Items[0].Username != "plain" {
		t.Fatalf("expected owner username, got %q", sessions.Items[0].Username)
	}

	resp = doJSONRequest(t, srv.router, http.MethodGet, "/admin/users", nil, admin)
	assertStatus(t, resp, http.StatusOK)
	var users struct {
		Items []*models.User `json:"items"`
		Total int            `json:"total"`
	}
	decodeJSON(t, resp.Body.Bytes(), &users)
	if users.Total != 2 || len(users.Items) != 2 {
		t.Fatalf("unexpected admin users page %+v", users)
	}
	if strings.Contains(resp.Body.String(), "password_hash") {
		t.Fatalf("password hashes must not be exposed")
	}
	assertStatus(t, doJSONRequest(t, srv.router, http.MethodGet, "/admin/users?page=abc", nil, admin), http.StatusBadRequest)

	// admins see every session in the chat listing
	resp = doJSONRequest(t, srv.router, http.MethodGet, "/chat/sessions", nil, admin)
	assertStatus(t, resp, http.StatusOK)
	var list struct {
		Sessions []*models.Session `json:"sessions"`
	}
	decodeJSON(t, resp.Body.Bytes(), &list)
	if len(list.Sessions) != 3 {
		t.Fatalf("admin should see all sessions, got %d", len(list.Sessions))
	}
}

func TestPublicRoutesAndMiddleware(t *testing.T) {
	srv := newTestServer(t, RouterOptions{RateLimitRequests: 2, RateLimitWindow: time.Minute})

	resp := doJSONRequest(t, srv.router, http.MethodGet, "/health", nil, map[string]string{CorrelationHeader: "abc-123"})
	assertStatus(t, resp, http.StatusOK)
	if got := resp.Header().Get(CorrelationHeader); got != "abc-123" {
		t.Fatalf("correlation id not echoed, got %q", got)
	}
	resp = doJSONRequest(t, srv.router, http.MethodGet, "/health", nil, nil)
	if resp.Header().Get(CorrelationHeader) == "" {
		t.Fatalf("expected generated correlation id")
	}

	resp = doJSONRequest(t, srv.router, http.MethodGet, "/modes", nil, nil)
	assertStatus(t, resp, http.StatusOK)
	var modes struct {
		Modes   []map[string]string `json:"modes"`
		Default string              `json:"default"`
	}
	decodeJSON(t, resp.Body.Bytes(), &modes)
	if len(modes.Modes) != 3 || modes.Default != "fraude" {
		t.Fatalf("unexpected modes %+v", modes)
	}

	assertStatus(t, doJSONRequest(t, srv.router, http.MethodGet, "/metrics", nil, nil), http.StatusOK)

	body := map[string]any{"email": "x@example.com", "password": "nope"}
	assertStatus(t, doJSONRequest(t, srv.router, http.MethodPost, "/login", body, nil), http.StatusUnauthorized)
	assertStatus(t, doJSONRequest(t, srv.router, http.MethodPost, "/login", body, nil), http.StatusUnauthorized)
	assertStatus(t, doJSONRequest(t, srv.router, http.MethodPost, "/login", body, nil), http.StatusTooManyRequests)
	// other routes are not throttled
	assertStatus(t, doJSONRequest(t, srv.router, http.MethodGet, "/health", nil, nil), http.StatusOK)

	preflight := doJSONRequest(t, srv.router, http.MethodOptions, "/chat/message", nil, map[string]string{
		"Origin":                        "http://localhost:3000",
		"Access-Control-Request-Method": "POST",
	})
	if preflight.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatalf("expected CORS headers on preflight, got %v", preflight.Header())
	}
}

func TestLogout(t *testing.T) {
	srv := newTestServer(t, RouterOptions{})
	authHeader := registerAndLogin(t, srv.router, "bye@example.com")
	resp := doJSONRequest(t, srv.router, http.MethodPost, "/logout", nil, authHeader)
	assertStatus(t, resp, http.StatusOK)
	var body struct {
		Revoked bool `json:"revoked"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body.Revoked {
		t.Fatalf("revocation needs redis; expected revoked=false")
	}
	assertStatus(t, doJSONRequest(t, srv.router, http.MethodPost, "/logout", nil, nil), http.StatusUnauthorized)
}

func registerAndLogin(t *testing.T, router *gin.Engine, email string) map[string]string {
	t.Helper()
	username := strings.Split(email, "@")[0]
	resp := doJSONRequest(t, router, http.MethodPost, "/register", map[string]string{
		"email":            email,
		"username":         username,
		"password":         "pass123",
		"confirm_password": "pass123",
	}, nil)
	assertStatus(t, resp, http.StatusCreated)
	return login(t, router, email, "pass123")
}

func login(t *testing.T, router *gin.Engine, email, password string) map[string]string {
	t.Helper()
	resp := doJSONRequest(t, router, http.MethodPost, "/login", map[string]string{
		"email":    email,
		"password": password,
	}, nil)
	assertStatus(t, resp, http.StatusOK)
	var body struct {
		Token     string `json:"token"`
		ExpiresIn int    `json:"expires_in"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body.Token == "" || body.ExpiresIn <= 0 || body.ExpiresIn > 3600 {
		t.Fatalf("unexpected login body %s", resp.Body.String())
	}
	return map[string]string{"Authorization": "Bearer " + body.Token}
}

func doJSONRequest(t *testing.T, router *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func assertStatus(t *testing.T, resp *httptest.ResponseRecorder, want int) {
	t.Helper()
	if resp.Code != want {
		t.Fatalf("expected status %d, got %d (%s)", want, resp.Code, resp.Body.String())
	}
}

func decodeJSON(t *testing.T, data []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode json: %v (%s)", err, string(data))
	}
}
