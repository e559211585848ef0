package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"studymaster/internal/config"
	"studymaster/internal/engine"
	"studymaster/internal/store"
)

type stubGenerator struct {
	reply string
	err   error
}

func (g *stubGenerator) Generate(context.Context, string, string) (string, error) {
	return g.reply, g.err
}

func (g *stubGenerator) GenerateStream(_ context.Context, _, _ string, onFragment func(string) error) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	if err := onFragment(g.reply); err != nil {
		return "", err
	}
	return g.reply, nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1}, nil
}

func newTestServer(t *testing.T, gen *stubGenerator) *httptest.Server {
	t.Helper()

	cfg := &config.Config{
		JWTSecret:      "test-secret",
		ChunkSize:      1000,
		ChunkOverlap:   200,
		RetrievalK:     6,
		QuizQuestions:  5,
		MaxUploadBytes: 1 << 20,
	}
	st := store.NewMemoryStore(time.Hour)
	eng := engine.New(st, gen, cfg.RetrievalK, zap.NewNop())
	sessions := engine.NewSessions(time.Hour, cfg.QuizQuestions)

	handler := NewAPIHandler(cfg, st, eng, sessions, stubEmbedder{}, zap.NewNop())
	srv := httptest.NewServer(NewRouter(handler))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func signupAndLogin(t *testing.T, srv *httptest.Server, username string) string {
	t.Helper()

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/signup", "", map[string]string{
		"username": username, "password": "hunter2",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/login", "", map[string]string{
		"username": username, "password": "hunter2",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out["token"])
	return out["token"]
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{})
	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthIsRequired(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{})
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/chat", "", map[string]string{"message": "hi"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{})
	signupAndLogin(t, srv, "alice")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/login", "", map[string]string{
		"username": "alice", "password": "wrong",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDuplicateSignup(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{})
	signupAndLogin(t, srv, "bob")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/signup", "", map[string]string{
		"username": "bob", "password": "again",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestChatRoundTripAndHistory(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{reply: "Cats are mammals."})
	token := signupAndLogin(t, srv, "carol")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/chat", token, map[string]string{"message": "What are cats?"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var chat chatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&chat))
	resp.Body.Close()
	assert.Equal(t, "Cats are mammals.", chat.Content)
	assert.Empty(t, chat.Diagram)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/history", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var turns []store.Turn
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&turns))
	resp.Body.Close()
	require.Len(t, turns, 2)
	assert.Equal(t, store.RoleUser, turns[0].Role)
	assert.Equal(t, store.RoleAssistant, turns[1].Role)
}

func TestChatExtractsDiagram(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{reply: "```mermaid\ngraph TD\nA-->B\n```"})
	token := signupAndLogin(t, srv, "dave")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/chat", token, map[string]string{"message": "map it"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	var chat chatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&chat))
	assert.Equal(t, "graph TD\nA-->B", chat.Diagram)
}

func TestChatGenerationFailure(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{err: errors.New("quota exceeded")})
	token := signupAndLogin(t, srv, "erin")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/chat", token, map[string]string{"message": "hi"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	// The failed turn still recorded the user's message.
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/history", token, nil)
	var turns []store.Turn
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&turns))
	resp.Body.Close()
	require.Len(t, turns, 1)
	assert.Equal(t, store.RoleUser, turns[0].Role)
}

func TestUpdateSessionClampsQuizCount(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{})
	token := signupAndLogin(t, srv, "frank")

	quiz := "quiz"
	n := 50
	resp := doJSON(t, http.MethodPut, srv.URL+"/api/session", token, updateSessionRequest{
		Mode: &quiz, QuizQuestions: &n,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	var sess sessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sess))
	assert.Equal(t, "quiz", sess.Mode)
	assert.Equal(t, maxQuizQuestions, sess.QuizQuestions)
}

func TestUpdateSessionRejectsUnknownMode(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{})
	token := signupAndLogin(t, srv, "grace")

	bad := "osmosis"
	resp := doJSON(t, http.MethodPut, srv.URL+"/api/session", token, updateSessionRequest{Mode: &bad})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestResetClearsHistory(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{reply: "ok"})
	token := signupAndLogin(t, srv, "heidi")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/chat", token, map[string]string{"message": "hi"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/session/reset", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/history", token, nil)
	var turns []store.Turn
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&turns))
	resp.Body.Close()
	assert.Empty(t, turns)
}

func TestChatStreamDeliversFragmentsAndDone(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{reply: "streamed reply"})
	token := signupAndLogin(t, srv, "ivan")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/chat/stream", token, map[string]string{"message": "hi"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	var body bytes.Buffer
	_, err := body.ReadFrom(resp.Body)
	require.NoError(t, err)

	text := body.String()
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")
	assert.Contains(t, text, "event: fragment")
	assert.Contains(t, text, `"streamed reply"`)
	assert.Contains(t, text, "event: done")
}

func TestUploadRequiresDocumentField(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{})
	token := signupAndLogin(t, srv, "judy")

	var buf bytes.Buffer
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/document", &buf)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=xxx")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
