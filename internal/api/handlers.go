package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"studymaster/internal/auth"
	"studymaster/internal/config"
	"studymaster/internal/diagram"
	"studymaster/internal/engine"
	"studymaster/internal/index"
	"studymaster/internal/ingest"
	"studymaster/internal/prompt"
	"studymaster/internal/store"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxUsername
)

const (
	minQuizQuestions = 5
	maxQuizQuestions = 20
)

type APIHandler struct {
	cfg      *config.Config
	store    store.Store
	engine   *engine.Engine
	sessions *engine.Sessions
	embedder index.Embedder
	logger   *zap.Logger
}

func NewAPIHandler(cfg *config.Config, s store.Store, eng *engine.Engine, sessions *engine.Sessions, embedder index.Embedder, logger *zap.Logger) *APIHandler {
	return &APIHandler{
		cfg:      cfg,
		store:    s,
		engine:   eng,
		sessions: sessions,
		embedder: embedder,
		logger:   logger,
	}
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		username, err := auth.ValidateJWT(h.cfg.JWTSecret, tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		user, err := h.store.GetUserByUsername(username)
		if err != nil {
			h.logger.Error("failed to resolve user", zap.String("username", username), zap.Error(err))
			http.Error(w, "Failed to process user identity", http.StatusInternalServerError)
			return
		}
		if user == nil {
			http.Error(w, "User not found", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ctxUserID, user.ID)
		ctx = context.WithValue(ctx, ctxUsername, user.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		http.Error(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	if existing, err := h.store.GetUserByUsername(req.Username); err != nil {
		h.logger.Error("signup lookup failed", zap.Error(err))
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	} else if existing != nil {
		http.Error(w, "Username is taken", http.StatusConflict)
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("failed to hash password", zap.Error(err))
		http.Error(w, "Failed to process password", http.StatusInternalServerError)
		return
	}

	user, err := h.store.CreateUser(req.Username, hashedPassword)
	if err != nil {
		h.logger.Error("failed to create user", zap.String("username", req.Username), zap.Error(err))
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.store.GetUserByUsername(req.Username)
	if err != nil {
		h.logger.Error("login lookup failed", zap.Error(err))
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateJWT(h.cfg.JWTSecret, user.Username)
	if err != nil {
		h.logger.Error("failed to generate JWT", zap.Error(err))
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

func (h *APIHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(ctxUserID).(int64)
	h.sessions.Drop(userID)
	w.WriteHeader(http.StatusNoContent)
}

// UploadDocumentHandler ingests a PDF, builds a fresh index and attaches it
// to the caller's session, replacing any previous document.
func (h *APIHandler) UploadDocumentHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(ctxUserID).(int64)

	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		http.Error(w, "Invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("document")
	if err != nil {
		http.Error(w, "A 'document' file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Failed to read uploaded file", http.StatusBadRequest)
		return
	}

	text, err := ingest.ExtractText(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		if errors.Is(err, ingest.ErrNoText) {
			http.Error(w, "The document contains no extractable text", http.StatusUnprocessableEntity)
		} else {
			http.Error(w, "Unreadable document: "+err.Error(), http.StatusUnprocessableEntity)
		}
		return
	}

	segments, err := ingest.Chunk(text, h.cfg.ChunkSize, h.cfg.ChunkOverlap)
	if err != nil {
		http.Error(w, "Failed to segment document: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	idx, err := index.Build(r.Context(), segments, h.embedder)
	if err != nil {
		h.logger.Error("index build failed",
			zap.Int64("user_id", userID),
			zap.String("filename", header.Filename),
			zap.Error(err))
		http.Error(w, "Failed to index document", http.StatusBadGateway)
		return
	}

	sess := h.sessions.Get(userID)
	if err := h.engine.AttachIndex(sess, idx); err != nil {
		writeEngineError(w, err)
		return
	}

	h.logger.Info("document indexed",
		zap.Int64("user_id", userID),
		zap.String("filename", header.Filename),
		zap.Int("segments", idx.Len()))

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"filename": header.Filename,
		"segments": idx.Len(),
	})
}

func (h *APIHandler) CloseDocumentHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(ctxUserID).(int64)
	sess := h.sessions.Get(userID)
	if err := h.engine.AttachIndex(sess, nil); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sessionResponse struct {
	Mode            string `json:"mode"`
	Style           string `json:"style"`
	QuizQuestions   int    `json:"quiz_questions"`
	DocumentLoaded  bool   `json:"document_loaded"`
	IndexedSegments int    `json:"indexed_segments"`
}

func (h *APIHandler) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(ctxUserID).(int64)
	sess := h.sessions.Get(userID)

	resp := sessionResponse{
		Mode:          sess.Mode.String(),
		Style:         sess.Style.String(),
		QuizQuestions: sess.QuizQuestions,
	}
	if idx := sess.Index(); idx != nil {
		resp.DocumentLoaded = true
		resp.IndexedSegments = idx.Len()
	}
	json.NewEncoder(w).Encode(resp)
}

type updateSessionRequest struct {
	Mode          *string `json:"mode,omitempty"`
	Style         *string `json:"style,omitempty"`
	QuizQuestions *int    `json:"quiz_questions,omitempty"`
}

func (h *APIHandler) UpdateSessionHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(ctxUserID).(int64)
	sess := h.sessions.Get(userID)

	var req updateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	mode := sess.Mode
	style := sess.Style
	quizQuestions := sess.QuizQuestions

	if req.Mode != nil {
		var err error
		if mode, err = prompt.ParseStudyMode(*req.Mode); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if req.Style != nil {
		var err error
		if style, err = prompt.ParseResponseStyle(*req.Style); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if req.QuizQuestions != nil {
		quizQuestions = clamp(*req.QuizQuestions, minQuizQuestions, maxQuizQuestions)
	}

	if err := h.engine.UpdateSettings(sess, mode, style, quizQuestions); err != nil {
		writeEngineError(w, err)
		return
	}
	h.GetSessionHandler(w, r)
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Content string `json:"content"`
	Diagram string `json:"diagram,omitempty"`
}

func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(ctxUserID).(int64)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "Message cannot be empty", http.StatusBadRequest)
		return
	}

	sess := h.sessions.Get(userID)
	content, err := h.engine.HandleTurn(r.Context(), sess, req.Message)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	resp := chatResponse{Content: content}
	if source, ok := diagram.Extract(content); ok {
		resp.Diagram = source
	}
	json.NewEncoder(w).Encode(resp)
}

// ChatStreamHandler answers a turn as a server-sent event stream: one
// "fragment" event per generated fragment, then a final "done" event with the
// complete response. Errors after streaming has begun arrive as an "error"
// event since the status line is already gone.
func (h *APIHandler) ChatStreamHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(ctxUserID).(int64)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "Message cannot be empty", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sess := h.sessions.Get(userID)
	content, err := h.engine.HandleTurnStream(r.Context(), sess, req.Message, func(fragment string) error {
		if err := writeSSE(w, "fragment", fragment); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		writeSSE(w, "error", err.Error())
		flusher.Flush()
		return
	}

	final := chatResponse{Content: content}
	if source, ok := diagram.Extract(content); ok {
		final.Diagram = source
	}
	writeSSE(w, "done", final)
	flusher.Flush()
}

func writeSSE(w io.Writer, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}

func (h *APIHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(ctxUserID).(int64)
	sess := h.sessions.Get(userID)

	turns, err := h.engine.History(sess, 500)
	if err != nil {
		h.logger.Error("failed to load history", zap.Int64("user_id", userID), zap.Error(err))
		http.Error(w, "Failed to load history", http.StatusInternalServerError)
		return
	}
	if turns == nil {
		turns = []store.Turn{}
	}
	json.NewEncoder(w).Encode(turns)
}

func (h *APIHandler) ResetHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(ctxUserID).(int64)
	sess := h.sessions.Get(userID)
	if err := h.engine.Reset(sess); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrTurnInFlight):
		http.Error(w, "A previous turn is still being processed", http.StatusConflict)
	case errors.Is(err, engine.ErrGeneration):
		http.Error(w, "The tutor could not generate a response, please try again", http.StatusBadGateway)
	case errors.Is(err, index.ErrEmptyText):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "Failed to process the request", http.StatusInternalServerError)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
