package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"gwi.com/traegpt/internal/auth"
	"gwi.com/traegpt/internal/core"
	"gwi.com/traegpt/internal/store"
)

type contextKey string

const userIDKey contextKey = "userID"

// UserID returns the authenticated user id set by JWTAuthMiddleware.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// RawCompleter forwards a message list and returns the provider body untouched.
type RawCompleter interface {
	Raw(ctx context.Context, messages []core.ChatMessage) ([]byte, error)
}

type Vision interface {
	Query(ctx context.Context, endpoint core.VisionEndpoint, img core.Image) ([]byte, error)
	Describe(ctx context.Context, img core.Image) (string, error)
	Analyze(ctx context.Context, img core.Image) (*store.ImageResult, error)
}

type Files interface {
	Upload(ctx context.Context, userID, filename, contentType string, data []byte) (string, error)
	Get(ctx context.Context, objectPath string) (*store.Object, error)
}

type Preferences interface {
	Save(ctx context.Context, userID string, prefs store.UserPreferences) error
	Load(ctx context.Context, userID string) store.UserPreferences
}

// Services are the dependencies of APIHandler.
type Services struct {
	Chat        *core.ChatService
	Signer      *auth.Signer
	Completions RawCompleter
	Search      core.Searcher
	Vision      Vision
	Files       Files
	Preferences Preferences

	SearchResults  int
	MaxUploadBytes int64
}

type APIHandler struct {
	chatService *core.ChatService
	signer      *auth.Signer
	completions RawCompleter
	search      core.Searcher
	vision      Vision
	files       Files
	preferences Preferences

	searchResults  int
	maxUploadBytes int64
}

func NewAPIHandler(s Services) *APIHandler {
	if s.MaxUploadBytes <= 0 {
		s.MaxUploadBytes = 10 << 20
	}
	if s.SearchResults <= 0 {
		s.SearchResults = 5
	}
	return &APIHandler{
		chatService:    s.Chat,
		signer:         s.Signer,
		completions:    s.Completions,
		search:         s.Search,
		vision:         s.Vision,
		files:          s.Files,
		preferences:    s.Preferences,
		searchResults:  s.SearchResults,
		maxUploadBytes: s.MaxUploadBytes,
	}
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		userID, err := h.signer.ValidateJWT(tokenString)
		if err != nil {
			slog.Debug("rejected token", "error", err)
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type AnonymousSignInResponse struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

func (h *APIHandler) AnonymousSignInHandler(w http.ResponseWriter, r *http.Request) {
	userID, token, err := h.signer.SignInAnonymously()
	if err != nil {
		slog.Error("anonymous sign-in failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}
	slog.Info("anonymous user signed in", "userId", userID)
	writeJSON(w, http.StatusCreated, AnonymousSignInResponse{Token: token, UserID: userID})
}

// FileHandler serves uploaded objects by path.
func (h *APIHandler) FileHandler(w http.ResponseWriter, r *http.Request) {
	objectPath := chi.URLParam(r, "*")
	if objectPath == "" {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	obj, err := h.files.Get(r.Context(), objectPath)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "File not found")
			return
		}
		slog.Error("failed to read file", "path", objectPath, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to read file")
		return
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(obj.Data)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=31536000, immutable")
	w.Write(obj.Data)
}

func (h *APIHandler) GetChatHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.chatService.Conversation(UserID(r.Context())).Snapshot())
}

type PostMessageRequest struct {
	Text string `json:"text"`
}

// PostMessageHandler accepts JSON {text} or a multipart form with "text" and an optional "image".
// A failed turn still answers with the conversation state so the error text can be shown.
func (h *APIHandler) PostMessageHandler(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	var in core.SendInput
	if isMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+(1<<20))
		if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid form: "+err.Error())
			return
		}
		in.Text = r.FormValue("text")
		img, err := h.readImage(r, "image")
		if err != nil && !errors.Is(err, http.ErrMissingFile) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err == nil {
			in.Image = &img
		}
	} else {
		var req PostMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
		in.Text = req.Text
	}

	if strings.TrimSpace(in.Text) == "" && in.Image == nil {
		writeError(w, http.StatusBadRequest, "Message text or image is required")
		return
	}

	state, err := h.chatService.Conversation(userID).Send(r.Context(), in)
	if err != nil {
		writeJSON(w, statusFor(err), state)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *APIHandler) NewChatHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.chatService.Conversation(UserID(r.Context())).Reset())
}

func (h *APIHandler) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	sessions, err := h.chatService.Sessions(r.Context(), userID)
	if err != nil {
		slog.Error("failed to list sessions", "userId", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load chat history")
		return
	}
	if sessions == nil {
		sessions = []store.ChatSession{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *APIHandler) OpenSessionHandler(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	state, err := h.chatService.Conversation(userID).Open(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Chat not found")
			return
		}
		slog.Error("failed to open session", "userId", userID, "sessionId", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to open chat")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *APIHandler) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	state, err := h.chatService.Conversation(userID).DeleteSession(r.Context(), sessionID)
	if err != nil {
		slog.Error("failed to delete session", "userId", userID, "sessionId", sessionID, "error", err)
		writeError(w, statusFor(err), "Failed to delete chat")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *APIHandler) GetPreferencesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.preferences.Load(r.Context(), UserID(r.Context())))
}

// PutPreferencesHandler merges the given fields into the stored profile and returns the result.
func (h *APIHandler) PutPreferencesHandler(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	var prefs store.UserPreferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := h.preferences.Save(r.Context(), userID, prefs); err != nil {
		var validation *store.ValidationError
		if errors.As(err, &validation) {
			writeError(w, http.StatusBadRequest, validation.Message)
			return
		}
		slog.Error("failed to save preferences", "userId", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save preferences")
		return
	}
	writeJSON(w, http.StatusOK, h.preferences.Load(r.Context(), userID))
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// readImage reads one file part of an already parsed multipart form.
func (h *APIHandler) readImage(r *http.Request, field string) (core.Image, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return core.Image{}, err
	}
	defer file.Close()

	if header.Size > h.maxUploadBytes {
		return core.Image{}, fmt.Errorf("file exceeds %d bytes", h.maxUploadBytes)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return core.Image{}, fmt.Errorf("read %s: %w", field, err)
	}
	if len(data) == 0 {
		return core.Image{}, fmt.Errorf("%s is empty", field)
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return core.Image{Name: header.Filename, ContentType: contentType, Data: data}, nil
}
