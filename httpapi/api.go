// Package httpapi exposes the REST surface next to the websocket endpoint:
// account registration and login, message history, and attachment uploads.
package httpapi

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"chat-relay/auth"
	"chat-relay/errors"
	"chat-relay/services"
	"chat-relay/storage"
)

const maxUploadBytes = 10 << 20

type API struct {
	log         *slog.Logger
	auth        services.IAuthService
	history     services.IHistoryService
	attachments *storage.DiskStore
}

func NewAPI(log *slog.Logger, authService services.IAuthService, historyService services.IHistoryService, attachments *storage.DiskStore) *API {
	return &API{
		log:         log,
		auth:        authService,
		history:     historyService,
		attachments: attachments,
	}
}

// Routes builds the full HTTP surface, websocket endpoint included.
func (a *API) Routes(wsHandler http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/ws", wsHandler)
	mux.HandleFunc("POST /auth/register", a.handleRegister)
	mux.HandleFunc("POST /auth/login", a.handleLogin)
	mux.Handle("GET /messages/{userId}", auth.RequireToken(http.HandlerFunc(a.handleHistory)))
	mux.Handle("POST /upload", auth.RequireToken(http.HandlerFunc(a.handleUpload)))
	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(a.attachments.Dir()))))
	return mux
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := a.auth.Register(req.Email, req.Username, req.Password)
	switch {
	case stderrors.Is(err, errors.ErrUserAlreadyExists):
		writeError(w, http.StatusConflict, "email already registered")
	case stderrors.Is(err, errors.ErrInvalidPassword):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		a.log.Error("Registration failed", "error", err)
		writeError(w, http.StatusInternalServerError, "registration failed")
	default:
		writeJSON(w, http.StatusCreated, tokenResponse{Token: string(token)})
	}
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := a.auth.Login(req.Email, req.Password)
	switch {
	case stderrors.Is(err, errors.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case err != nil:
		a.log.Error("Login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
	default:
		writeJSON(w, http.StatusOK, tokenResponse{Token: string(token)})
	}
}

type historyMessage struct {
	ID            string    `json:"_id"`
	Sender        string    `json:"sender"`
	Receiver      string    `json:"receiver"`
	Content       string    `json:"content,omitempty"`
	Kind          string    `json:"type"`
	AttachmentURL string    `json:"imageUrl,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

type historyResponse struct {
	Messages   []historyMessage `json:"messages"`
	NextCursor *string          `json:"nextCursor,omitempty"`
}

// handleHistory serves one page of a user's conversation history. Tokens are
// only trusted for their own history.
func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	if callerID, _ := r.Context().Value(auth.UserIDKey).(string); callerID != userID {
		writeError(w, http.StatusForbidden, "cannot read another user's history")
		return
	}

	var cursor *string
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		cursor = &raw
	}

	messages, next, err := a.history.GetMessages(userID, cursor)
	if err != nil {
		a.log.Error("History lookup failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "history lookup failed")
		return
	}

	// The store pages newest-first; clients render oldest-first.
	out := make([]historyMessage, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		out = append(out, historyMessage{
			ID:            m.ID.String(),
			Sender:        m.SenderID,
			Receiver:      m.ReceiverID,
			Content:       m.Content,
			Kind:          string(m.Kind),
			AttachmentURL: m.AttachmentURL,
			Timestamp:     m.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, historyResponse{Messages: out, NextCursor: next})
}

type uploadResponse struct {
	ImageURL string `json:"imageUrl"`
}

// handleUpload accepts one multipart image and returns its public URL. The
// content type is sniffed from the bytes; anything that is not an image is
// rejected.
func (a *API) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing image field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable upload")
		return
	}

	if mtype := mimetype.Detect(data); !strings.HasPrefix(mtype.String(), "image/") {
		writeError(w, http.StatusBadRequest, "only image uploads are allowed")
		return
	}

	url, err := a.attachments.Store(data)
	if err != nil {
		a.log.Error("Attachment store failed", "error", err)
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{ImageURL: url})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
