// Package api is the synchronous request/response channel: thin HTTP adapters
// over the chat service. It shares the accept path with the realtime transport
// and adds nothing on top of it but transport concerns.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/samber/lo"

	"pulse/cmd/identity"
	"pulse/cmd/internal/chat"
	"pulse/cmd/internal/otp"
	"pulse/cmd/security/password"
)

const defaultMaxBodyBytes = 64 << 10

// Handler wires the HTTP chat endpoints to the core service.
type Handler struct {
	log      *slog.Logger
	svc      *chat.Service
	verifier identity.Verifier

	otp          *otp.Store
	otpTTLSecs   int64
	maxBodyBytes int64
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

// WithOTPStore enables the registration boundary endpoints.
func WithOTPStore(store *otp.Store, ttlSeconds int64) HandlerOption {
	return func(h *Handler) {
		h.otp = store
		h.otpTTLSecs = ttlSeconds
	}
}

// WithMaxBodyBytes overrides the request body cap.
func WithMaxBodyBytes(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// NewHandler constructs the HTTP channel adapter.
func NewHandler(log *slog.Logger, svc *chat.Service, verifier identity.Verifier, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if svc == nil {
		return nil, errors.New("api: nil chat service")
	}
	if verifier == nil {
		return nil, errors.New("api: nil identity verifier")
	}

	h := &Handler{
		log:          log,
		svc:          svc,
		verifier:     verifier,
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h, nil
}

// Register wires chat routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/api/messages", h.requireAuth(h.handleSend))
	mux.HandleFunc("/api/history", h.requireAuth(h.handleHistory))
	mux.HandleFunc("/api/conversations", h.requireAuth(h.handleConversations))

	if h.otp != nil {
		mux.HandleFunc("/api/register/request", h.handleRegisterRequest)
		mux.HandleFunc("/api/register/verify", h.handleRegisterVerify)
	}
}

// ---- handlers ----

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req sendRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	msg, err := h.svc.Accept(r.Context(), userIDFromContext(r.Context()), req.ReceiverID, req.Content)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toMessageResponse(msg))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	other := strings.TrimSpace(r.URL.Query().Get("user_id"))
	msgs, err := h.svc.History(r.Context(), userIDFromContext(r.Context()), other)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, historyResponse{
		Messages: lo.Map(msgs, func(m chat.Message, _ int) messageResponse {
			return toMessageResponse(m)
		}),
	})
}

func (h *Handler) handleConversations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	convs, err := h.svc.ListConversations(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, conversationListResponse{
		Conversations: lo.Map(convs, func(c chat.Conversation, _ int) conversationResponse {
			return conversationResponse{
				OtherUserID:     c.OtherUserID,
				LastMessage:     c.LastMessage,
				LastMessageTime: c.LastMessageTime,
				UnreadCount:     c.UnreadCount,
				Profile:         c.Profile,
			}
		}),
	})
}

// ---- registration boundary ----

func (h *Handler) handleRegisterRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	email := identity.NormalizeEmail(req.Email)
	username := identity.NormalizeUsername(req.Username)
	if email == "" || username == "" {
		writeError(w, http.StatusBadRequest, "invalid_argument", "email and username are required")
		return
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}

	if err := h.otp.Issue(r.Context(), otp.PendingProfile{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
	}); err != nil {
		h.log.Error("api.register.issue.fail", "err", err)
		writeError(w, http.StatusServiceUnavailable, "transient", "could not issue code")
		return
	}

	writeJSON(w, http.StatusAccepted, registerRequestResponse{
		Email:            email,
		ExpiresInSeconds: h.otpTTLSecs,
	})
}

func (h *Handler) handleRegisterVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req registerVerifyRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	pending, err := h.otp.Redeem(req.Email, strings.TrimSpace(req.Code))
	switch {
	case errors.Is(err, otp.ErrNotFound), errors.Is(err, otp.ErrMismatch):
		writeError(w, http.StatusBadRequest, "invalid_code", "no matching code")
		return
	case errors.Is(err, otp.ErrExpired):
		writeError(w, http.StatusGone, "code_expired", "code expired; request a new one")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal", "verification failed")
		return
	}

	// Account creation from the pending profile is the identity provider's job.
	writeJSON(w, http.StatusOK, registerVerifyResponse{
		PendingProfileID: pending.ID,
		Email:            pending.Email,
		Username:         pending.Username,
	})
}

// ---- error mapping ----

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.Is(err, chat.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthenticated", "invalid caller identity")
	case errors.Is(err, chat.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, chat.ErrTransient):
		h.log.Warn("api.transient", "err", err)
		writeError(w, http.StatusServiceUnavailable, "transient", "temporary failure; retry the request")
	default:
		h.log.Error("api.internal", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
