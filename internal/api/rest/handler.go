package rest

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dtroode/identity-server/internal/apierrors"
	"github.com/dtroode/identity-server/internal/logger"
	"github.com/dtroode/identity-server/internal/model"
	"github.com/dtroode/identity-server/internal/service"
)

const maxBodyBytes = 1 << 20

// IdentityService defines the user operations exposed over HTTP.
type IdentityService interface {
	Register(ctx context.Context, params service.RegisterParams) (model.UserView, error)
	Login(ctx context.Context, email, password string) (model.Session, error)
	GetUser(ctx context.Context, id uuid.UUID) (model.UserView, error)
	ListUsers(ctx context.Context, page, size int) (model.UserPage, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type pagination struct {
	Page  int `json:"page"`
	Size  int `json:"size"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type listUsersResponse struct {
	Users      []model.UserView `json:"users"`
	Pagination pagination       `json:"pagination"`
}

// Handler serves the identity HTTP endpoints.
type Handler struct {
	identityService IdentityService
	contextManager  model.ContextManager
	logger          *logger.Logger
}

func NewHandler(identityService IdentityService, contextManager model.ContextManager, logger *logger.Logger) *Handler {
	return &Handler{
		identityService: identityService,
		contextManager:  contextManager,
		logger:          logger,
	}
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, StatusResponse{Status: "ok", Message: "identity service is running"})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, maxBodyBytes, &req); err != nil {
		RespondWithError(w, apierrors.NewErrInvalidRequest("invalid request payload", err))
		return
	}

	user, err := h.identityService.Register(r.Context(), service.RegisterParams{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		RespondWithError(w, err)
		return
	}

	RespondWithJSON(w, http.StatusCreated, user)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, maxBodyBytes, &req); err != nil {
		RespondWithError(w, apierrors.NewErrInvalidRequest("invalid request payload", err))
		return
	}

	session, err := h.identityService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		RespondWithError(w, err)
		return
	}

	RespondWithJSON(w, http.StatusOK, session)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		RespondWithError(w, apierrors.NewErrInvalidRequest("page must be an integer", err))
		return
	}
	size, err := queryInt(r, "size", model.DefaultPageSize)
	if err != nil {
		RespondWithError(w, apierrors.NewErrInvalidRequest("size must be an integer", err))
		return
	}

	page = max(page, 1)
	size = min(size, model.MaxPageSize)

	result, err := h.identityService.ListUsers(r.Context(), page, size)
	if err != nil {
		RespondWithError(w, err)
		return
	}

	RespondWithJSON(w, http.StatusOK, listUsersResponse{
		Users: result.Users,
		Pagination: pagination{
			Page:  result.Page,
			Size:  result.Size,
			Total: result.Total,
			Pages: result.Pages,
		},
	})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondWithError(w, apierrors.NewErrInvalidRequest("invalid user id", err))
		return
	}

	user, err := h.identityService.GetUser(r.Context(), id)
	if err != nil {
		RespondWithError(w, err)
		return
	}

	RespondWithJSON(w, http.StatusOK, user)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondWithError(w, apierrors.NewErrInvalidRequest("invalid user id", err))
		return
	}

	callerID, _ := h.contextManager.GetUserIDFromContext(r.Context())
	h.logger.Info("Identity HTTP: deleting user",
		"user_id", id,
		"caller_id", callerID)

	if err := h.identityService.DeleteUser(r.Context(), id); err != nil {
		RespondWithError(w, err)
		return
	}

	RespondWithJSON(w, http.StatusOK, StatusResponse{Status: "success", Message: "user deleted"})
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
