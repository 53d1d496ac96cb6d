package admin

import (
	"net/http"

	"github.com/google/uuid"

	pkgerrors "deligma/pkg/errors"
	"deligma/pkg/middleware"
	"deligma/pkg/responses"
	"deligma/pkg/validators"
)

type Handler struct {
	service Service
	resp    *responses.Writer
}

func NewHandler(service Service, resp *responses.Writer) *Handler {
	return &Handler{service: service, resp: resp}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		h.resp.Error(r.Context(), w, err)
		return
	}

	result, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.resp.Error(r.Context(), w, err)
		return
	}
	h.resp.SuccessStatus(w, http.StatusOK, result, "Inicio de sesión exitoso")
}

// HandleProfile returns the authenticated administrator.
func (h *Handler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(middleware.AdminIDFromContext(r.Context()))
	if err != nil {
		h.resp.Error(r.Context(), w, pkgerrors.New(pkgerrors.CodeUnauthorized, "Token inválido o expirado"))
		return
	}

	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.resp.Error(r.Context(), w, err)
		return
	}
	h.resp.Success(w, user)
}
