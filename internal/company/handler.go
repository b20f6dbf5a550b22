package company

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/norruva/dpp-service/internal"
	"github.com/norruva/dpp-service/internal/auth"
	"github.com/norruva/dpp-service/internal/transport"
	"github.com/norruva/dpp-service/pkg/logger"
)

type ServiceAPI interface {
	CreateCompany(dto CreateCompanyDTO) (*Company, error)
	GetCompany(id string) (*Company, error)
	UpdateSettings(id string, settings Settings) (*Company, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.Default()),
		Service:     service,
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var dto CreateCompanyDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.Service.CreateCompany(dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, c.Response())
}

// Get returns a single tenant. Callers without a global role only see their
// own company; foreign tenants are masked as not found.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if !user.HasGlobalRole() && user.CompanyID != id {
		h.HandleServiceError(w, internal.NewNotFoundError("company not found", internal.ErrCodeCompanyNotFound))
		return
	}

	c, err := h.Service.GetCompany(id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, c.Response())
}

func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.Service.UpdateSettings(chi.URLParam(r, "id"), settings)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, c.Response())
}
