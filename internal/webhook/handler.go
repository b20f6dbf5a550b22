package webhook

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/norruva/dpp-service/internal/transport"
	"github.com/norruva/dpp-service/pkg/logger"
)

type ServiceAPI interface {
	Register(dto WebhookDTO) (*Webhook, error)
	GetByID(id string) (*Webhook, error)
	ListForCompany(companyID string) ([]*Webhook, error)
	Update(id string, dto WebhookDTO) (*Webhook, error)
	Delete(id string) error
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

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var dto WebhookDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	hook, err := h.Service.Register(dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, hook)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	hook, err := h.Service.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, hook)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	companyID := r.URL.Query().Get("company_id")
	if companyID == "" {
		h.WriteError(w, http.StatusBadRequest, "company_id query parameter is required")
		return
	}

	hooks, err := h.Service.ListForCompany(companyID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, hooks)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var dto WebhookDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	hook, err := h.Service.Update(chi.URLParam(r, "id"), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, hook)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Delete(chi.URLParam(r, "id")); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
