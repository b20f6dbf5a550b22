package audit

import (
	"net/http"
	"strconv"

	"github.com/norruva/dpp-service/internal/transport"
	"github.com/norruva/dpp-service/pkg/logger"
)

type ServiceAPI interface {
	List(limit, offset int) ([]*Entry, error)
	ListByEntity(entityID string, limit, offset int) ([]*Entry, error)
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

// List serves the audit trail newest first, optionally scoped to one entity.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	offset, _ := strconv.Atoi(q.Get("offset"))

	var (
		entries []*Entry
		err     error
	)
	if entityID := q.Get("entity_id"); entityID != "" {
		entries, err = h.Service.ListByEntity(entityID, limit, offset)
	} else {
		entries, err = h.Service.List(limit, offset)
	}
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, entries)
}
