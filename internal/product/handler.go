package product

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/norruva/dpp-service/internal/auth"
	"github.com/norruva/dpp-service/internal/transport"
	"github.com/norruva/dpp-service/pkg/logger"
)

type ServiceAPI interface {
	SaveProduct(dto ProductDTO, productID, actorID string) (*Product, error)
	DeleteProduct(productID, actorID string) error
	GetProducts(f Filters, actorID string) ([]*Product, error)
	GetProductByID(productID, actorID string) (*Product, error)
	GetPublicPassport(ctx context.Context, productID string) (*Product, error)

	SubmitForReview(productID, actorID string) (*Product, error)
	ApprovePassport(productID, actorID string) (*Product, error)
	RejectPassport(productID string, dto RejectDTO, actorID string) (*Product, error)
	ResolveComplianceIssue(productID, actorID string) (*Product, error)
	OverrideVerification(productID string, dto OverrideDTO, actorID string) (*Product, error)
	ArchiveProduct(productID, actorID string) (*Product, error)

	AddCustodyStep(productID string, dto CustodyStepDTO, actorID string) (*Product, error)
	TransferOwnership(productID string, dto TransferOwnershipDTO, actorID string) (*Product, error)
	GenerateZKProof(ctx context.Context, productID, actorID string) (*Product, error)
	VerifyZKProof(ctx context.Context, productID, actorID string) (*Product, error)
	PerformCustomsInspection(productID string, dto CustomsInspectionDTO, actorID string) (*Product, error)
	MarkAsRecycled(productID, actorID string) (*Product, error)
	AddServiceRecord(productID string, dto ServiceRecordDTO, actorID string) (*Product, error)

	BulkDeleteProducts(ids []string, actorID string) ([]BulkResult, error)
	BulkSubmitProducts(ids []string, actorID string) ([]BulkResult, error)
	BulkArchiveProducts(ids []string, actorID string) ([]BulkResult, error)
	BulkAnchorProducts(ids []string, actorID string) ([]BulkResult, error)
	BulkCreateProducts(dto BulkCreateDTO, actorID string) ([]BulkResult, error)
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

func actorID(r *http.Request) string {
	if u, ok := auth.UserFromContext(r.Context()); ok {
		return u.ID
	}
	return ""
}

func filtersFromQuery(r *http.Request) Filters {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	return Filters{
		Query:              q.Get("q"),
		Category:           q.Get("category"),
		Status:             Status(q.Get("status")),
		VerificationStatus: VerificationStatus(q.Get("verification_status")),
		Limit:              limit,
		Offset:             offset,
	}
}

// ListProducts godoc
// @Summary List product passports visible to the caller
// @Tags products
// @Produce json
// @Success 200 {array} Product
// @Router /products [get]
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Service.GetProducts(filtersFromQuery(r), actorID(r))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, products)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Service.GetProductByID(chi.URLParam(r, "id"), actorID(r))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, p)
}

// GetPublicPassport serves the unauthenticated passport view.
func (h *Handler) GetPublicPassport(w http.ResponseWriter, r *http.Request) {
	p, err := h.Service.GetPublicPassport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var dto ProductDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.Service.SaveProduct(dto, "", actorID(r))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var dto ProductDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.Service.SaveProduct(dto, chi.URLParam(r, "id"), actorID(r))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteProduct(chi.URLParam(r, "id"), actorID(r)); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// transition wraps the id-plus-actor workflow endpoints sharing one shape.
func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(productID, actorID string) (*Product, error)) {
	p, err := op(chi.URLParam(r, "id"), actorID(r))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) SubmitForReview(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.SubmitForReview)
}

func (h *Handler) ApprovePassport(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.ApprovePassport)
}

func (h *Handler) RejectPassport(w http.ResponseWriter, r *http.Request) {
	var dto RejectDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.Service.RejectPassport(chi.URLParam(r, "id"), dto, actorID(r))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) ResolveComplianceIssue(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.ResolveComplianceIssue)
}

func (h *Handler) OverrideVerification(w http.ResponseWriter, r *http.Request) {
	var dto OverrideDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.Service.OverrideVerification(chi.URLParam(r, "id"), dto, actorID(r))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) ArchiveProduct(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.ArchiveProduct)
}

func (h *Handler) AddCustodyStep(w http.ResponseWriter, r *http.Request) {
	var dto CustodyStepDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.Service.AddCustodyStep(chi.URLParam(r, "id"), dto, actorID(r))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	var dto TransferOwnershipDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.Service.TransferOwnership(chi.URLParam(r, "id"), dto, actorID(r))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) GenerateZKProof(w http.ResponseWriter, r *http.Request) {
	p, err := h.Service.GenerateZKProof(r.Context(), chi.URLParam(r, "id"), actorID(r))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) VerifyZKProof(w http.ResponseWriter, r *http.Request) {
	p, err := h.Service.VerifyZKProof(r.Context(), chi.URLParam(r, "id"), actorID(r))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) PerformCustomsInspection(w http.ResponseWriter, r *http.Request) {
	var dto CustomsInspectionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.Service.PerformCustomsInspection(chi.URLParam(r, "id"), dto, actorID(r))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) MarkAsRecycled(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.MarkAsRecycled)
}

func (h *Handler) AddServiceRecord(w http.ResponseWriter, r *http.Request) {
	var dto ServiceRecordDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.Service.AddServiceRecord(chi.URLParam(r, "id"), dto, actorID(r))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, p)
}

// bulk wraps the id-list bulk endpoints sharing one shape.
func (h *Handler) bulk(w http.ResponseWriter, r *http.Request, op func(ids []string, actorID string) ([]BulkResult, error)) {
	var dto BulkIDsDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	results, err := op(dto.IDs, actorID(r))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, results)
}

func (h *Handler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, h.Service.BulkDeleteProducts)
}

func (h *Handler) BulkSubmit(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, h.Service.BulkSubmitProducts)
}

func (h *Handler) BulkArchive(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, h.Service.BulkArchiveProducts)
}

func (h *Handler) BulkAnchor(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, h.Service.BulkAnchorProducts)
}

func (h *Handler) BulkCreate(w http.ResponseWriter, r *http.Request) {
	var dto BulkCreateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	results, err := h.Service.BulkCreateProducts(dto, actorID(r))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, results)
}
