package product

import (
	"fmt"

	"github.com/norruva/dpp-service/internal/audit"
)

// BulkResult reports the outcome for one item of a bulk operation. Bulk
// operations are best-effort: one failing item never aborts the rest, and
// callers get the full per-item breakdown instead of a single boolean.
type BulkResult struct {
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func succeeded(results []BulkResult) int {
	n := 0
	for _, r := range results {
		if r.OK {
			n++
		}
	}
	return n
}

// runBulk applies op to every id independently and writes one summary audit
// entry carrying the success count.
func (s *Service) runBulk(ids []string, actorID string, action audit.Action, verb string, op func(id string) error) []BulkResult {
	results := make([]BulkResult, 0, len(ids))
	for _, id := range ids {
		if err := op(id); err != nil {
			s.logger.Warn("bulk item failed", "operation", verb, "product_id", id, "error", err)
			results = append(results, BulkResult{ID: id, OK: false, Error: err.Error()})
			continue
		}
		results = append(results, BulkResult{ID: id, OK: true})
	}

	s.auditor.Log(action, "",
		fmt.Sprintf("bulk %s: %d of %d products", verb, succeeded(results), len(ids)), actorID)
	return results
}

func (s *Service) BulkDeleteProducts(ids []string, actorID string) ([]BulkResult, error) {
	if err := (&BulkIDsDTO{IDs: ids}).Validate(); err != nil {
		return nil, err
	}
	return s.runBulk(ids, actorID, audit.ActionBulkDeleted, "delete", func(id string) error {
		return s.DeleteProduct(id, actorID)
	}), nil
}

func (s *Service) BulkSubmitProducts(ids []string, actorID string) ([]BulkResult, error) {
	if err := (&BulkIDsDTO{IDs: ids}).Validate(); err != nil {
		return nil, err
	}
	return s.runBulk(ids, actorID, audit.ActionBulkSubmitted, "submit", func(id string) error {
		_, err := s.SubmitForReview(id, actorID)
		return err
	}), nil
}

func (s *Service) BulkArchiveProducts(ids []string, actorID string) ([]BulkResult, error) {
	if err := (&BulkIDsDTO{IDs: ids}).Validate(); err != nil {
		return nil, err
	}
	return s.runBulk(ids, actorID, audit.ActionBulkArchived, "archive", func(id string) error {
		_, err := s.ArchiveProduct(id, actorID)
		return err
	}), nil
}

// BulkAnchorProducts approves each pending passport, which marks it as
// minting synchronously and queues the anchor job.
func (s *Service) BulkAnchorProducts(ids []string, actorID string) ([]BulkResult, error) {
	if err := (&BulkIDsDTO{IDs: ids}).Validate(); err != nil {
		return nil, err
	}
	return s.runBulk(ids, actorID, audit.ActionBulkAnchored, "anchor", func(id string) error {
		_, err := s.ApprovePassport(id, actorID)
		return err
	}), nil
}

// BulkCreateProducts creates each product independently. Result IDs are the
// new product IDs; failed items carry an empty ID and the validation error.
func (s *Service) BulkCreateProducts(dto BulkCreateDTO, actorID string) ([]BulkResult, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	results := make([]BulkResult, 0, len(dto.Products))
	for _, item := range dto.Products {
		p, err := s.SaveProduct(item, "", actorID)
		if err != nil {
			s.logger.Warn("bulk item failed", "operation", "create", "name", item.Name, "error", err)
			results = append(results, BulkResult{OK: false, Error: err.Error()})
			continue
		}
		results = append(results, BulkResult{ID: p.ID, OK: true})
	}

	s.auditor.Log(audit.ActionBulkCreated, "",
		fmt.Sprintf("bulk create: %d of %d products", succeeded(results), len(dto.Products)), actorID)
	return results, nil
}
