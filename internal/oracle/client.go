package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/norruva/dpp-service/internal"
	"github.com/norruva/dpp-service/internal/product"
)

// Client talks to the external credential and anchoring oracle. It issues
// verifiable credentials, generates and verifies zero-knowledge compliance
// proofs, and anchors passport hashes to Polygon.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg internal.OracleConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type credentialRequest struct {
	ProductID string `json:"product_id"`
	CompanyID string `json:"company_id"`
	GTIN      string `json:"gtin,omitempty"`
	Name      string `json:"name"`
}

type credentialResponse struct {
	Credential string `json:"credential"`
}

type anchorRequest struct {
	ProductID string `json:"product_id"`
}

type anchorResponse struct {
	TxHash      string    `json:"tx_hash"`
	ExplorerURL string    `json:"explorer_url"`
	Chain       string    `json:"chain"`
	AnchoredAt  time.Time `json:"anchored_at"`
}

type proofRequest struct {
	ProductID  string                                  `json:"product_id"`
	Compliance map[string]product.RegulationCompliance `json:"compliance,omitempty"`
}

type proofResponse struct {
	Proof string `json:"proof"`
}

type verifyRequest struct {
	Proof string `json:"proof"`
}

type verifyResponse struct {
	Valid bool `json:"valid"`
}

// CreateVerifiableCredential issues a W3C verifiable credential for the
// passport and returns it as a compact JWT string.
func (c *Client) CreateVerifiableCredential(ctx context.Context, p *product.Product) (string, error) {
	var resp credentialResponse
	err := c.post(ctx, "/v1/credentials", credentialRequest{
		ProductID: p.ID,
		CompanyID: p.CompanyID,
		GTIN:      p.GTIN,
		Name:      p.Name,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Credential == "" {
		return "", fmt.Errorf("oracle returned empty credential for product %s", p.ID)
	}
	return resp.Credential, nil
}

// AnchorToPolygon writes the passport hash on chain and returns the receipt.
func (c *Client) AnchorToPolygon(ctx context.Context, productID string) (*product.BlockchainProof, error) {
	var resp anchorResponse
	if err := c.post(ctx, "/v1/anchors", anchorRequest{ProductID: productID}, &resp); err != nil {
		return nil, err
	}
	if resp.TxHash == "" {
		return nil, fmt.Errorf("oracle returned empty tx hash for product %s", productID)
	}

	anchoredAt := resp.AnchoredAt
	if anchoredAt.IsZero() {
		anchoredAt = time.Now()
	}
	chain := resp.Chain
	if chain == "" {
		chain = "polygon"
	}
	return &product.BlockchainProof{
		TxHash:      resp.TxHash,
		ExplorerURL: resp.ExplorerURL,
		Chain:       chain,
		AnchoredAt:  anchoredAt,
	}, nil
}

func (c *Client) GenerateComplianceProof(ctx context.Context, p *product.Product) (*product.ZKProof, error) {
	var resp proofResponse
	err := c.post(ctx, "/v1/proofs", proofRequest{
		ProductID:  p.ID,
		Compliance: p.Compliance,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Proof == "" {
		return nil, fmt.Errorf("oracle returned empty proof for product %s", p.ID)
	}
	return &product.ZKProof{
		Proof:       resp.Proof,
		GeneratedAt: time.Now(),
	}, nil
}

func (c *Client) VerifyComplianceProof(ctx context.Context, proof string) (bool, error) {
	var resp verifyResponse
	if err := c.post(ctx, "/v1/proofs/verify", verifyRequest{Proof: proof}, &resp); err != nil {
		return false, err
	}
	return resp.Valid, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal oracle request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build oracle request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("oracle call %s: %w", path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("oracle call completed",
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("oracle call %s: status %d: %s", path, resp.StatusCode, string(snippet))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode oracle response %s: %w", path, err)
	}
	return nil
}
