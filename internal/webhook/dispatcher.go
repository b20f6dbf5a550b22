package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/norruva/dpp-service/internal/audit"
	"github.com/norruva/dpp-service/internal/company"
	"github.com/norruva/dpp-service/internal/core/events"
)

const userAgent = "Norruva-Webhook/1.0"

// CompanyDirectory resolves tenant API settings for signing.
type CompanyDirectory interface {
	GetByID(id string) (*company.Company, error)
}

// Dispatcher delivers passport lifecycle events to registered endpoints.
// Deliveries are signed with the tenant's shared secret when signing is
// enabled in the tenant's API settings, and both outcomes are audited with
// the status code and the payload that went over the wire.
type Dispatcher struct {
	webhooks  Repository
	companies CompanyDirectory
	auditor   *audit.Service
	client    *http.Client
	logger    *slog.Logger
}

func NewDispatcher(webhooks Repository, companies CompanyDirectory, auditor *audit.Service, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		webhooks:  webhooks,
		companies: companies,
		auditor:   auditor,
		client:    &http.Client{Timeout: 10 * time.Second},
		logger:    logger,
	}
}

// SubscribeAll wires the dispatcher to every passport lifecycle event.
func (d *Dispatcher) SubscribeAll(bus *events.EventBus) {
	for eventType := range knownEventTypes {
		bus.Subscribe(eventType, d.HandleEvent)
	}
}

// HandleEvent fans one event out to the owning tenant's active endpoints.
func (d *Dispatcher) HandleEvent(ctx context.Context, event events.Event) error {
	passportEvent, ok := event.(*events.PassportEvent)
	if !ok {
		d.logger.Warn("dispatcher received unexpected event shape", "event_type", event.EventType())
		return nil
	}

	hooks, err := d.webhooks.GetActiveByEvent(event.EventType())
	if err != nil {
		return fmt.Errorf("load webhooks for %s: %w", event.EventType(), err)
	}

	body, err := json.Marshal(passportEvent)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	for _, hook := range hooks {
		if hook.CompanyID != passportEvent.CompanyID {
			continue
		}
		d.deliver(ctx, hook, event.EventType(), body)
	}
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, hook *Webhook, eventType string, body []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		d.auditFailure(hook, eventType, body, 0, err)
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Norruva-Event", eventType)

	if signature, ok := d.sign(hook.CompanyID, body); ok {
		req.Header.Set("X-Norruva-Signature", signature)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.auditFailure(hook, eventType, body, 0, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		d.auditFailure(hook, eventType, body, resp.StatusCode, fmt.Errorf("endpoint returned status %d", resp.StatusCode))
		return
	}

	d.auditor.Log(audit.ActionWebhookDeliverySuccess, hook.ID,
		fmt.Sprintf("delivered %s to %s, status %d, payload %s", eventType, hook.URL, resp.StatusCode, string(body)), "")
	d.logger.Info("webhook delivered",
		"webhook_id", hook.ID,
		"event_type", eventType,
		"status", resp.StatusCode)
}

// sign computes the HMAC-SHA256 of the raw JSON body with the tenant's
// shared secret. Returns false when the tenant has signing disabled.
func (d *Dispatcher) sign(companyID string, body []byte) (string, bool) {
	tenant, err := d.companies.GetByID(companyID)
	if err != nil {
		d.logger.Warn("webhook signing skipped, tenant not loadable", "company_id", companyID, "error", err)
		return "", false
	}
	if !tenant.Settings.WebhookSigningEnabled || tenant.Settings.WebhookSigningSecret == "" {
		return "", false
	}

	mac := hmac.New(sha256.New, []byte(tenant.Settings.WebhookSigningSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil)), true
}

func (d *Dispatcher) auditFailure(hook *Webhook, eventType string, body []byte, status int, cause error) {
	d.auditor.Log(audit.ActionWebhookDeliveryFailure, hook.ID,
		fmt.Sprintf("delivery of %s to %s failed, status %d, payload %s: %v", eventType, hook.URL, status, string(body), cause), "")
	d.logger.Error("webhook delivery failed",
		"webhook_id", hook.ID,
		"event_type", eventType,
		"status", status,
		"error", cause)
}
