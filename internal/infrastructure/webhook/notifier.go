// Package webhook delivers fire-and-forget terminal-state notifications.
// Delivery failures are logged and swallowed: they never revert or block an
// already-committed invoice state.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sadeem-tech/fatoora-api/internal/domain/repository"
	"github.com/sadeem-tech/fatoora-api/pkg/logger"
)

// Event is the payload POSTed to a tenant's webhook URL when an invoice
// reaches a terminal state.
type Event struct {
	TenantID      string    `json:"tenant_id"`
	InvoiceNumber string    `json:"invoice_number"`
	Status        string    `json:"status"`
	Mode          string    `json:"mode"`
	Environment   string    `json:"environment"`
	Hash          string    `json:"hash,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Notifier posts events to the tenant's configured webhook URL.
type Notifier struct {
	tenants    repository.TenantRepository
	httpClient *http.Client
	log        *logger.Logger
}

// NewNotifier builds the notifier with a short fixed delivery timeout.
func NewNotifier(tenants repository.TenantRepository, log *logger.Logger) *Notifier {
	return &Notifier{
		tenants:    tenants,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// Notify delivers the event in a detached goroutine. The caller's context is
// not reused: a disconnecting HTTP client must not cancel delivery.
func (n *Notifier) Notify(event Event) {
	go n.deliver(event)
}

func (n *Notifier) deliver(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tenant, err := n.tenants.GetByID(ctx, event.TenantID)
	if err != nil || tenant == nil || tenant.WebhookURL == "" {
		return // no webhook configured, nothing to deliver
	}

	body, err := json.Marshal(event)
	if err != nil {
		n.log.Warn().Err(err).Str("invoice", event.InvoiceNumber).Msg("webhook: marshal event")
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tenant.WebhookURL, bytes.NewReader(body))
	if err != nil {
		n.log.Warn().Err(err).Str("invoice", event.InvoiceNumber).Msg("webhook: build request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.log.Warn().Err(err).Str("invoice", event.InvoiceNumber).Msg("webhook: delivery failed")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		n.log.Warn().Int("status", resp.StatusCode).Str("invoice", event.InvoiceNumber).Msg("webhook: non-2xx answer")
	}
}
