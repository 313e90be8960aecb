package invoicing_test

import (
	"context"
	"crypto/tls"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadeem-tech/fatoora-api/internal/application/invoicing"
	"github.com/sadeem-tech/fatoora-api/internal/domain"
	"github.com/sadeem-tech/fatoora-api/internal/domain/entity"
	domzatca "github.com/sadeem-tech/fatoora-api/internal/domain/zatca"
	"github.com/sadeem-tech/fatoora-api/internal/infrastructure/webhook"
	infrazatca "github.com/sadeem-tech/fatoora-api/internal/infrastructure/zatca"
	"github.com/sadeem-tech/fatoora-api/pkg/logger"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// In-memory fakes
// ──────────────────────────────────────────────────────────────────────────────

type fakeInvoiceRepo struct {
	rows map[string]*entity.Invoice // key: tenantID/invoiceNumber
}

func newFakeInvoiceRepo() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{rows: map[string]*entity.Invoice{}}
}

func key(tenant entity.TenantContext, number string) string {
	return tenant.TenantID + "/" + number
}

func (r *fakeInvoiceRepo) Create(ctx context.Context, tenant entity.TenantContext, inv *entity.Invoice) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	k := key(tenant, inv.InvoiceNumber)
	if _, exists := r.rows[k]; exists {
		return domain.ErrDuplicateInvoice
	}
	if inv.ID == "" {
		inv.ID = fmt.Sprintf("id-%d", len(r.rows)+1)
	}
	inv.TenantID = tenant.TenantID
	row := *inv
	r.rows[k] = &row
	return nil
}

func (r *fakeInvoiceRepo) Update(ctx context.Context, tenant entity.TenantContext, inv *entity.Invoice) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	k := key(tenant, inv.InvoiceNumber)
	if _, exists := r.rows[k]; !exists {
		return domain.ErrNotFound
	}
	row := *inv
	r.rows[k] = &row
	return nil
}

func (r *fakeInvoiceRepo) GetByNumber(_ context.Context, tenant entity.TenantContext, number string) (*entity.Invoice, error) {
	if inv, ok := r.rows[key(tenant, number)]; ok {
		row := *inv
		return &row, nil
	}
	return nil, nil
}

func (r *fakeInvoiceRepo) GetStatus(ctx context.Context, tenant entity.TenantContext, number string) (*entity.Invoice, error) {
	return r.GetByNumber(ctx, tenant, number)
}

func (r *fakeInvoiceRepo) LastHash(_ context.Context, tenant entity.TenantContext) (string, error) {
	var last *entity.Invoice
	for _, inv := range r.rows {
		if inv.TenantID == tenant.TenantID && inv.Status == entity.StatusCleared && inv.Hash != "" {
			if last == nil || inv.UpdatedAt.After(last.UpdatedAt) {
				last = inv
			}
		}
	}
	if last == nil {
		return "", nil
	}
	return last.Hash, nil
}

func (r *fakeInvoiceRepo) Count(_ context.Context, tenant entity.TenantContext) (int64, error) {
	var n int64
	for _, inv := range r.rows {
		if inv.TenantID == tenant.TenantID {
			n++
		}
	}
	return n, nil
}

type fakeLogRepo struct {
	entries []*entity.InvoiceLog
}

func (r *fakeLogRepo) Append(ctx context.Context, tenant entity.TenantContext, log *entity.InvoiceLog) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("insert invoice log: %w", err)
	}
	log.TenantID = tenant.TenantID
	row := *log
	r.entries = append(r.entries, &row)
	return nil
}

func (r *fakeLogRepo) EnrichLatest(ctx context.Context, tenant entity.TenantContext, number string, log *entity.InvoiceLog) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("enrich invoice log: %w", err)
	}
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if e.TenantID == tenant.TenantID && e.InvoiceNumber == number {
			if log.Status != "" {
				e.Status = log.Status
			}
			if log.XMLContent != "" {
				e.XMLContent = log.XMLContent
			}
			if log.ResponseRaw != "" {
				e.ResponseRaw = log.ResponseRaw
			}
			if log.ErrorMessage != "" {
				e.ErrorMessage = log.ErrorMessage
			}
			if log.ClearedAt != nil {
				e.ClearedAt = log.ClearedAt
			}
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *fakeLogRepo) ListByInvoice(_ context.Context, tenant entity.TenantContext, number string) ([]*entity.InvoiceLog, error) {
	var out []*entity.InvoiceLog
	for _, e := range r.entries {
		if e.TenantID == tenant.TenantID && e.InvoiceNumber == number {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeSigner struct {
	err error
}

func (s *fakeSigner) Sign(xmlBytes []byte, _ tls.Certificate) ([]byte, string, error) {
	if s.err != nil {
		return nil, "", s.err
	}
	return append(xmlBytes, []byte("<!--signed-->")...), "c2lnbmF0dXJl", nil
}

type fakeResolver struct {
	err error
}

func (r *fakeResolver) Resolve(entity.TenantContext, string) (tls.Certificate, error) {
	if r.err != nil {
		return tls.Certificate{}, r.err
	}
	return tls.Certificate{}, nil
}

// fakeClient answers SubmitForClearance from a scripted queue.
type fakeClient struct {
	submits []submitAnswer
	calls   int
	reports int
	repErr  error
}

type submitAnswer struct {
	res *infrazatca.ClearanceResult
	err error
}

func (c *fakeClient) SubmitForClearance(context.Context, []byte, string, string) (*infrazatca.ClearanceResult, error) {
	if c.calls >= len(c.submits) {
		return nil, fmt.Errorf("unexpected clearance call %d", c.calls+1)
	}
	a := c.submits[c.calls]
	c.calls++
	return a.res, a.err
}

func (c *fakeClient) ReportInvoice(context.Context, string, string) (*infrazatca.ReportResult, error) {
	c.reports++
	if c.repErr != nil {
		return nil, c.repErr
	}
	return &infrazatca.ReportResult{Status: infrazatca.ReportingReported, Raw: []byte(`{"ok":true}`)}, nil
}

type fakeQR struct{ err error }

func (q *fakeQR) Render(string) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	return "cG5nLWJ5dGVz", nil
}

type fakeNotifier struct {
	events []webhook.Event
}

func (n *fakeNotifier) Notify(e webhook.Event) { n.events = append(n.events, e) }

// ──────────────────────────────────────────────────────────────────────────────
// Fixture
// ──────────────────────────────────────────────────────────────────────────────

var testTenant = entity.TenantContext{TenantID: "tenant-1", VAT: "310122393500003"}

type fixture struct {
	orch     *invoicing.Orchestrator
	invoices *fakeInvoiceRepo
	logs     *fakeLogRepo
	client   *fakeClient
	notifier *fakeNotifier
	signer   *fakeSigner
	resolver *fakeResolver
}

func newFixture(client *fakeClient) *fixture {
	f := &fixture{
		invoices: newFakeInvoiceRepo(),
		logs:     &fakeLogRepo{},
		client:   client,
		notifier: &fakeNotifier{},
		signer:   &fakeSigner{},
		resolver: &fakeResolver{},
	}
	f.orch = invoicing.NewOrchestrator(
		f.invoices, f.logs,
		infrazatca.NewXMLBuilderService(),
		f.signer, f.resolver, f.client, &fakeQR{}, f.notifier,
		invoicing.Config{
			Environment: "sandbox",
			MaxXMLBytes: 1 << 20,
			Retry:       invoicing.RetryPolicy{MaxRetries: 2, InitialDelay: time.Microsecond},
		},
		logger.New(logger.Config{Env: "development", Level: "error"}),
	)
	return f
}

func phase1Request(number string) *entity.InvoiceRequest {
	return &entity.InvoiceRequest{
		Mode:          entity.ModePhase1,
		Environment:   "sandbox",
		InvoiceNumber: number,
		InvoiceDate:   time.Now().UTC().Add(-time.Hour),
		SellerName:    "Qoyod Co.",
		SellerVAT:     testTenant.VAT,
		Items: []entity.LineItem{
			{Name: "Consulting", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(100), TaxRate: decimal.NewFromInt(15)},
		},
	}
}

func phase2Request(number string) *entity.InvoiceRequest {
	req := phase1Request(number)
	req.Mode = entity.ModePhase2
	req.UUID = "8e6e76cb-1a44-46fd-9a41-1a2db1a483cd"
	req.InvoiceType = "388"
	return req
}

func clearedAnswer() submitAnswer {
	return submitAnswer{res: &infrazatca.ClearanceResult{
		Status: infrazatca.ClearanceCleared,
		UUID:   "8e6e76cb-1a44-46fd-9a41-1a2db1a483cd",
		Raw:    []byte(`{"clearanceStatus":"CLEARED"}`),
	}}
}

func serverError() submitAnswer {
	return submitAnswer{err: &infrazatca.APIError{StatusCode: 500, Body: "boom"}}
}

// ──────────────────────────────────────────────────────────────────────────────
// Phase-1
// ──────────────────────────────────────────────────────────────────────────────

// QR-only invoices clear locally with no authority calls.
func TestProcess_Phase1Cleared(t *testing.T) {
	f := newFixture(&fakeClient{})

	inv, err := f.orch.Process(context.Background(), testTenant, phase1Request("INV-001"))
	require.NoError(t, err)

	assert.Equal(t, entity.StatusCleared, inv.Status)
	assert.NotEmpty(t, inv.QRPayload)
	assert.NotEmpty(t, inv.QRImage)
	assert.Empty(t, inv.XMLContent, "phase-1 never builds XML")
	assert.Equal(t, 0, f.client.calls, "no clearance round-trip in phase-1")
	assert.Equal(t, "230.00", inv.TotalInclVAT.StringFixed(2))

	// Terminal state is persisted and notified.
	stored := f.invoices.rows[key(testTenant, "INV-001")]
	require.NotNil(t, stored)
	assert.Equal(t, entity.StatusCleared, stored.Status)
	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, entity.StatusCleared, f.notifier.events[0].Status)
}

// QR image rendering failure degrades the response, it does not fail the invoice.
func TestProcess_Phase1QRRenderDegrades(t *testing.T) {
	f := newFixture(&fakeClient{})
	f.orch = invoicing.NewOrchestrator(
		f.invoices, f.logs, infrazatca.NewXMLBuilderService(),
		f.signer, f.resolver, f.client, &fakeQR{err: fmt.Errorf("png encoder broken")}, f.notifier,
		invoicing.Config{Environment: "sandbox", Retry: invoicing.RetryPolicy{MaxRetries: 0, InitialDelay: time.Microsecond}},
		logger.New(logger.Config{Env: "development", Level: "error"}),
	)

	inv, err := f.orch.Process(context.Background(), testTenant, phase1Request("INV-001"))
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCleared, inv.Status)
	assert.NotEmpty(t, inv.QRPayload, "the payload is still issued")
	assert.Empty(t, inv.QRImage)
}

// ──────────────────────────────────────────────────────────────────────────────
// Phase-2 clearance
// ──────────────────────────────────────────────────────────────────────────────

// Happy path: one call, CLEARED, reporting follow-up fired.
func TestProcess_Phase2Cleared(t *testing.T) {
	f := newFixture(&fakeClient{submits: []submitAnswer{clearedAnswer()}})

	inv, err := f.orch.Process(context.Background(), testTenant, phase2Request("INV-100"))
	require.NoError(t, err)

	assert.Equal(t, entity.StatusCleared, inv.Status)
	assert.NotEmpty(t, inv.Hash)
	assert.Contains(t, inv.XMLContent, "signed", "the signed document is persisted")
	assert.NotEmpty(t, inv.QRPayload)
	assert.Equal(t, domzatca.GenesisPreviousHash(), inv.PreviousHash, "first invoice chains to the genesis hash")
	assert.Equal(t, 1, f.client.reports, "reporting follow-up is best-effort but attempted")
	assert.NotEmpty(t, inv.ReportingRaw)
}

// Two 5xx answers then success: CLEARED after 3 audited attempts.
func TestProcess_Phase2TransientRetries(t *testing.T) {
	f := newFixture(&fakeClient{submits: []submitAnswer{serverError(), serverError(), clearedAnswer()}})

	inv, err := f.orch.Process(context.Background(), testTenant, phase2Request("INV-100"))
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCleared, inv.Status)
	assert.Equal(t, 3, f.client.calls)

	logs, _ := f.logs.ListByInvoice(context.Background(), testTenant, "INV-100")
	var attempts []int
	for _, l := range logs {
		if l.Attempt > 0 {
			attempts = append(attempts, l.Attempt)
		}
	}
	assert.Equal(t, []int{1, 2, 3}, attempts, "each clearance attempt is audited")
}

// Retries exhausted: FAILED, never REJECTED.
func TestProcess_Phase2RetriesExhausted(t *testing.T) {
	f := newFixture(&fakeClient{submits: []submitAnswer{serverError(), serverError(), serverError()}})

	inv, err := f.orch.Process(context.Background(), testTenant, phase2Request("INV-100"))
	require.NoError(t, err, "post-creation failures land on the invoice, not the error")
	assert.Equal(t, entity.StatusFailed, inv.Status)
	assert.Contains(t, inv.ErrorMessage, "3 attempts")
	assert.Equal(t, 3, f.client.calls, "1 initial + 2 retries")
	assert.Equal(t, 0, f.client.reports, "nothing to report")
}

// A 4xx rejection is permanent: one call, REJECTED, authority payload preserved.
func TestProcess_Phase2Rejected(t *testing.T) {
	f := newFixture(&fakeClient{submits: []submitAnswer{
		{res: &infrazatca.ClearanceResult{Status: infrazatca.ClearanceNotCleared, Raw: []byte(`{"clearanceStatus":"NOT_CLEARED","errors":["bad total"]}`)}},
	}})

	inv, err := f.orch.Process(context.Background(), testTenant, phase2Request("INV-100"))
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRejected, inv.Status)
	assert.Equal(t, 1, f.client.calls, "permanent rejections are not retried")
	assert.Contains(t, inv.ClearanceRaw, "bad total")
}

// Missing signing material fails the invoice without reaching the authority.
func TestProcess_Phase2SigningNotConfigured(t *testing.T) {
	f := newFixture(&fakeClient{})
	f.resolver.err = fmt.Errorf("certs: %w", domain.ErrSigningNotConfigured)

	inv, err := f.orch.Process(context.Background(), testTenant, phase2Request("INV-100"))
	require.NoError(t, err)
	assert.Equal(t, entity.StatusFailed, inv.Status)
	assert.Contains(t, inv.ErrorMessage, "cert-resolve")
	assert.Equal(t, 0, f.client.calls)
}

// A failed reporting follow-up never un-clears the invoice.
func TestProcess_Phase2ReportBestEffort(t *testing.T) {
	f := newFixture(&fakeClient{submits: []submitAnswer{clearedAnswer()}, repErr: fmt.Errorf("reporting down")})

	inv, err := f.orch.Process(context.Background(), testTenant, phase2Request("INV-100"))
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCleared, inv.Status)
	assert.Equal(t, 1, f.client.reports)

	logs, _ := f.logs.ListByInvoice(context.Background(), testTenant, "INV-100")
	var reportEntry *entity.InvoiceLog
	for _, l := range logs {
		if l.Action == entity.ActionReport {
			reportEntry = l
		}
	}
	require.NotNil(t, reportEntry, "the failed follow-up is audited")
	assert.Contains(t, reportEntry.ErrorMessage, "reporting down")
}

// disconnectingClient cancels the caller's context mid-clearance, the way a
// dropped HTTP connection does, then reports a transport failure.
type disconnectingClient struct {
	fakeClient
	cancel context.CancelFunc
}

func (c *disconnectingClient) SubmitForClearance(context.Context, []byte, string, string) (*infrazatca.ClearanceResult, error) {
	c.calls++
	c.cancel()
	return nil, &infrazatca.APIError{StatusCode: 500, Body: "connection reset"}
}

// A caller disconnect mid-clearance must not strand the row in PROCESSING:
// terminal state and audit writes run detached from the request context.
func TestProcess_CallerDisconnectStillLandsTerminal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(&fakeClient{})
	client := &disconnectingClient{cancel: cancel}
	f.orch = invoicing.NewOrchestrator(
		f.invoices, f.logs, infrazatca.NewXMLBuilderService(),
		f.signer, f.resolver, client, &fakeQR{}, f.notifier,
		invoicing.Config{
			Environment: "sandbox",
			MaxXMLBytes: 1 << 20,
			Retry:       invoicing.RetryPolicy{MaxRetries: 2, InitialDelay: time.Microsecond},
		},
		logger.New(logger.Config{Env: "development", Level: "error"}),
	)

	inv, err := f.orch.Process(ctx, testTenant, phase2Request("INV-100"))
	require.NoError(t, err)
	assert.Equal(t, entity.StatusFailed, inv.Status)

	stored := f.invoices.rows[key(testTenant, "INV-100")]
	require.NotNil(t, stored)
	assert.Equal(t, entity.StatusFailed, stored.Status, "the stored row reaches the same terminal state")
	assert.NotEmpty(t, f.logs.entries, "the audit trail survives the disconnect")
	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, entity.StatusFailed, f.notifier.events[0].Status)
}

// ──────────────────────────────────────────────────────────────────────────────
// Idempotency and retry semantics
// ──────────────────────────────────────────────────────────────────────────────

// Same invoice number again without the retry flag: duplicate.
func TestProcess_Duplicate(t *testing.T) {
	f := newFixture(&fakeClient{})

	_, err := f.orch.Process(context.Background(), testTenant, phase1Request("INV-001"))
	require.NoError(t, err)

	existing, err := f.orch.Process(context.Background(), testTenant, phase1Request("INV-001"))
	assert.ErrorIs(t, err, domain.ErrDuplicateInvoice)
	require.NotNil(t, existing, "the stored record is returned alongside the error")
	assert.Equal(t, entity.StatusCleared, existing.Status)
}

// The same invoice number under another tenant is a distinct record.
func TestProcess_TenantScopedIdempotency(t *testing.T) {
	f := newFixture(&fakeClient{})
	otherTenant := entity.TenantContext{TenantID: "tenant-2", VAT: "311111111100003"}

	_, err := f.orch.Process(context.Background(), testTenant, phase1Request("INV-001"))
	require.NoError(t, err)

	req := phase1Request("INV-001")
	req.SellerVAT = otherTenant.VAT
	_, err = f.orch.Process(context.Background(), otherTenant, req)
	assert.NoError(t, err, "tenants do not share the invoice number space")
}

// Retry is allowed only from FAILED and produces a RETRY audit action.
func TestProcess_RetryFromFailed(t *testing.T) {
	f := newFixture(&fakeClient{submits: []submitAnswer{
		serverError(), serverError(), serverError(), // first pass: exhausted
		clearedAnswer(), // retry pass
	}})

	inv, err := f.orch.Process(context.Background(), testTenant, phase2Request("INV-100"))
	require.NoError(t, err)
	require.Equal(t, entity.StatusFailed, inv.Status)

	retryReq := phase2Request("INV-100")
	retryReq.Retry = true
	inv, err = f.orch.Process(context.Background(), testTenant, retryReq)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCleared, inv.Status)

	logs, _ := f.logs.ListByInvoice(context.Background(), testTenant, "INV-100")
	var actions []string
	for _, l := range logs {
		actions = append(actions, l.Action)
	}
	assert.Contains(t, actions, entity.ActionRetry)
}

// CLEARED is authoritative: retrying it is a conflict.
func TestProcess_RetryClearedIsConflict(t *testing.T) {
	f := newFixture(&fakeClient{})

	_, err := f.orch.Process(context.Background(), testTenant, phase1Request("INV-001"))
	require.NoError(t, err)

	req := phase1Request("INV-001")
	req.Retry = true
	_, err = f.orch.Process(context.Background(), testTenant, req)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

// ──────────────────────────────────────────────────────────────────────────────
// Pre-state rejections
// ──────────────────────────────────────────────────────────────────────────────

// Validation failures leave no rows and no audit entries behind.
func TestProcess_ValidationLeavesNoState(t *testing.T) {
	f := newFixture(&fakeClient{})
	req := phase2Request("INV-100")
	req.UUID = ""

	_, err := f.orch.Process(context.Background(), testTenant, req)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, f.invoices.rows)
	assert.Empty(t, f.logs.entries)
}

// The seller must be the authenticated tenant.
func TestProcess_SellerVATMismatch(t *testing.T) {
	f := newFixture(&fakeClient{})
	req := phase1Request("INV-001")
	req.SellerVAT = "399999999900003"

	_, err := f.orch.Process(context.Background(), testTenant, req)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Empty(t, f.invoices.rows)
}

// Production submissions require the explicit confirmation flag.
func TestProcess_ProductionNotConfirmed(t *testing.T) {
	f := newFixture(&fakeClient{})
	f.orch = invoicing.NewOrchestrator(
		f.invoices, f.logs, infrazatca.NewXMLBuilderService(),
		f.signer, f.resolver, f.client, &fakeQR{}, f.notifier,
		invoicing.Config{Environment: "production", Retry: invoicing.RetryPolicy{MaxRetries: 0, InitialDelay: time.Microsecond}},
		logger.New(logger.Config{Env: "development", Level: "error"}),
	)

	_, err := f.orch.Process(context.Background(), testTenant, phase1Request("INV-001"))
	assert.ErrorIs(t, err, domain.ErrProductionNotConfirmed)

	req := phase1Request("INV-001")
	req.ConfirmProduction = true
	inv, err := f.orch.Process(context.Background(), testTenant, req)
	require.NoError(t, err)
	assert.Equal(t, "production", inv.Environment)
}

// Each declared total, when present, must match its computed counterpart.
// The fixture items compute to 200.00 excl, 30.00 VAT, 230.00 incl.
func TestProcess_DeclaredTotalsMismatch(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*entity.InvoiceRequest)
	}{
		{"incl_vat", func(r *entity.InvoiceRequest) { r.DeclaredTotal = decimal.NewFromInt(999) }},
		{"excl_vat", func(r *entity.InvoiceRequest) { r.DeclaredExclVAT = decimal.NewFromInt(150) }},
		{"vat", func(r *entity.InvoiceRequest) { r.DeclaredVAT = decimal.NewFromInt(7) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(&fakeClient{})
			req := phase1Request("INV-001")
			tc.mutate(req)

			_, err := f.orch.Process(context.Background(), testTenant, req)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Empty(t, f.invoices.rows)
		})
	}
}

// Matching declared totals pass through.
func TestProcess_DeclaredTotalsMatch(t *testing.T) {
	f := newFixture(&fakeClient{})
	req := phase1Request("INV-001")
	req.DeclaredExclVAT = decimal.NewFromInt(200)
	req.DeclaredVAT = decimal.NewFromInt(30)
	req.DeclaredTotal = decimal.NewFromInt(230)

	inv, err := f.orch.Process(context.Background(), testTenant, req)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCleared, inv.Status)
}

// ──────────────────────────────────────────────────────────────────────────────
// Audit masking
// ──────────────────────────────────────────────────────────────────────────────

// The full seller VAT never reaches the audit trail.
func TestProcess_AuditMasksVAT(t *testing.T) {
	f := newFixture(&fakeClient{submits: []submitAnswer{clearedAnswer()}})

	_, err := f.orch.Process(context.Background(), testTenant, phase2Request("INV-100"))
	require.NoError(t, err)

	logs, _ := f.logs.ListByInvoice(context.Background(), testTenant, "INV-100")
	require.NotEmpty(t, logs)
	for _, l := range logs {
		assert.NotContains(t, l.RequestPayload, testTenant.VAT, "request payload must be masked")
		assert.NotContains(t, l.XMLContent, testTenant.VAT, "audited XML must be masked")
	}
}

// The hash chain: the second invoice's PIH is the first one's hash.
func TestProcess_HashChain(t *testing.T) {
	f := newFixture(&fakeClient{submits: []submitAnswer{clearedAnswer(), clearedAnswer()}})

	first, err := f.orch.Process(context.Background(), testTenant, phase2Request("INV-100"))
	require.NoError(t, err)
	require.Equal(t, entity.StatusCleared, first.Status)

	second, err := f.orch.Process(context.Background(), testTenant, phase2Request("INV-101"))
	require.NoError(t, err)
	assert.Equal(t, first.Hash, second.PreviousHash, "PIH chains to the previous cleared hash")
	assert.NotEqual(t, first.Hash, second.Hash)
}
