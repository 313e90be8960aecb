package invoicing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sadeem-tech/fatoora-api/internal/domain"
	"github.com/sadeem-tech/fatoora-api/internal/domain/entity"
	"github.com/sadeem-tech/fatoora-api/internal/domain/repository"
	domzatca "github.com/sadeem-tech/fatoora-api/internal/domain/zatca"
	infrazatca "github.com/sadeem-tech/fatoora-api/internal/infrastructure/zatca"
	"github.com/sadeem-tech/fatoora-api/internal/infrastructure/webhook"
	"github.com/sadeem-tech/fatoora-api/pkg/logger"
)

// Config is the orchestrator's slice of the app configuration.
type Config struct {
	Environment string // "sandbox" | "production", fixed per deployment
	MaxXMLBytes int    // signed documents above this size fail the pipeline
	Retry       RetryPolicy
}

// Orchestrator runs the full invoice pipeline:
//
//	validate → persist CREATED → totals → [PHASE_1: TLV QR]
//	                                    → [PHASE_2: XML → sign → clearance → report]
//
// Every run ends with the invoice in a terminal state (CLEARED, REJECTED or
// FAILED) and a complete audit trail. Process returns a non-nil error only for
// pre-state rejections (validation, duplicate, unconfirmed production); once a
// row exists, failures become terminal states on the invoice itself.
type Orchestrator struct {
	invoiceRepo repository.InvoiceRepository
	logRepo     repository.InvoiceLogRepository
	xmlBuilder  *infrazatca.XMLBuilderService
	signer      Signer
	certs       CertificateResolver
	client      infrazatca.ClearanceClient
	qr          QRRenderer
	notifier    Notifier
	cfg         Config
	log         *logger.Logger
}

// NewOrchestrator wires the orchestrator with all its dependencies.
// notifier may be nil when no webhook delivery is configured.
func NewOrchestrator(
	invoiceRepo repository.InvoiceRepository,
	logRepo repository.InvoiceLogRepository,
	xmlBuilder *infrazatca.XMLBuilderService,
	signer Signer,
	certs CertificateResolver,
	client infrazatca.ClearanceClient,
	qr QRRenderer,
	notifier Notifier,
	cfg Config,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		invoiceRepo: invoiceRepo,
		logRepo:     logRepo,
		xmlBuilder:  xmlBuilder,
		signer:      signer,
		certs:       certs,
		client:      client,
		qr:          qr,
		notifier:    notifier,
		cfg:         cfg,
		log:         log,
	}
}

// Environment returns the deployment environment stamped onto every invoice.
func (o *Orchestrator) Environment() string { return o.cfg.Environment }

// Process runs one invoice through the pipeline synchronously.
func (o *Orchestrator) Process(ctx context.Context, tenant entity.TenantContext, req *entity.InvoiceRequest) (*entity.Invoice, error) {
	// ═══════════════════════════════════════════════════════════════════════════
	// 1. Pre-state checks: nothing is persisted until all of these pass
	// ═══════════════════════════════════════════════════════════════════════════
	if err := domzatca.ValidateRequest(req, time.Now().UTC()); err != nil {
		return nil, err
	}
	if req.SellerVAT != tenant.VAT {
		return nil, fmt.Errorf("seller_vat does not match the authenticated tenant: %w", domain.ErrForbidden)
	}
	if o.cfg.Environment == "production" && !req.ConfirmProduction {
		return nil, domain.ErrProductionNotConfirmed
	}

	totals := domzatca.CalculateTotals(req.Items)
	if err := checkDeclaredTotals(req, totals); err != nil {
		return nil, err
	}

	existing, err := o.invoiceRepo.GetByNumber(ctx, tenant, req.InvoiceNumber)
	if err != nil {
		return nil, err
	}
	action := entity.ActionSubmit
	var inv *entity.Invoice
	switch {
	case existing == nil:
		// fresh submission

	case !req.Retry:
		return existing, fmt.Errorf("invoice %s already submitted: %w", req.InvoiceNumber, domain.ErrDuplicateInvoice)

	case existing.Status == entity.StatusFailed:
		action = entity.ActionRetry
		inv = existing

	case entity.IsTerminal(existing.Status):
		// CLEARED and REJECTED are authoritative answers; reprocessing them
		// would fork the fiscal record.
		return existing, fmt.Errorf("invoice %s is %s and cannot be retried: %w", req.InvoiceNumber, existing.Status, domain.ErrConflict)

	default:
		return existing, fmt.Errorf("invoice %s is still being processed: %w", req.InvoiceNumber, domain.ErrDuplicateInvoice)
	}

	// ═══════════════════════════════════════════════════════════════════════════
	// 2. Persist CREATED (or reuse the FAILED row on retry) and open the audit
	// ═══════════════════════════════════════════════════════════════════════════
	previousStatus := ""
	if inv == nil {
		inv = invoiceFromRequest(tenant, req, totals, o.cfg.Environment)
		if err := o.invoiceRepo.Create(ctx, tenant, inv); err != nil {
			// A concurrent submission can win the unique constraint race.
			return nil, err
		}
	} else {
		previousStatus = inv.Status
		inv.ErrorMessage = ""
		refreshFromRequest(inv, req, totals)
	}

	o.appendLog(ctx, tenant, &entity.InvoiceLog{
		InvoiceNumber:  inv.InvoiceNumber,
		Action:         action,
		PreviousStatus: previousStatus,
		Status:         inv.Status,
		RequestPayload: maskedRequestJSON(req),
		SubmittedAt:    time.Now().UTC(),
	})

	// A retried invoice moves directly between terminal states; PROCESSING is
	// only entered on the first pass so the status rank never decreases.
	if action == entity.ActionSubmit {
		o.transition(ctx, tenant, inv, entity.StatusProcessing, "")
	}

	// ═══════════════════════════════════════════════════════════════════════════
	// 3. Mode-specific pipeline
	// ═══════════════════════════════════════════════════════════════════════════
	switch req.Mode {
	case entity.ModePhase1:
		o.processPhase1(ctx, tenant, inv)
	case entity.ModePhase2:
		o.processPhase2(ctx, tenant, inv, req, action)
	}

	o.notifyTerminal(inv)
	return inv, nil
}

// processPhase1 issues the TLV QR locally. No authority round-trip happens.
func (o *Orchestrator) processPhase1(ctx context.Context, tenant entity.TenantContext, inv *entity.Invoice) {
	payload, err := domzatca.QRPayload(inv, "")
	if err != nil {
		o.fail(ctx, tenant, inv, "qr-encode", err)
		return
	}
	inv.QRPayload = payload
	o.renderQR(inv)

	now := time.Now().UTC()
	o.transition(ctx, tenant, inv, entity.StatusCleared, "")
	o.enrichLog(ctx, tenant, inv, &now, "")
	o.log.Info().Str("invoice", inv.InvoiceNumber).Str("tenant", tenant.TenantID).Msg("phase-1 invoice cleared locally")
}

// processPhase2 runs XML generation, signing and the clearance round-trip.
func (o *Orchestrator) processPhase2(ctx context.Context, tenant entity.TenantContext, inv *entity.Invoice, req *entity.InvoiceRequest, action string) {
	// ── 1. Hash chain position ────────────────────────────────────────────
	icv, err := o.invoiceRepo.Count(ctx, tenant)
	if err != nil {
		o.fail(ctx, tenant, inv, "icv", err)
		return
	}
	pih := req.PreviousHash
	if pih == "" {
		if pih, err = o.invoiceRepo.LastHash(ctx, tenant); err != nil {
			o.fail(ctx, tenant, inv, "pih", err)
			return
		}
	}
	if pih == "" {
		pih = domzatca.GenesisPreviousHash()
	}
	inv.PreviousHash = pih

	// ── 2. Build and hash the UBL document ────────────────────────────────
	xmlBytes, err := o.xmlBuilder.Build(&infrazatca.BuildContext{
		Invoice:      inv,
		Items:        req.Items,
		Counter:      icv,
		PreviousHash: pih,
	})
	if err != nil {
		o.fail(ctx, tenant, inv, "xml-build", err)
		return
	}
	inv.Hash = domzatca.InvoiceHash(xmlBytes)

	// ── 3. Resolve tenant material and sign ───────────────────────────────
	cert, err := o.certs.Resolve(tenant, inv.Environment)
	if err != nil {
		if errors.Is(err, domain.ErrTenantIsolation) {
			o.log.Error().Str("tenant", tenant.TenantID).Msg("certificate path escaped the tenant directory")
		}
		o.fail(ctx, tenant, inv, "cert-resolve", err)
		return
	}
	signedXML, signatureB64, err := o.signer.Sign(xmlBytes, cert)
	if err != nil {
		o.fail(ctx, tenant, inv, "xml-sign", err)
		return
	}
	if o.cfg.MaxXMLBytes > 0 && len(signedXML) > o.cfg.MaxXMLBytes {
		o.fail(ctx, tenant, inv, "xml-size", fmt.Errorf("signed document is %d bytes, limit %d", len(signedXML), o.cfg.MaxXMLBytes))
		return
	}
	inv.XMLContent = string(signedXML)

	// ── 4. Clearance with bounded backoff ─────────────────────────────────
	var result *infrazatca.ClearanceResult
	var lastErr error
	attempts, outcome := o.cfg.Retry.Run(ctx, func(attempt int) Outcome {
		res, callErr := o.client.SubmitForClearance(ctx, signedXML, inv.UUID, inv.Hash)
		out := classify(res, callErr)
		entry := &entity.InvoiceLog{
			InvoiceNumber: inv.InvoiceNumber,
			Action:        action,
			Status:        inv.Status,
			Attempt:       attempt,
			SubmittedAt:   time.Now().UTC(),
		}
		if callErr != nil {
			lastErr = callErr
			entry.ErrorMessage = callErr.Error()
		} else {
			result = res
			entry.ResponseRaw = domzatca.MaskJSON(res.Raw)
		}
		o.appendLog(ctx, tenant, entry)
		return out
	})

	// ── 5. Terminal mapping ───────────────────────────────────────────────
	now := time.Now().UTC()
	switch {
	case outcome == OutcomeSuccess:
		inv.ClearanceRaw = string(result.Raw)
		payload, qrErr := domzatca.QRPayload(inv, signatureB64)
		if qrErr != nil {
			// The authority accepted the invoice: a QR encoding problem at
			// this point degrades the response, it cannot un-clear it.
			o.log.Warn().Err(qrErr).Str("invoice", inv.InvoiceNumber).Msg("qr payload encoding failed after clearance")
		} else {
			inv.QRPayload = payload
			o.renderQR(inv)
		}
		o.transition(ctx, tenant, inv, entity.StatusCleared, "")
		o.enrichLog(ctx, tenant, inv, &now, domzatca.MaskJSON(result.Raw))
		o.log.Info().Str("invoice", inv.InvoiceNumber).Int("attempts", attempts).Msg("invoice cleared")
		o.report(ctx, tenant, inv)

	case outcome == OutcomePermanent && result != nil:
		inv.ClearanceRaw = string(result.Raw)
		o.transition(ctx, tenant, inv, entity.StatusRejected, "rejected by the authority")
		o.enrichLog(ctx, tenant, inv, nil, domzatca.MaskJSON(result.Raw))
		o.log.Warn().Str("invoice", inv.InvoiceNumber).Msg("invoice rejected by the authority")

	case outcome == OutcomePermanent:
		o.transition(ctx, tenant, inv, entity.StatusRejected, lastErr.Error())
		o.enrichLog(ctx, tenant, inv, nil, "")
		o.log.Warn().Err(lastErr).Str("invoice", inv.InvoiceNumber).Msg("invoice rejected by the authority")

	default:
		msg := fmt.Sprintf("clearance failed after %d attempts", attempts)
		if lastErr != nil {
			msg = fmt.Sprintf("%s: %s", msg, lastErr.Error())
		}
		o.transition(ctx, tenant, inv, entity.StatusFailed, msg)
		o.enrichLog(ctx, tenant, inv, nil, "")
		o.log.Error().Str("invoice", inv.InvoiceNumber).Int("attempts", attempts).Msg("clearance retries exhausted")
	}
}

// report performs the best-effort reporting follow-up after clearance.
// Failures are audited and logged; they never change the CLEARED state.
func (o *Orchestrator) report(ctx context.Context, tenant entity.TenantContext, inv *entity.Invoice) {
	res, err := o.client.ReportInvoice(ctx, inv.UUID, infrazatca.ClearanceCleared)
	entry := &entity.InvoiceLog{
		InvoiceNumber: inv.InvoiceNumber,
		Action:        entity.ActionReport,
		Status:        inv.Status,
		SubmittedAt:   time.Now().UTC(),
	}
	if err != nil {
		entry.ErrorMessage = err.Error()
		o.log.Warn().Err(err).Str("invoice", inv.InvoiceNumber).Msg("reporting follow-up failed")
	} else {
		entry.ResponseRaw = domzatca.MaskJSON(res.Raw)
		inv.ReportingRaw = string(res.Raw)
		wctx, cancel := persistContext(ctx)
		if upErr := o.invoiceRepo.Update(wctx, tenant, inv); upErr != nil {
			o.log.Warn().Err(upErr).Str("invoice", inv.InvoiceNumber).Msg("could not persist reporting response")
		}
		cancel()
	}
	o.appendLog(ctx, tenant, entry)
}

// ── pipeline helpers ──────────────────────────────────────────────────────────

// persistTimeout bounds writes that run detached from the caller's context.
const persistTimeout = 10 * time.Second

// persistContext detaches a write from the caller's cancellation. Once an
// invoice row exists, a disconnecting caller must not be able to strand it
// in a non-terminal state.
func persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
}

// transition moves the invoice to the target status and persists it. The
// monotonicity check is skipped for terminal→terminal retry moves, which are
// rank-preserving.
func (o *Orchestrator) transition(ctx context.Context, tenant entity.TenantContext, inv *entity.Invoice, to, errMsg string) {
	if !entity.CanTransition(inv.Status, to) && !(entity.IsTerminal(inv.Status) && entity.IsTerminal(to)) {
		o.log.Error().Str("invoice", inv.InvoiceNumber).Str("from", inv.Status).Str("to", to).Msg("illegal state transition blocked")
		return
	}
	inv.Status = to
	inv.ErrorMessage = errMsg
	wctx, cancel := persistContext(ctx)
	defer cancel()
	if err := o.invoiceRepo.Update(wctx, tenant, inv); err != nil {
		o.log.Error().Err(err).Str("invoice", inv.InvoiceNumber).Str("status", to).Msg("could not persist status")
	}
}

// fail marks the invoice FAILED with the step and cause.
func (o *Orchestrator) fail(ctx context.Context, tenant entity.TenantContext, inv *entity.Invoice, step string, cause error) {
	msg := fmt.Sprintf("%s: %s", step, cause.Error())
	o.transition(ctx, tenant, inv, entity.StatusFailed, msg)
	o.enrichLog(ctx, tenant, inv, nil, "")
	o.log.Error().Err(cause).Str("invoice", inv.InvoiceNumber).Str("step", step).Msg("invoice processing failed")
}

func (o *Orchestrator) renderQR(inv *entity.Invoice) {
	img, err := o.qr.Render(inv.QRPayload)
	if err != nil {
		o.log.Warn().Err(err).Str("invoice", inv.InvoiceNumber).Msg("qr image rendering degraded")
		return
	}
	inv.QRImage = img
}

func (o *Orchestrator) appendLog(ctx context.Context, tenant entity.TenantContext, entry *entity.InvoiceLog) {
	wctx, cancel := persistContext(ctx)
	defer cancel()
	if err := o.logRepo.Append(wctx, tenant, entry); err != nil {
		o.log.Error().Err(err).Str("invoice", entry.InvoiceNumber).Msg("could not append audit entry")
	}
}

// enrichLog attaches the final artifacts to the newest audit entry.
func (o *Orchestrator) enrichLog(ctx context.Context, tenant entity.TenantContext, inv *entity.Invoice, clearedAt *time.Time, maskedResponse string) {
	entry := &entity.InvoiceLog{
		Status:       inv.Status,
		XMLContent:   maskXML(inv.XMLContent, o.cfg.MaxXMLBytes, inv.SellerVAT, inv.BuyerVAT),
		ResponseRaw:  maskedResponse,
		ErrorMessage: inv.ErrorMessage,
		ClearedAt:    clearedAt,
	}
	wctx, cancel := persistContext(ctx)
	defer cancel()
	if err := o.logRepo.EnrichLatest(wctx, tenant, inv.InvoiceNumber, entry); err != nil {
		o.log.Error().Err(err).Str("invoice", inv.InvoiceNumber).Msg("could not enrich audit entry")
	}
}

func (o *Orchestrator) notifyTerminal(inv *entity.Invoice) {
	if o.notifier == nil || !entity.IsTerminal(inv.Status) {
		return
	}
	o.notifier.Notify(webhook.Event{
		TenantID:      inv.TenantID,
		InvoiceNumber: inv.InvoiceNumber,
		Status:        inv.Status,
		Mode:          inv.Mode,
		Environment:   inv.Environment,
		Hash:          inv.Hash,
		OccurredAt:    time.Now().UTC(),
	})
}

// ── pure helpers ──────────────────────────────────────────────────────────────

// classify maps one clearance call to a retry outcome.
func classify(res *infrazatca.ClearanceResult, err error) Outcome {
	if err == nil {
		if res.Status == infrazatca.ClearanceCleared {
			return OutcomeSuccess
		}
		return OutcomePermanent
	}
	if infrazatca.IsTransient(err) {
		return OutcomeTransient
	}
	return OutcomePermanent
}

// checkDeclaredTotals rejects requests whose declared totals disagree with the
// computed ones. Zero declared totals are treated as absent; each of the three
// advisory fields is checked independently.
func checkDeclaredTotals(req *entity.InvoiceRequest, totals domzatca.InvoiceTotals) error {
	checks := []struct {
		field    string
		declared decimal.Decimal
		computed decimal.Decimal
	}{
		{"total_excl_vat", req.DeclaredExclVAT, totals.TotalExclVAT},
		{"total_vat", req.DeclaredVAT, totals.TotalVAT},
		{"total_incl_vat", req.DeclaredTotal, totals.TotalInclVAT},
	}
	for _, c := range checks {
		if c.declared.IsZero() {
			continue
		}
		if !c.declared.Round(2).Equal(c.computed.Round(2)) {
			return fmt.Errorf("declared %s %s does not match computed %s: %w",
				c.field, c.declared.StringFixed(2), c.computed.StringFixed(2), domain.ErrInvalidInput)
		}
	}
	return nil
}

func invoiceFromRequest(tenant entity.TenantContext, req *entity.InvoiceRequest, totals domzatca.InvoiceTotals, environment string) *entity.Invoice {
	docUUID := req.UUID
	if docUUID == "" && req.Mode == entity.ModePhase2 {
		docUUID = uuid.New().String()
	}
	return &entity.Invoice{
		TenantID:      tenant.TenantID,
		InvoiceNumber: req.InvoiceNumber,
		UUID:          docUUID,
		Mode:          req.Mode,
		InvoiceType:   req.InvoiceType,
		Environment:   environment,
		InvoiceDate:   req.InvoiceDate,
		SellerName:    req.SellerName,
		SellerVAT:     req.SellerVAT,
		BuyerName:     req.BuyerName,
		BuyerVAT:      req.BuyerVAT,
		TotalExclVAT:  totals.TotalExclVAT,
		TotalVAT:      totals.TotalVAT,
		TotalInclVAT:  totals.TotalInclVAT,
		Status:        entity.StatusCreated,
	}
}

// refreshFromRequest re-stamps the mutable fields on a retried invoice.
func refreshFromRequest(inv *entity.Invoice, req *entity.InvoiceRequest, totals domzatca.InvoiceTotals) {
	inv.InvoiceDate = req.InvoiceDate
	if req.InvoiceType != "" {
		inv.InvoiceType = req.InvoiceType
	}
	inv.SellerName = req.SellerName
	inv.BuyerName = req.BuyerName
	inv.BuyerVAT = req.BuyerVAT
	inv.TotalExclVAT = totals.TotalExclVAT
	inv.TotalVAT = totals.TotalVAT
	inv.TotalInclVAT = totals.TotalInclVAT
	if req.UUID != "" {
		inv.UUID = req.UUID
	}
}

func maskedRequestJSON(req *entity.InvoiceRequest) string {
	raw, err := json.Marshal(req)
	if err != nil {
		return ""
	}
	return domzatca.MaskJSON(raw)
}

// maskXML redacts registration numbers from an XML document before it enters
// the audit trail, and caps its size.
func maskXML(xmlContent string, maxBytes int, vats ...string) string {
	if xmlContent == "" {
		return ""
	}
	masked := xmlContent
	for _, vat := range vats {
		if vat != "" {
			masked = strings.ReplaceAll(masked, vat, domzatca.MaskValue(vat))
		}
	}
	if maxBytes > 0 && len(masked) > maxBytes {
		masked = masked[:maxBytes]
	}
	return masked
}
