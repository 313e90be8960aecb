package zatca

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ── Environment endpoints ─────────────────────────────────────────────────────

const (
	baseURLSandbox    = "https://gw-fatoora.zatca.gov.sa/e-invoicing/developer-portal"
	baseURLProduction = "https://gw-fatoora.zatca.gov.sa/e-invoicing/core"

	pathClearance = "/invoices/clearance/single"
	pathReporting = "/invoices/reporting/single"
)

// Clearance statuses returned by the authority.
const (
	ClearanceCleared    = "CLEARED"
	ClearanceNotCleared = "NOT_CLEARED"
	ReportingReported   = "REPORTED"
)

// ── Port (interface) ──────────────────────────────────────────────────────────

// ClearanceResult is the authority's answer to a clearance submission.
type ClearanceResult struct {
	Status          string // CLEARED | NOT_CLEARED
	UUID            string
	QRCode          string // Authority-issued QR payload, when present
	ReportingStatus string
	Raw             []byte // Verbatim response body, preserved for audit
}

// ReportResult is the authority's answer to a reporting call.
type ReportResult struct {
	Status  string // REPORTED | NOT_REPORTED
	Message string
	Raw     []byte
}

// ClearanceClient is the outbound port for the tax authority. Exactly one
// concrete environment (sandbox or production) is active per deployment,
// selected once at startup and injected into the orchestrator; tests inject
// a mock.
type ClearanceClient interface {
	// SubmitForClearance sends the signed XML for real-time clearance.
	SubmitForClearance(ctx context.Context, signedXML []byte, invoiceUUID, invoiceHash string) (*ClearanceResult, error)
	// ReportInvoice reports an already-cleared invoice (best-effort follow-up).
	ReportInvoice(ctx context.Context, invoiceUUID, clearanceStatus string) (*ReportResult, error)
}

// ── Error classification ──────────────────────────────────────────────────────

// APIError is a non-2xx answer from the authority. 4xx is a permanent
// rejection carrying the authority's validation payload verbatim; 5xx is
// transient and eligible for retry.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("zatca: authority returned HTTP %d: %s", e.StatusCode, e.Body)
}

// Permanent reports whether the error is a definitive 4xx rejection.
func (e *APIError) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// IsTransient classifies an error from the client: 4xx answers are permanent,
// everything else (5xx, timeouts, transport failures) may be retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if apiErr, ok := err.(*APIError); ok {
		return !apiErr.Permanent()
	}
	return true
}

// ── REST implementation ───────────────────────────────────────────────────────

// Credentials are the CSID binary token and secret used as Basic auth.
type Credentials struct {
	Token  string
	Secret string
}

// Client implements ClearanceClient against one fixed ZATCA environment.
type Client struct {
	baseURL    string
	creds      Credentials
	httpClient *http.Client
}

// NewSandboxClient builds the client for the developer-portal environment.
func NewSandboxClient(creds Credentials, timeout time.Duration) *Client {
	return newClient(baseURLSandbox, creds, timeout)
}

// NewProductionClient builds the client for the production environment.
func NewProductionClient(creds Credentials, timeout time.Duration) *Client {
	return newClient(baseURLProduction, creds, timeout)
}

func newClient(baseURL string, creds Credentials, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		creds:      creds,
		httpClient: &http.Client{Timeout: timeout},
	}
}

var _ ClearanceClient = (*Client)(nil)

// clearanceRequest is the wire format of a clearance/reporting submission.
type clearanceRequest struct {
	InvoiceHash string `json:"invoiceHash"`
	UUID        string `json:"uuid"`
	Invoice     string `json:"invoice"` // signed XML, base64
}

type clearanceResponse struct {
	ClearanceStatus  string `json:"clearanceStatus"`
	ReportingStatus  string `json:"reportingStatus"`
	ClearedInvoice   string `json:"clearedInvoice"`
	QRCode           string `json:"qrCode"`
	UUID             string `json:"uuid"`
	ValidationResult struct {
		Status string `json:"status"`
	} `json:"validationResults"`
}

// SubmitForClearance posts the signed XML to the clearance endpoint.
func (c *Client) SubmitForClearance(ctx context.Context, signedXML []byte, invoiceUUID, invoiceHash string) (*ClearanceResult, error) {
	body := clearanceRequest{
		InvoiceHash: invoiceHash,
		UUID:        invoiceUUID,
		Invoice:     base64.StdEncoding.EncodeToString(signedXML),
	}
	raw, err := c.post(ctx, pathClearance, body, map[string]string{"Clearance-Status": "1"})
	if err != nil {
		return nil, err
	}

	var resp clearanceResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("zatca: decode clearance response: %w", err)
	}
	status := resp.ClearanceStatus
	if status == "" {
		status = ClearanceNotCleared
	}
	uuid := resp.UUID
	if uuid == "" {
		uuid = invoiceUUID
	}
	return &ClearanceResult{
		Status:          status,
		UUID:            uuid,
		QRCode:          resp.QRCode,
		ReportingStatus: resp.ReportingStatus,
		Raw:             raw,
	}, nil
}

// ReportInvoice posts to the reporting endpoint after clearance.
func (c *Client) ReportInvoice(ctx context.Context, invoiceUUID, clearanceStatus string) (*ReportResult, error) {
	body := map[string]string{
		"uuid":            invoiceUUID,
		"clearanceStatus": clearanceStatus,
	}
	raw, err := c.post(ctx, pathReporting, body, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		ReportingStatus string `json:"reportingStatus"`
		Message         string `json:"message"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("zatca: decode reporting response: %w", err)
	}
	return &ReportResult{
		Status:  resp.ReportingStatus,
		Message: resp.Message,
		Raw:     raw,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body any, headers map[string]string) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("zatca: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("zatca: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Version", "V2")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if c.creds.Token != "" {
		req.SetBasicAuth(c.creds.Token, c.creds.Secret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("zatca: request cancelled or timed out: %w", ctx.Err())
		}
		return nil, fmt.Errorf("zatca: http call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // max 1 MB
	if err != nil {
		return nil, fmt.Errorf("zatca: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}
