package zatca

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(srvURL string) *Client {
	return newClient(srvURL, Credentials{Token: "csid-token", Secret: "csid-secret"}, 5*time.Second)
}

func TestSubmitForClearance_Cleared(t *testing.T) {
	var captured struct {
		path    string
		headers http.Header
		body    clearanceRequest
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		captured.headers = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured.body))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"clearanceStatus":"CLEARED","uuid":"doc-uuid","qrCode":"QVFJ","reportingStatus":"REPORTED"}`))
	}))
	defer srv.Close()

	res, err := testClient(srv.URL).SubmitForClearance(context.Background(), []byte("<Invoice/>"), "doc-uuid", "abc123")
	require.NoError(t, err)

	assert.Equal(t, ClearanceCleared, res.Status)
	assert.Equal(t, "doc-uuid", res.UUID)
	assert.Equal(t, "QVFJ", res.QRCode)
	assert.Contains(t, string(res.Raw), "CLEARED", "the verbatim body is preserved for audit")

	// Wire format and headers.
	assert.Equal(t, "/invoices/clearance/single", captured.path)
	assert.Equal(t, "1", captured.headers.Get("Clearance-Status"))
	assert.Equal(t, "V2", captured.headers.Get("Accept-Version"))
	assert.Equal(t, "abc123", captured.body.InvoiceHash)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("<Invoice/>")), captured.body.Invoice)

	user, pass, ok := (&http.Request{Header: captured.headers}).BasicAuth()
	require.True(t, ok, "CSID credentials go out as Basic auth")
	assert.Equal(t, "csid-token", user)
	assert.Equal(t, "csid-secret", pass)
}

// An answer without a clearanceStatus field defaults to NOT_CLEARED.
func TestSubmitForClearance_MissingStatusDefaultsNotCleared(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"uuid":"doc-uuid"}`))
	}))
	defer srv.Close()

	res, err := testClient(srv.URL).SubmitForClearance(context.Background(), []byte("<Invoice/>"), "doc-uuid", "h")
	require.NoError(t, err)
	assert.Equal(t, ClearanceNotCleared, res.Status)
}

// 4xx answers are permanent rejections carrying the validation payload.
func TestSubmitForClearance_4xxPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":["invalid invoice hash"]}`))
	}))
	defer srv.Close()

	res, err := testClient(srv.URL).SubmitForClearance(context.Background(), []byte("<Invoice/>"), "doc-uuid", "h")
	require.Error(t, err)
	assert.Nil(t, res)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "invalid invoice hash")
	assert.True(t, apiErr.Permanent())
	assert.False(t, IsTransient(err))
}

// 5xx answers are transient and eligible for retry.
func TestSubmitForClearance_5xxTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"message":"maintenance window"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).SubmitForClearance(context.Background(), []byte("<Invoice/>"), "doc-uuid", "h")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.False(t, apiErr.Permanent())
	assert.True(t, IsTransient(err))
}

func TestSubmitForClearance_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`this is not json`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).SubmitForClearance(context.Background(), []byte("<Invoice/>"), "doc-uuid", "h")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode clearance response")
	assert.True(t, IsTransient(err), "non-HTTP failures stay retryable")
}

func TestSubmitForClearance_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := testClient(srv.URL).SubmitForClearance(ctx, []byte("<Invoice/>"), "doc-uuid", "h")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReportInvoice(t *testing.T) {
	var captured map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/invoices/reporting/single", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{"reportingStatus":"REPORTED","message":"ok"}`))
	}))
	defer srv.Close()

	res, err := testClient(srv.URL).ReportInvoice(context.Background(), "doc-uuid", ClearanceCleared)
	require.NoError(t, err)
	assert.Equal(t, ReportingReported, res.Status)
	assert.Equal(t, "ok", res.Message)
	assert.Equal(t, "doc-uuid", captured["uuid"])
	assert.Equal(t, ClearanceCleared, captured["clearanceStatus"])
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(&APIError{StatusCode: 422}))
	assert.True(t, IsTransient(&APIError{StatusCode: 500}))
	assert.True(t, IsTransient(context.DeadlineExceeded))
}
