package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"rentescrow/internal/config"
	"rentescrow/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := zerolog.New(io.Discard)
	cfg := config.GatewayConfig{
		BaseURL:       srv.URL + "/",
		SecretKey:     "sk_test",
		CallbackURL:   "https://example.ng/payments/webhook",
		MerchantID:    "SBN1EBZEQ8",
		Currency:      "NGN",
		Channels:      []string{"card", "bank", "ussd", "transfer"},
		ChargeTimeout: time.Second,
		PayoutTimeout: time.Second,
	}
	return NewClient(cfg, BankCodes{"gtbank": "000013"}, &logger)
}

func TestInitiateCharge(t *testing.T) {
	var got map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/initiate", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"status":200,"message":"success","data":{"checkout_url":"https://sandbox-pay.squadco.com/LEASEPAY_X"}}`))
	})

	url, err := client.InitiateCharge(context.Background(), models.ChargeRequest{
		Amount:         600_000_00,
		Email:          "ada@example.ng",
		TransactionRef: "LEASEPAY_X",
		Metadata:       map[string]interface{}{"payment_record_id": 5},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://sandbox-pay.squadco.com/LEASEPAY_X", url)

	assert.Equal(t, "60000000", got["amount"])
	assert.Equal(t, "NGN", got["currency"])
	assert.Equal(t, "inline", got["initiate_type"])
	assert.Equal(t, "ada@example.ng", got["customer_name"], "name falls back to email")
	assert.Equal(t, "https://example.ng/payments/webhook", got["callback_url"])
	assert.Len(t, got["payment_channels"], 4)
	assert.Equal(t, float64(5), got["metadata"].(map[string]interface{})["payment_record_id"])
}

func TestInitiateChargeRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":400,"message":"Invalid amount"}`))
	})

	_, err := client.InitiateCharge(context.Background(), models.ChargeRequest{Amount: 100, Email: "a@b.c", TransactionRef: "R"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRejected)

	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, "Invalid amount", rejected.Message)
	assert.Equal(t, http.StatusBadRequest, rejected.HTTPStatus)
	assert.False(t, IsRetryable(err))
}

func TestInitiateChargeStatusInBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":424,"message":"Merchant not activated"}`))
	})

	_, err := client.InitiateCharge(context.Background(), models.ChargeRequest{Amount: 100, Email: "a@b.c", TransactionRef: "R"})
	assert.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "Merchant not activated")
}

func TestInitiateChargeServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"status":502,"message":"upstream down"}`))
	})

	_, err := client.InitiateCharge(context.Background(), models.ChargeRequest{Amount: 100, Email: "a@b.c", TransactionRef: "R"})
	assert.ErrorIs(t, err, ErrRejected)
	assert.True(t, IsRetryable(err))
}

func TestInitiateChargeMisconfigured(t *testing.T) {
	logger := zerolog.Nop()
	client := NewClient(config.GatewayConfig{BaseURL: "http://127.0.0.1:1"}, nil, &logger)

	_, err := client.InitiateCharge(context.Background(), models.ChargeRequest{Amount: 100})
	assert.ErrorIs(t, err, ErrMisconfigured)
	_, err = client.Disburse(context.Background(), models.PayoutRequest{Amount: 100, BankCode: "000013"})
	assert.ErrorIs(t, err, ErrMisconfigured)
}

func TestInitiateChargeUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	logger := zerolog.Nop()
	client := NewClient(config.GatewayConfig{BaseURL: base, SecretKey: "sk", ChargeTimeout: time.Second}, nil, &logger)

	_, err := client.InitiateCharge(context.Background(), models.ChargeRequest{Amount: 100, Email: "a@b.c", TransactionRef: "R"})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.True(t, IsRetryable(err))
}

func TestInitiateChargeTimeout(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)
	client.chargeClient.Timeout = 50 * time.Millisecond

	_, err := client.InitiateCharge(context.Background(), models.ChargeRequest{Amount: 100, Email: "a@b.c", TransactionRef: "R"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestDisburse(t *testing.T) {
	var got payoutRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payout/transfer", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true,"message":"ok","data":{"transaction_reference":"SQ_PAYOUT_1"}}`))
	})

	ref, err := client.Disburse(context.Background(), models.PayoutRequest{
		Amount:         50_000_00,
		BankCode:       "000013",
		AccountNumber:  "0123456789",
		AccountName:    "Ada Obi",
		TransactionRef: "SBN1EBZEQ8_7_ABCDEF12",
		Remark:         "Payment for booking 7 at Flat, Yaba",
	})
	require.NoError(t, err)
	assert.Equal(t, "SQ_PAYOUT_1", ref)
	assert.Equal(t, "5000000", got.Amount)
	assert.Equal(t, "NGN", got.CurrencyID)
	assert.Equal(t, "SBN1EBZEQ8_7_ABCDEF12", got.TransactionReference)
}

func TestDisburseFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"Insufficient balance"}`))
	})

	_, err := client.Disburse(context.Background(), models.PayoutRequest{Amount: 1, BankCode: "000013"})
	assert.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "Insufficient balance")

	_, err = client.Disburse(context.Background(), models.PayoutRequest{Amount: 1})
	assert.ErrorIs(t, err, ErrUnmappedBankCode)
}

func TestReferences(t *testing.T) {
	client := newTestClient(t, func(http.ResponseWriter, *http.Request) {})

	charge := client.NewChargeReference()
	assert.Regexp(t, regexp.MustCompile(`^LEASEPAY_[0-9A-F]{12}$`), charge)
	assert.NotEqual(t, charge, client.NewChargeReference())

	payout := client.NewPayoutReference(42)
	assert.Regexp(t, regexp.MustCompile(`^SBN1EBZEQ8_42_[0-9A-F]{8}$`), payout)
}

func TestBankCodes(t *testing.T) {
	codes := BankCodes{"gtbank": "000013"}

	code, err := codes.Lookup("  GTBank ")
	require.NoError(t, err)
	assert.Equal(t, "000013", code)

	_, err = codes.Lookup("Bank of Atlantis")
	assert.ErrorIs(t, err, ErrUnmappedBankCode)
}
