// Package gateway talks to the Squad payment gateway.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"rentescrow/internal/config"
	"rentescrow/internal/metrics"
	"rentescrow/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	chargePath = "/transaction/initiate"
	payoutPath = "/payout/transfer"

	chargeRefPrefix = "LEASEPAY_"
	maxBodyBytes    = 1 << 20
)

// Client is a Squad API client. Calls are never retried here.
type Client struct {
	baseURL      string
	secretKey    string
	callbackURL  string
	merchantID   string
	currency     string
	channels     []string
	chargeClient *http.Client
	payoutClient *http.Client
	banks        BankCodes
	logger       *zerolog.Logger
}

func NewClient(cfg config.GatewayConfig, banks BankCodes, logger *zerolog.Logger) *Client {
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		secretKey:    cfg.SecretKey,
		callbackURL:  cfg.CallbackURL,
		merchantID:   cfg.MerchantID,
		currency:     cfg.Currency,
		channels:     cfg.Channels,
		chargeClient: &http.Client{Timeout: cfg.ChargeTimeout},
		payoutClient: &http.Client{Timeout: cfg.PayoutTimeout},
		banks:        banks,
		logger:       logger,
	}
}

type chargeRequest struct {
	Amount          string                 `json:"amount"`
	Email           string                 `json:"email"`
	Currency        string                 `json:"currency"`
	InitiateType    string                 `json:"initiate_type"`
	TransactionRef  string                 `json:"transaction_ref"`
	CallbackURL     string                 `json:"callback_url,omitempty"`
	CustomerName    string                 `json:"customer_name"`
	PaymentChannels []string               `json:"payment_channels"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

type chargeResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    struct {
		CheckoutURL string `json:"checkout_url"`
	} `json:"data"`
}

type payoutRequest struct {
	TransactionReference string `json:"transaction_reference"`
	Amount               string `json:"amount"`
	BankCode             string `json:"bank_code"`
	AccountNumber        string `json:"account_number"`
	AccountName          string `json:"account_name"`
	CurrencyID           string `json:"currency_id"`
	Remark               string `json:"remark"`
}

type payoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		TransactionReference string `json:"transaction_reference"`
	} `json:"data"`
}

// InitiateCharge creates a hosted checkout and returns its URL.
func (c *Client) InitiateCharge(ctx context.Context, req models.ChargeRequest) (string, error) {
	if c.secretKey == "" {
		return "", fmt.Errorf("%w: secret key is not set", ErrMisconfigured)
	}
	if req.Amount <= 0 {
		return "", fmt.Errorf("charge amount must be positive, got %d", req.Amount)
	}

	name := strings.TrimSpace(req.CustomerName)
	if name == "" {
		name = req.Email
	}
	body := chargeRequest{
		Amount:          strconv.FormatInt(req.Amount, 10),
		Email:           req.Email,
		Currency:        c.currency,
		InitiateType:    "inline",
		TransactionRef:  req.TransactionRef,
		CallbackURL:     c.callbackURL,
		CustomerName:    name,
		PaymentChannels: c.channels,
		Metadata:        req.Metadata,
	}

	var resp chargeResponse
	status, err := c.post(ctx, c.chargeClient, "charge", chargePath, body, &resp)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK || resp.Status != http.StatusOK {
		return "", &RejectedError{HTTPStatus: status, Message: resp.Message}
	}
	if resp.Data.CheckoutURL == "" {
		return "", &RejectedError{HTTPStatus: status, Message: "response has no checkout_url"}
	}

	c.logger.Info().
		Str("transaction_ref", req.TransactionRef).
		Int64("amount", req.Amount).
		Msg("Charge initiated")
	return resp.Data.CheckoutURL, nil
}

// Disburse transfers funds to a bank account and returns the gateway's payout reference.
func (c *Client) Disburse(ctx context.Context, req models.PayoutRequest) (string, error) {
	if c.secretKey == "" {
		return "", fmt.Errorf("%w: secret key is not set", ErrMisconfigured)
	}
	if req.BankCode == "" {
		return "", fmt.Errorf("%w: empty bank code", ErrUnmappedBankCode)
	}

	body := payoutRequest{
		TransactionReference: req.TransactionRef,
		Amount:               strconv.FormatInt(req.Amount, 10),
		BankCode:             req.BankCode,
		AccountNumber:        req.AccountNumber,
		AccountName:          req.AccountName,
		CurrencyID:           c.currency,
		Remark:               req.Remark,
	}

	var resp payoutResponse
	status, err := c.post(ctx, c.payoutClient, "payout", payoutPath, body, &resp)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK || !resp.Success {
		return "", &RejectedError{HTTPStatus: status, Message: resp.Message}
	}

	ref := resp.Data.TransactionReference
	if ref == "" {
		ref = req.TransactionRef
	}
	c.logger.Info().
		Str("transaction_ref", req.TransactionRef).
		Str("payout_reference", ref).
		Int64("amount", req.Amount).
		Msg("Payout completed")
	return ref, nil
}

// BankCode maps a beneficiary's bank name to the gateway's code.
func (c *Client) BankCode(bankName string) (string, error) {
	return c.banks.Lookup(bankName)
}

// NewChargeReference returns a fresh charge reference, e.g. LEASEPAY_3F2A9C0B11DE.
func (c *Client) NewChargeReference() string {
	return chargeRefPrefix + hexToken(12)
}

// NewPayoutReference returns <merchant>_<booking>_<8 hex>. Squad requires the merchant prefix.
func (c *Client) NewPayoutReference(bookingID int64) string {
	return fmt.Sprintf("%s_%d_%s", c.merchantID, bookingID, hexToken(8))
}

func hexToken(n int) string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:n])
}

// post sends body and decodes the response. A decoding failure on a non-200
// response is reported as a rejection with the raw status.
func (c *Client) post(ctx context.Context, client *http.Client, op, path string, body, out interface{}) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("%w: build request: %v", ErrMisconfigured, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	started := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		metrics.ObserveGateway(op, "unavailable", time.Since(started))
		c.logger.Warn().Err(err).Str("operation", op).Msg("gateway request failed")
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.ObserveGateway(op, "unavailable", time.Since(started))
		return 0, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	outcome := "ok"
	if resp.StatusCode != http.StatusOK {
		outcome = "rejected"
	}
	metrics.ObserveGateway(op, outcome, time.Since(started))

	if err := json.Unmarshal(raw, out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return resp.StatusCode, &RejectedError{HTTPStatus: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		}
		return resp.StatusCode, &RejectedError{HTTPStatus: resp.StatusCode, Message: "malformed response: " + err.Error()}
	}
	return resp.StatusCode, nil
}

// IsRetryable reports whether a caller may try the same call again later:
// the gateway was unreachable or answered with a 5xx.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrUnavailable) {
		return true
	}
	var rejected *RejectedError
	return errors.As(err, &rejected) && rejected.HTTPStatus >= http.StatusInternalServerError
}
