// Package payment talks to the Midtrans Snap payment gateway.
package payment

import (
	"bytes"
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/apperr"
	"github.com/learnhub/backend/pkg/metrics"
)

// ErrGateway is returned when Snap cannot create a transaction.
var ErrGateway = apperr.Upstream("payment gateway unavailable")

// Customer is the buyer shown on the Snap page.
type Customer struct {
	FirstName string `json:"first_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
}

// Item is one line of the order.
type Item struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

// SnapRequest describes an order to pay.
type SnapRequest struct {
	OrderID     string
	GrossAmount int64
	Customer    Customer
	Items       []Item
}

// SnapResponse carries the token and redirect URL. Raw is the untouched gateway body.
type SnapResponse struct {
	Token       string          `json:"token"`
	RedirectURL string          `json:"redirect_url"`
	Raw         json.RawMessage `json:"-"`
}

// Config configures the Snap client.
type Config struct {
	ServerKey       string
	BaseURL         string
	EnabledPayments []string
	Timeout         time.Duration
}

// Client creates Snap transactions.
type Client struct {
	cfg     Config
	http    *http.Client
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewClient returns a Snap client. A zero timeout defaults to 15s.
func NewClient(cfg Config, m *metrics.Metrics, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, metrics: m, logger: logger}
}

func (c *Client) authHeader() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.cfg.ServerKey+":"))
}

type snapBody struct {
	TransactionDetails struct {
		OrderID     string `json:"order_id"`
		GrossAmount int64  `json:"gross_amount"`
	} `json:"transaction_details"`
	CustomerDetails Customer `json:"customer_details"`
	ItemDetails     []Item   `json:"item_details,omitempty"`
	EnabledPayments []string `json:"enabled_payments,omitempty"`
}

// CreateTransaction calls POST {base}/snap/v1/transactions. Any transport error
// or non-2xx answer is reported as ErrGateway.
func (c *Client) CreateTransaction(ctx context.Context, r SnapRequest) (*SnapResponse, error) {
	var body snapBody
	body.TransactionDetails.OrderID = r.OrderID
	body.TransactionDetails.GrossAmount = r.GrossAmount
	body.CustomerDetails = r.Customer
	body.ItemDetails = r.Items
	body.EnabledPayments = c.cfg.EnabledPayments

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal snap request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/snap/v1/transactions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build snap request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.authHeader())

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.GatewayRequest("transport_error")
		return nil, apperr.WithCause(ErrGateway, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.metrics.GatewayRequest("transport_error")
		return nil, apperr.WithCause(ErrGateway, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.GatewayRequest("http_" + strconv.Itoa(resp.StatusCode))
		c.logger.Warn("snap rejected transaction",
			zap.String("order_id", r.OrderID),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", raw))
		return nil, apperr.WithCause(ErrGateway, fmt.Errorf("snap status %d", resp.StatusCode))
	}

	var out SnapResponse
	if err := json.Unmarshal(raw, &out); err != nil || out.Token == "" {
		c.metrics.GatewayRequest("bad_response")
		if err == nil {
			err = fmt.Errorf("snap response missing token")
		}
		return nil, apperr.WithCause(ErrGateway, err)
	}
	out.Raw = raw
	c.metrics.GatewayRequest("ok")
	return &out, nil
}

// Notification is the HTTP notification body Midtrans posts after a status change.
type Notification struct {
	OrderID           string `json:"order_id" binding:"required"`
	StatusCode        string `json:"status_code" binding:"required"`
	GrossAmount       string `json:"gross_amount" binding:"required"`
	SignatureKey      string `json:"signature_key" binding:"required"`
	TransactionStatus string `json:"transaction_status" binding:"required"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
	TransactionID     string `json:"transaction_id"`
}

// Signature computes sha512(order_id + status_code + gross_amount + server_key) in hex.
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// VerifySignature reports whether n was signed with serverKey.
func VerifySignature(n Notification, serverKey string) bool {
	want := Signature(n.OrderID, n.StatusCode, n.GrossAmount, serverKey)
	got := strings.ToLower(strings.TrimSpace(n.SignatureKey))
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

// MapStatus converts a gateway transaction status to ours. A capture flagged
// "challenge" by fraud detection stays pending until reviewed.
func MapStatus(transactionStatus, fraudStatus string) (models.TransactionStatus, bool) {
	switch strings.ToLower(transactionStatus) {
	case "capture":
		if strings.EqualFold(fraudStatus, "challenge") {
			return models.TransactionPending, true
		}
		return models.TransactionPaid, true
	case "settlement":
		return models.TransactionPaid, true
	case "pending":
		return models.TransactionPending, true
	case "deny", "failure":
		return models.TransactionFailed, true
	case "cancel":
		return models.TransactionCancelled, true
	case "expire":
		return models.TransactionExpired, true
	case "refund", "partial_refund":
		return models.TransactionRefunded, true
	}
	return "", false
}
