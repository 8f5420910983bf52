package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/apperr"
	"github.com/learnhub/backend/pkg/queue"
)

func TestCreateTransaction(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/snap/v1/transactions", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"token":"tok-123","redirect_url":"https://app.sandbox.midtrans.com/snap/v3/redirection/tok-123"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{ServerKey: "SB-Mid-server-abc", BaseURL: srv.URL + "/", EnabledPayments: []string{"gopay", "bank_transfer"}}, nil, nil)
	resp, err := c.CreateTransaction(context.Background(), SnapRequest{
		OrderID:     "order-1",
		GrossAmount: 135000,
		Customer:    Customer{FirstName: "Siti", Email: "siti@learnhub.id"},
		Items:       []Item{{ID: "course-1", Name: "Go", Price: 135000, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, "tok-123", resp.Token)
	assert.Contains(t, resp.RedirectURL, "tok-123")
	assert.JSONEq(t, `{"token":"tok-123","redirect_url":"https://app.sandbox.midtrans.com/snap/v3/redirection/tok-123"}`, string(resp.Raw))

	assert.Equal(t, "Basic "+base64.StdEncoding.EncodeToString([]byte("SB-Mid-server-abc:")), gotAuth)
	details := gotBody["transaction_details"].(map[string]any)
	assert.Equal(t, "order-1", details["order_id"])
	assert.Equal(t, float64(135000), details["gross_amount"])
	assert.Len(t, gotBody["enabled_payments"], 2)
}

func TestCreateTransactionGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error_messages":["Access denied"]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{ServerKey: "bad", BaseURL: srv.URL}, nil, nil)
	_, err := c.CreateTransaction(context.Background(), SnapRequest{OrderID: "o", GrossAmount: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGateway)
	assert.True(t, apperr.IsKind(err, apperr.KindUpstream))
}

func TestVerifySignature(t *testing.T) {
	n := Notification{OrderID: "order-1", StatusCode: "200", GrossAmount: "135000.00"}
	n.SignatureKey = Signature(n.OrderID, n.StatusCode, n.GrossAmount, "server-key")
	assert.True(t, VerifySignature(n, "server-key"))
	assert.False(t, VerifySignature(n, "other-key"))

	n.GrossAmount = "1.00"
	assert.False(t, VerifySignature(n, "server-key"))
}

func TestMapStatus(t *testing.T) {
	tests := []struct {
		status, fraud string
		want          models.TransactionStatus
		ok            bool
	}{
		{"capture", "accept", models.TransactionPaid, true},
		{"capture", "challenge", models.TransactionPending, true},
		{"settlement", "", models.TransactionPaid, true},
		{"pending", "", models.TransactionPending, true},
		{"deny", "", models.TransactionFailed, true},
		{"failure", "", models.TransactionFailed, true},
		{"cancel", "", models.TransactionCancelled, true},
		{"expire", "", models.TransactionExpired, true},
		{"refund", "", models.TransactionRefunded, true},
		{"authorize", "", "", false},
	}
	for _, tt := range tests {
		got, ok := MapStatus(tt.status, tt.fraud)
		assert.Equal(t, tt.ok, ok, tt.status)
		assert.Equal(t, tt.want, got, tt.status)
	}
}

type fakeEnqueuer struct{ got []queue.PaymentNotificationPayload }

func (f *fakeEnqueuer) EnqueuePaymentNotification(_ context.Context, p queue.PaymentNotificationPayload) error {
	f.got = append(f.got, p)
	return nil
}

func TestNotifyHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	jobs := &fakeEnqueuer{}
	h := NewNotificationHandler("server-key", jobs, nil)
	r := gin.New()
	r.POST("/payments/notification", h.Notify)

	sig := Signature("order-9", "200", "50000.00", "server-key")
	body := `{"order_id":"order-9","status_code":"200","gross_amount":"50000.00","signature_key":"` + sig + `","transaction_status":"settlement"}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/payments/notification", strings.NewReader(body)))
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, jobs.got, 1)
	assert.Equal(t, "order-9", jobs.got[0].OrderID)
	assert.Equal(t, "settlement", jobs.got[0].TransactionStatus)

	forged := strings.Replace(body, sig, strings.Repeat("0", 128), 1)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/payments/notification", strings.NewReader(forged)))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Len(t, jobs.got, 1)
}
