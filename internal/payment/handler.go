package payment

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/learnhub/backend/pkg/queue"
	"github.com/learnhub/backend/pkg/response"
)

// Enqueuer hands verified notifications to the worker.
type Enqueuer interface {
	EnqueuePaymentNotification(ctx context.Context, payload queue.PaymentNotificationPayload) error
}

// NotificationHandler receives gateway notifications.
type NotificationHandler struct {
	serverKey string
	jobs      Enqueuer
	logger    *zap.Logger
}

// NewNotificationHandler creates the webhook handler.
func NewNotificationHandler(serverKey string, jobs Enqueuer, logger *zap.Logger) *NotificationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationHandler{serverKey: serverKey, jobs: jobs, logger: logger}
}

// Notify handles POST /payments/notification. The signature is checked here;
// applying the status happens in the worker.
func (h *NotificationHandler) Notify(c *gin.Context) {
	var n Notification
	if err := c.ShouldBindJSON(&n); err != nil {
		response.BadRequest(c, "invalid notification")
		return
	}
	if !VerifySignature(n, h.serverKey) {
		h.logger.Warn("notification signature mismatch", zap.String("order_id", n.OrderID), zap.String("client_ip", c.ClientIP()))
		response.Forbidden(c, "invalid signature")
		return
	}
	if _, ok := MapStatus(n.TransactionStatus, n.FraudStatus); !ok {
		h.logger.Info("ignoring notification with unknown status",
			zap.String("order_id", n.OrderID), zap.String("transaction_status", n.TransactionStatus))
		response.OK(c, gin.H{"accepted": false})
		return
	}
	err := h.jobs.EnqueuePaymentNotification(c.Request.Context(), queue.PaymentNotificationPayload{
		OrderID:           n.OrderID,
		TransactionStatus: n.TransactionStatus,
		FraudStatus:       n.FraudStatus,
		StatusCode:        n.StatusCode,
		GrossAmount:       n.GrossAmount,
		PaymentType:       n.PaymentType,
		GatewayTxID:       n.TransactionID,
		ReceivedAt:        time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("enqueue notification failed", zap.String("order_id", n.OrderID), zap.Error(err))
		response.ServiceUnavailable(c, "notification not accepted, retry later")
		return
	}
	response.OK(c, gin.H{"accepted": true})
}
