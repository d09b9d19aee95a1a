// services/rental/internal/core/gateway.go
package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"example.com/backstage/services/rental/internal/metrics"
)

// GatewayNotification is a mobile-money provider's payment confirmation.
type GatewayNotification struct {
	TenantID      uuid.UUID       `json:"tenant_id"`
	PaymentMonth  string          `json:"payment_month"`
	Amount        decimal.Decimal `json:"amount"`
	Provider      string          `json:"provider"`
	TransactionID string          `json:"transaction_id"`
	MSISDN        string          `json:"msisdn"`
	PaidAt        *time.Time      `json:"paid_at"`
}

// HandleGatewayNotification records a payment pushed by the payment gateway.
// Replayed notifications are acknowledged without recording twice.
func (s *TenancyService) HandleGatewayNotification(ctx context.Context, topic string, payload []byte) error {
	var n GatewayNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		metrics.GatewayMessages.WithLabelValues("invalid").Inc()
		return fmt.Errorf("failed to decode gateway notification: %w", err)
	}
	if n.TenantID == uuid.Nil || n.TransactionID == "" {
		metrics.GatewayMessages.WithLabelValues("invalid").Inc()
		return validationError("GATEWAY_001", "tenant_id and transaction_id are required")
	}
	if strings.TrimSpace(n.PaymentMonth) == "" || !n.Amount.IsPositive() {
		metrics.GatewayMessages.WithLabelValues("invalid").Inc()
		return validationError("GATEWAY_002", "payment_month and a positive amount are required")
	}

	_, err := s.RecordPayment(ctx, SystemSession("payment-gateway"), RecordPaymentInput{
		TenantID:      n.TenantID,
		PaymentMonth:  n.PaymentMonth,
		AmountPaid:    n.Amount,
		PaymentMethod: n.Provider,
		TransactionID: n.TransactionID,
		PaymentDate:   n.PaidAt,
		Notes:         msisdnNote(n.MSISDN),
	})
	switch {
	case errors.Is(err, ErrDuplicateTransaction):
		metrics.GatewayMessages.WithLabelValues("duplicate").Inc()
		s.logger.WithFields(logrus.Fields{
			"topic":          topic,
			"transaction_id": n.TransactionID,
		}).Info("Duplicate gateway notification ignored")
		return nil
	case err != nil:
		metrics.GatewayMessages.WithLabelValues("failure").Inc()
		return err
	}

	metrics.GatewayMessages.WithLabelValues("success").Inc()
	return nil
}

func msisdnNote(msisdn string) string {
	if msisdn == "" {
		return ""
	}
	return "Paid from " + msisdn
}
