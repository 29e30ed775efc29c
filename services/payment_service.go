package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/courseloop/api/model"
	"github.com/courseloop/api/services/portone"
	"github.com/courseloop/api/utils/apperr"
)

// PaymentGateway is the seam to the external payment provider. The gateway's
// record is the source of truth; the local Payment row mirrors it.
type PaymentGateway interface {
	GetPayment(ctx context.Context, impUID string) (*portone.PaymentRecord, error)
}

// PaymentService reconciles local order/payment state with the gateway
type PaymentService struct {
	db          *gorm.DB
	gateway     PaymentGateway
	enrollments *EnrollmentService
	currency    string // platform settlement currency
}

// NewPaymentService creates a new payment service
func NewPaymentService(db *gorm.DB, gateway PaymentGateway, enrollments *EnrollmentService, currency string) *PaymentService {
	return &PaymentService{
		db:          db,
		gateway:     gateway,
		enrollments: enrollments,
		currency:    currency,
	}
}

// VerifyPayment reconciles one order against the gateway record for impUID.
// Preconditions are checked before the gateway is contacted; the transition
// applied afterwards depends solely on the gateway-reported status.
func (s *PaymentService) VerifyPayment(ctx context.Context, impUID string, orderID uint) (*model.Payment, error) {
	var order model.Order
	if err := s.db.WithContext(ctx).Preload("Items").First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order not found")
		}
		return nil, apperr.Internal("failed to fetch order", err)
	}
	if order.Status != model.OrderStatusPending {
		return nil, apperr.InvalidState("order is not awaiting payment")
	}

	// A payment row means a prior verification already ran; rejecting here
	// is what keeps duplicate calls from provisioning twice.
	var existing model.Payment
	err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&existing).Error
	if err == nil {
		return nil, apperr.InvalidState("payment already processed")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Internal("failed to check for existing payment", err)
	}

	record, err := s.gateway.GetPayment(ctx, impUID)
	if err != nil {
		return nil, apperr.GatewayUnavailable(err)
	}

	// Strictness follows the channel reported on this transaction, not
	// process configuration: live mismatches reject, sandbox ones log.
	strict := record.Channel == portone.ChannelLive
	if err := s.validateAgainstOrder(&order, record, strict); err != nil {
		return nil, err
	}

	switch record.Status {
	case portone.StatusPaid:
		return s.confirmPaid(ctx, &order, record)

	case portone.StatusFailed:
		// A failure can only be recorded against an existing payment row;
		// none exists past the precondition above, which means the gateway
		// and local state have diverged.
		var payment model.Payment
		err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&payment).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.InvalidState("gateway reported failure for an order with no payment record")
		}
		if err != nil {
			return nil, apperr.Internal("failed to fetch payment", err)
		}
		return s.recordFailure(ctx, &payment, record.FailReason, record.Raw)

	default:
		return nil, apperr.PaymentNotCompleted(
			fmt.Sprintf("payment status is %q; verify again once the gateway confirms", record.Status))
	}
}

// validateAgainstOrder checks the gateway record against the local order.
// Mismatches reject in strict mode and are logged otherwise.
func (s *PaymentService) validateAgainstOrder(order *model.Order, record *portone.PaymentRecord, strict bool) error {
	var mismatches []string

	if record.Amount != order.TotalPrice {
		mismatches = append(mismatches,
			fmt.Sprintf("amount %d does not match order total %d", record.Amount, order.TotalPrice))
	}
	if record.Currency != "" && record.Currency != s.currency {
		mismatches = append(mismatches,
			fmt.Sprintf("currency %q is not the settlement currency %q", record.Currency, s.currency))
	}
	if record.MerchantUID != "" && record.MerchantUID != order.MerchantUID {
		mismatches = append(mismatches,
			fmt.Sprintf("merchant uid %q does not match order %q", record.MerchantUID, order.MerchantUID))
	}

	if len(mismatches) == 0 {
		return nil
	}
	if strict {
		return apperr.InvalidState("gateway record does not match order: " + strings.Join(mismatches, "; "))
	}
	log.Printf("[PAYMENT] advisory mismatch on %s-channel payment %s for order %d: %s",
		record.Channel, record.ImpUID, order.ID, strings.Join(mismatches, "; "))
	return nil
}

// confirmPaid durably marks payment and order as PAID, then provisions one
// enrollment per order line. Provisioning failures are logged and left to
// the retry sweep: a confirmed payment is never rolled back.
func (s *PaymentService) confirmPaid(ctx context.Context, order *model.Order, record *portone.PaymentRecord) (*model.Payment, error) {
	var payment model.Payment

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("order_id = ?", order.ID).First(&payment).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			payment = model.Payment{
				ImpUID:     record.ImpUID,
				OrderID:    order.ID,
				Amount:     record.Amount,
				Currency:   record.Currency,
				Method:     record.PayMethod,
				PGProvider: record.PGProvider,
				Status:     model.PaymentStatusReady,
			}
			if createErr := tx.Create(&payment).Error; createErr != nil {
				// A concurrent verification inserted first; its row wins
				if errors.Is(createErr, gorm.ErrDuplicatedKey) {
					return apperr.InvalidState("payment already processed")
				}
				return apperr.Internal("failed to create payment", createErr)
			}
		} else if err != nil {
			return apperr.Internal("failed to fetch payment", err)
		}

		paidAt := time.Now()
		if record.PaidAt > 0 {
			paidAt = time.Unix(record.PaidAt, 0)
		}
		updates := map[string]interface{}{
			"status":         model.PaymentStatusPaid,
			"paid_at":        paidAt,
			"transaction_id": record.PGTID,
			"raw_payload":    datatypes.JSON(record.Raw),
		}
		if err := tx.Model(&payment).Updates(updates).Error; err != nil {
			return apperr.Internal("failed to mark payment paid", err)
		}

		if err := tx.Model(order).Update("status", model.OrderStatusPaid).Error; err != nil {
			return apperr.Internal("failed to mark order paid", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.provisionOrder(ctx, order)

	if err := s.db.WithContext(ctx).First(&payment, payment.ID).Error; err != nil {
		return nil, apperr.Internal("failed to reload payment", err)
	}
	return &payment, nil
}

// provisionOrder grants one enrollment per order line, idempotently
func (s *PaymentService) provisionOrder(ctx context.Context, order *model.Order) {
	for _, item := range order.Items {
		if err := s.enrollments.Provision(ctx, order.UserID, item.CourseID); err != nil {
			log.Printf("[PAYMENT] enrollment provisioning failed for order %d course %d: %v (retried by reconcile job)",
				order.ID, item.CourseID, err)
		}
	}
}

// recordFailure marks an existing payment FAILED with the gateway's reason
func (s *PaymentService) recordFailure(ctx context.Context, payment *model.Payment, reason string, raw []byte) (*model.Payment, error) {
	if reason == "" {
		reason = "payment failed"
	}
	updates := map[string]interface{}{
		"status":         model.PaymentStatusFailed,
		"failure_reason": reason,
	}
	if len(raw) > 0 {
		updates["raw_payload"] = datatypes.JSON(raw)
	}
	if err := s.db.WithContext(ctx).Model(payment).Updates(updates).Error; err != nil {
		return nil, apperr.Internal("failed to mark payment failed", err)
	}
	if err := s.db.WithContext(ctx).First(payment, payment.ID).Error; err != nil {
		return nil, apperr.Internal("failed to reload payment", err)
	}
	return payment, nil
}

// HandleWebhook applies a gateway-pushed status change to an existing
// payment. Order-level validation already happened during the initial
// verification, so only the status transition is applied here. Webhooks are
// redelivered by the gateway, so every branch is safe to repeat.
func (s *PaymentService) HandleWebhook(ctx context.Context, impUID, status, transactionID string) (*model.Payment, error) {
	var payment model.Payment
	err := s.db.WithContext(ctx).Where("imp_uid = ?", impUID).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("no payment record for this gateway id")
		}
		return nil, apperr.Internal("failed to fetch payment", err)
	}

	switch status {
	case portone.StatusPaid:
		var order model.Order
		if err := s.db.WithContext(ctx).Preload("Items").First(&order, payment.OrderID).Error; err != nil {
			return nil, apperr.Internal("failed to fetch order for webhook", err)
		}

		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			updates := map[string]interface{}{
				"status": model.PaymentStatusPaid,
			}
			if payment.PaidAt == nil {
				updates["paid_at"] = time.Now()
			}
			if transactionID != "" {
				updates["transaction_id"] = transactionID
			}
			if err := tx.Model(&payment).Updates(updates).Error; err != nil {
				return apperr.Internal("failed to mark payment paid", err)
			}
			if order.Status == model.OrderStatusPending {
				if err := tx.Model(&order).Update("status", model.OrderStatusPaid).Error; err != nil {
					return apperr.Internal("failed to mark order paid", err)
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		s.provisionOrder(ctx, &order)

		if err := s.db.WithContext(ctx).First(&payment, payment.ID).Error; err != nil {
			return nil, apperr.Internal("failed to reload payment", err)
		}
		return &payment, nil

	case portone.StatusFailed:
		return s.recordFailure(ctx, &payment, "payment failed (gateway webhook)", nil)

	default:
		return nil, apperr.UnsupportedStatus(status)
	}
}
