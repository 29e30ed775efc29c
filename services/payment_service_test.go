package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courseloop/api/model"
	"github.com/courseloop/api/services/portone"
	"github.com/courseloop/api/utils/apperr"
)

// placeOrder runs a user's courses through cart and order creation and
// returns the resulting PENDING order.
func placeOrder(t *testing.T, carts *CartService, orders *OrderService, userID uint, courseIDs ...uint) *model.Order {
	t.Helper()
	ctx := context.Background()
	for _, id := range courseIDs {
		if _, err := carts.AddToCart(ctx, userID, id); err != nil {
			t.Fatalf("failed to fill cart: %v", err)
		}
	}
	order, err := orders.CreateOrder(ctx, userID)
	if err != nil {
		t.Fatalf("failed to create order: %v", err)
	}
	return order
}

func paidRecord(order *model.Order, channel string) *portone.PaymentRecord {
	return &portone.PaymentRecord{
		MerchantUID: order.MerchantUID,
		PayMethod:   "card",
		Channel:     channel,
		PGProvider:  "kakaopay",
		PGTID:       "tid-001",
		Amount:      order.TotalPrice,
		Currency:    "KRW",
		Status:      portone.StatusPaid,
		PaidAt:      time.Now().Unix(),
		Raw:         json.RawMessage(`{"status":"paid"}`),
	}
}

func TestVerifyPaymentPaid(t *testing.T) {
	db := newTestDB(t)
	carts := NewCartService(db)
	orders := NewOrderService(db)
	enrollments := NewEnrollmentService(db)
	ctx := context.Background()

	user := seedUser(t, db, "buyer@example.com")
	first := seedCourse(t, db, "go-basics", 49000, 0)
	second := seedCourse(t, db, "go-advanced", 89000, 0)
	order := placeOrder(t, carts, orders, user.ID, first.ID, second.ID)

	gateway := &fakeGateway{record: paidRecord(order, portone.ChannelLive)}
	svc := NewPaymentService(db, gateway, enrollments, "KRW")

	payment, err := svc.VerifyPayment(ctx, "imp_001", order.ID)
	require.NoError(t, err)

	assert.Equal(t, model.PaymentStatusPaid, payment.Status)
	assert.Equal(t, "imp_001", payment.ImpUID)
	assert.Equal(t, "tid-001", payment.TransactionID)
	assert.Equal(t, order.TotalPrice, payment.Amount)
	require.NotNil(t, payment.PaidAt)

	var reloaded model.Order
	require.NoError(t, db.First(&reloaded, order.ID).Error)
	assert.Equal(t, model.OrderStatusPaid, reloaded.Status)

	// One enrollment per purchased course
	var count int64
	db.Model(&model.Enrollment{}).Where("user_id = ?", user.ID).Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestVerifyPaymentDuplicate(t *testing.T) {
	db := newTestDB(t)
	carts := NewCartService(db)
	orders := NewOrderService(db)
	enrollments := NewEnrollmentService(db)
	ctx := context.Background()

	user := seedUser(t, db, "buyer@example.com")
	course := seedCourse(t, db, "go-basics", 49000, 0)
	order := placeOrder(t, carts, orders, user.ID, course.ID)

	gateway := &fakeGateway{record: paidRecord(order, portone.ChannelLive)}
	svc := NewPaymentService(db, gateway, enrollments, "KRW")

	_, err := svc.VerifyPayment(ctx, "imp_001", order.ID)
	require.NoError(t, err)

	// The second verification rejects before the gateway is contacted
	_, err = svc.VerifyPayment(ctx, "imp_001", order.ID)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))
	assert.Equal(t, 1, gateway.calls)

	var payments, grants int64
	db.Model(&model.Payment{}).Where("order_id = ?", order.ID).Count(&payments)
	db.Model(&model.Enrollment{}).Where("user_id = ?", user.ID).Count(&grants)
	assert.Equal(t, int64(1), payments)
	assert.Equal(t, int64(1), grants)
}

func TestVerifyPaymentNotCompleted(t *testing.T) {
	db := newTestDB(t)
	carts := NewCartService(db)
	orders := NewOrderService(db)
	ctx := context.Background()

	user := seedUser(t, db, "buyer@example.com")
	course := seedCourse(t, db, "go-basics", 49000, 0)
	order := placeOrder(t, carts, orders, user.ID, course.ID)

	record := paidRecord(order, portone.ChannelLive)
	record.Status = portone.StatusReady
	record.PaidAt = 0
	gateway := &fakeGateway{record: record}
	svc := NewPaymentService(db, gateway, NewEnrollmentService(db), "KRW")

	_, err := svc.VerifyPayment(ctx, "imp_001", order.ID)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindPaymentNotCompleted))

	// No payment row is written for an unsettled transaction
	var count int64
	db.Model(&model.Payment{}).Where("order_id = ?", order.ID).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestVerifyPaymentGatewayUnavailable(t *testing.T) {
	db := newTestDB(t)
	carts := NewCartService(db)
	orders := NewOrderService(db)
	ctx := context.Background()

	user := seedUser(t, db, "buyer@example.com")
	course := seedCourse(t, db, "go-basics", 49000, 0)
	order := placeOrder(t, carts, orders, user.ID, course.ID)

	gateway := &fakeGateway{err: errors.New("connection refused")}
	svc := NewPaymentService(db, gateway, NewEnrollmentService(db), "KRW")

	_, err := svc.VerifyPayment(ctx, "imp_001", order.ID)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindGatewayUnavailable))

	var reloaded model.Order
	require.NoError(t, db.First(&reloaded, order.ID).Error)
	assert.Equal(t, model.OrderStatusPending, reloaded.Status)
}

func TestVerifyPaymentLiveChannelMismatch(t *testing.T) {
	db := newTestDB(t)
	carts := NewCartService(db)
	orders := NewOrderService(db)
	ctx := context.Background()

	user := seedUser(t, db, "buyer@example.com")
	course := seedCourse(t, db, "go-basics", 49000, 0)
	order := placeOrder(t, carts, orders, user.ID, course.ID)

	record := paidRecord(order, portone.ChannelLive)
	record.Amount = order.TotalPrice - 1000
	gateway := &fakeGateway{record: record}
	svc := NewPaymentService(db, gateway, NewEnrollmentService(db), "KRW")

	_, err := svc.VerifyPayment(ctx, "imp_001", order.ID)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))

	// Rejected payments leave no local trace
	var payments, grants int64
	db.Model(&model.Payment{}).Count(&payments)
	db.Model(&model.Enrollment{}).Count(&grants)
	assert.Equal(t, int64(0), payments)
	assert.Equal(t, int64(0), grants)
}

func TestVerifyPaymentTestChannelMismatchIsAdvisory(t *testing.T) {
	db := newTestDB(t)
	carts := NewCartService(db)
	orders := NewOrderService(db)
	ctx := context.Background()

	user := seedUser(t, db, "buyer@example.com")
	course := seedCourse(t, db, "go-basics", 49000, 0)
	order := placeOrder(t, carts, orders, user.ID, course.ID)

	record := paidRecord(order, portone.ChannelTest)
	record.Amount = order.TotalPrice - 1000
	gateway := &fakeGateway{record: record}
	svc := NewPaymentService(db, gateway, NewEnrollmentService(db), "KRW")

	// Sandbox mismatches log but do not block
	payment, err := svc.VerifyPayment(ctx, "imp_001", order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, payment.Status)
}

func TestVerifyPaymentOrderNotPending(t *testing.T) {
	db := newTestDB(t)
	carts := NewCartService(db)
	orders := NewOrderService(db)
	ctx := context.Background()

	user := seedUser(t, db, "buyer@example.com")
	course := seedCourse(t, db, "go-basics", 49000, 0)
	order := placeOrder(t, carts, orders, user.ID, course.ID)

	_, err := orders.CancelOrder(ctx, user.ID, order.ID)
	require.NoError(t, err)

	gateway := &fakeGateway{record: paidRecord(order, portone.ChannelLive)}
	svc := NewPaymentService(db, gateway, NewEnrollmentService(db), "KRW")

	_, err = svc.VerifyPayment(ctx, "imp_001", order.ID)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))
	assert.Equal(t, 0, gateway.calls)
}

func TestVerifyPaymentOrderNotFound(t *testing.T) {
	db := newTestDB(t)
	svc := NewPaymentService(db, &fakeGateway{}, NewEnrollmentService(db), "KRW")

	_, err := svc.VerifyPayment(context.Background(), "imp_001", 9999)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestVerifyPaymentFailedWithoutRecord(t *testing.T) {
	db := newTestDB(t)
	carts := NewCartService(db)
	orders := NewOrderService(db)
	ctx := context.Background()

	user := seedUser(t, db, "buyer@example.com")
	course := seedCourse(t, db, "go-basics", 49000, 0)
	order := placeOrder(t, carts, orders, user.ID, course.ID)

	record := paidRecord(order, portone.ChannelLive)
	record.Status = portone.StatusFailed
	record.FailReason = "card declined"
	gateway := &fakeGateway{record: record}
	svc := NewPaymentService(db, gateway, NewEnrollmentService(db), "KRW")

	_, err := svc.VerifyPayment(ctx, "imp_001", order.ID)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))
}

func TestHandleWebhookPaidIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	carts := NewCartService(db)
	orders := NewOrderService(db)
	enrollments := NewEnrollmentService(db)
	ctx := context.Background()

	user := seedUser(t, db, "buyer@example.com")
	course := seedCourse(t, db, "go-basics", 49000, 0)
	order := placeOrder(t, carts, orders, user.ID, course.ID)

	gateway := &fakeGateway{record: paidRecord(order, portone.ChannelLive)}
	svc := NewPaymentService(db, gateway, enrollments, "KRW")

	_, err := svc.VerifyPayment(ctx, "imp_001", order.ID)
	require.NoError(t, err)

	// Gateways redeliver webhooks; a replayed paid notification must not
	// change anything.
	for i := 0; i < 2; i++ {
		payment, err := svc.HandleWebhook(ctx, "imp_001", portone.StatusPaid, "tid-001")
		require.NoError(t, err)
		assert.Equal(t, model.PaymentStatusPaid, payment.Status)
	}

	var payments, grants int64
	db.Model(&model.Payment{}).Count(&payments)
	db.Model(&model.Enrollment{}).Where("user_id = ?", user.ID).Count(&grants)
	assert.Equal(t, int64(1), payments)
	assert.Equal(t, int64(1), grants)
}

func TestHandleWebhookPaidPromotesPendingOrder(t *testing.T) {
	db := newTestDB(t)
	carts := NewCartService(db)
	orders := NewOrderService(db)
	ctx := context.Background()

	user := seedUser(t, db, "buyer@example.com")
	course := seedCourse(t, db, "go-basics", 49000, 0)
	order := placeOrder(t, carts, orders, user.ID, course.ID)

	// A payment row exists but settlement arrives via webhook only
	seeded := model.Payment{
		ImpUID:   "imp_002",
		OrderID:  order.ID,
		Amount:   order.TotalPrice,
		Currency: "KRW",
		Status:   model.PaymentStatusReady,
	}
	require.NoError(t, db.Create(&seeded).Error)

	svc := NewPaymentService(db, &fakeGateway{}, NewEnrollmentService(db), "KRW")

	payment, err := svc.HandleWebhook(ctx, "imp_002", portone.StatusPaid, "tid-777")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, payment.Status)
	assert.Equal(t, "tid-777", payment.TransactionID)
	require.NotNil(t, payment.PaidAt)

	var reloaded model.Order
	require.NoError(t, db.First(&reloaded, order.ID).Error)
	assert.Equal(t, model.OrderStatusPaid, reloaded.Status)

	var grants int64
	db.Model(&model.Enrollment{}).Where("user_id = ?", user.ID).Count(&grants)
	assert.Equal(t, int64(1), grants)
}

func TestHandleWebhookFailed(t *testing.T) {
	db := newTestDB(t)
	carts := NewCartService(db)
	orders := NewOrderService(db)
	ctx := context.Background()

	user := seedUser(t, db, "buyer@example.com")
	course := seedCourse(t, db, "go-basics", 49000, 0)
	order := placeOrder(t, carts, orders, user.ID, course.ID)

	seeded := model.Payment{
		ImpUID:   "imp_003",
		OrderID:  order.ID,
		Amount:   order.TotalPrice,
		Currency: "KRW",
		Status:   model.PaymentStatusReady,
	}
	require.NoError(t, db.Create(&seeded).Error)

	svc := NewPaymentService(db, &fakeGateway{}, NewEnrollmentService(db), "KRW")

	payment, err := svc.HandleWebhook(ctx, "imp_003", portone.StatusFailed, "")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusFailed, payment.Status)
	assert.NotEmpty(t, payment.FailureReason)

	// The order stays PENDING so the user can retry payment
	var reloaded model.Order
	require.NoError(t, db.First(&reloaded, order.ID).Error)
	assert.Equal(t, model.OrderStatusPending, reloaded.Status)
}

func TestHandleWebhookUnknownPayment(t *testing.T) {
	db := newTestDB(t)
	svc := NewPaymentService(db, &fakeGateway{}, NewEnrollmentService(db), "KRW")

	_, err := svc.HandleWebhook(context.Background(), "imp_missing", portone.StatusPaid, "")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestHandleWebhookUnsupportedStatus(t *testing.T) {
	db := newTestDB(t)
	carts := NewCartService(db)
	orders := NewOrderService(db)
	ctx := context.Background()

	user := seedUser(t, db, "buyer@example.com")
	course := seedCourse(t, db, "go-basics", 49000, 0)
	order := placeOrder(t, carts, orders, user.ID, course.ID)

	seeded := model.Payment{
		ImpUID:   "imp_004",
		OrderID:  order.ID,
		Amount:   order.TotalPrice,
		Currency: "KRW",
		Status:   model.PaymentStatusReady,
	}
	require.NoError(t, db.Create(&seeded).Error)

	svc := NewPaymentService(db, &fakeGateway{}, NewEnrollmentService(db), "KRW")

	_, err := svc.HandleWebhook(ctx, "imp_004", "chargeback", "")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindUnsupportedStatus))

	// The payment row is untouched
	var reloaded model.Payment
	require.NoError(t, db.First(&reloaded, seeded.ID).Error)
	assert.Equal(t, model.PaymentStatusReady, reloaded.Status)
}
