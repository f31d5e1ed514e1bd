package order_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"

	"ms-events/internal/config"
	"ms-events/internal/logger"
	"ms-events/internal/models"
	"ms-events/internal/order"
)

const testWebhookSecret = "whsec_test_secret"

// Mock implementations

type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) CreateOrder(ctx context.Context, o models.Order) (bool, error) {
	args := m.Called(ctx, o)
	return args.Bool(0), args.Error(1)
}

func (m *MockDBLayer) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockDBLayer) GetOrderByStripeID(ctx context.Context, stripeID string) (*models.Order, error) {
	args := m.Called(ctx, stripeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockDBLayer) ListOrdersByEvent(ctx context.Context, eventID, buyerFilter string) ([]models.OrderBuyerRow, error) {
	args := m.Called(ctx, eventID, buyerFilter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.OrderBuyerRow), args.Error(1)
}

func (m *MockDBLayer) ListOrdersByBuyer(ctx context.Context, buyerID string, page, limit int) ([]models.OrderWithEvent, int, error) {
	args := m.Called(ctx, buyerID, page, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]models.OrderWithEvent), args.Int(1), args.Error(2)
}

type MockEventLookup struct {
	mock.Mock
}

func (m *MockEventLookup) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

type MockIdentityLookup struct {
	mock.Mock
}

func (m *MockIdentityLookup) Lookup(ctx context.Context, subject string) (*models.UserProfile, error) {
	args := m.Called(ctx, subject)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserProfile), args.Error(1)
}

type MockKafkaPublisher struct {
	mock.Mock
}

func (m *MockKafkaPublisher) PublishOrderCreated(o models.Order) error {
	args := m.Called(o)
	return args.Error(0)
}

func newTestService(db *MockDBLayer, kafka order.KafkaPublisher) *order.OrderService {
	return order.NewOrderService(db, &MockEventLookup{}, &MockIdentityLookup{}, kafka,
		config.StripeConfig{WebhookSecret: testWebhookSecret, Currency: "usd"},
		logger.NewLogger())
}

// signedWebhookRequest builds a request whose Stripe-Signature header
// genuinely verifies against the test secret.
func signedWebhookRequest(t *testing.T, payload []byte) *http.Request {
	t.Helper()

	now := time.Now()
	sig := webhook.ComputeSignature(now, payload, testWebhookSecret)
	header := fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(sig))

	req := httptest.NewRequest(http.MethodPost, "/api/webhook/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", header)
	return req
}

func checkoutCompletedPayload(sessionID string, amount int64, metadata string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_test_1",
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": %q,
				"object": "checkout.session",
				"amount_total": %d,
				"metadata": %s
			}
		}
	}`, sessionID, amount, metadata))
}

func TestHandleStripeWebhook_MissingSignature(t *testing.T) {
	db := new(MockDBLayer)
	svc := newTestService(db, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/webhook/stripe", bytes.NewReader([]byte(`{}`)))

	result, err := svc.HandleStripeWebhook(req)
	require.Error(t, err)
	assert.Nil(t, result)

	var webhookErr *order.WebhookError
	require.ErrorAs(t, err, &webhookErr)
	assert.Equal(t, "validation", webhookErr.Category)
	assert.Equal(t, http.StatusBadRequest, webhookErr.StatusCode)

	db.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
}

func TestHandleStripeWebhook_InvalidSignature(t *testing.T) {
	db := new(MockDBLayer)
	svc := newTestService(db, nil)

	payload := checkoutCompletedPayload("cs_bad_sig", 5000, `{}`)
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=deadbeef", time.Now().Unix()))

	result, err := svc.HandleStripeWebhook(req)
	require.Error(t, err)
	assert.Nil(t, result)

	var webhookErr *order.WebhookError
	require.ErrorAs(t, err, &webhookErr)
	assert.Equal(t, "validation", webhookErr.Category)
	assert.Equal(t, http.StatusBadRequest, webhookErr.StatusCode)

	db.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
}

func TestHandleStripeWebhook_TamperedPayload(t *testing.T) {
	db := new(MockDBLayer)
	svc := newTestService(db, nil)

	payload := checkoutCompletedPayload("cs_tampered", 5000, `{}`)
	signed := signedWebhookRequest(t, payload)

	// Same valid signature, different bytes on the wire.
	tampered := bytes.Replace(payload, []byte("5000"), []byte("1"), 1)
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/stripe", bytes.NewReader(tampered))
	req.Header.Set("Stripe-Signature", signed.Header.Get("Stripe-Signature"))

	result, err := svc.HandleStripeWebhook(req)
	require.Error(t, err)
	assert.Nil(t, result)

	var webhookErr *order.WebhookError
	require.ErrorAs(t, err, &webhookErr)
	assert.Equal(t, "validation", webhookErr.Category)
}

func TestHandleStripeWebhook_MissingSecret(t *testing.T) {
	db := new(MockDBLayer)
	svc := order.NewOrderService(db, &MockEventLookup{}, &MockIdentityLookup{}, nil,
		config.StripeConfig{}, logger.NewLogger())

	req := signedWebhookRequest(t, []byte(`{}`))

	_, err := svc.HandleStripeWebhook(req)
	require.Error(t, err)

	var webhookErr *order.WebhookError
	require.ErrorAs(t, err, &webhookErr)
	assert.Equal(t, "configuration", webhookErr.Category)
	assert.Equal(t, http.StatusInternalServerError, webhookErr.StatusCode)
}

func TestHandleStripeWebhook_IgnoresUnknownEventType(t *testing.T) {
	db := new(MockDBLayer)
	svc := newTestService(db, nil)

	payload := []byte(`{
		"id": "evt_test_2",
		"type": "payment_intent.created",
		"data": {"object": {"id": "pi_1", "object": "payment_intent"}}
	}`)
	req := signedWebhookRequest(t, payload)

	result, err := svc.HandleStripeWebhook(req)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "ignored", result.Outcome)
	assert.Equal(t, "payment_intent.created", result.EventType)
	assert.Nil(t, result.Order)

	db.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
}

func TestHandleStripeWebhook_MaterializesOrder(t *testing.T) {
	db := new(MockDBLayer)
	kafka := new(MockKafkaPublisher)
	svc := newTestService(db, kafka)

	db.On("CreateOrder", mock.Anything, mock.MatchedBy(func(o models.Order) bool {
		return o.StripeID == "cs_123" &&
			o.EventID == "event_9" &&
			o.BuyerID == "user_7" &&
			o.TotalAmount == "50" &&
			o.ID != ""
	})).Return(true, nil)
	kafka.On("PublishOrderCreated", mock.Anything).Return(nil)

	payload := checkoutCompletedPayload("cs_123", 5000, `{"eventId": "event_9", "buyerId": "user_7"}`)
	req := signedWebhookRequest(t, payload)

	result, err := svc.HandleStripeWebhook(req)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "materialized", result.Outcome)
	assert.Equal(t, "checkout.session.completed", result.EventType)
	require.NotNil(t, result.Order)
	assert.Equal(t, "cs_123", result.Order.StripeID)
	assert.Equal(t, "50", result.Order.TotalAmount)

	db.AssertExpectations(t)
	kafka.AssertExpectations(t)
}

func TestHandleStripeWebhook_MissingMetadataDefaults(t *testing.T) {
	db := new(MockDBLayer)
	svc := newTestService(db, nil)

	db.On("CreateOrder", mock.Anything, mock.MatchedBy(func(o models.Order) bool {
		return o.StripeID == "cs_no_meta" &&
			o.EventID == "" &&
			o.BuyerID == "" &&
			o.TotalAmount == "0"
	})).Return(true, nil)

	payload := checkoutCompletedPayload("cs_no_meta", 0, `{}`)
	req := signedWebhookRequest(t, payload)

	result, err := svc.HandleStripeWebhook(req)
	require.NoError(t, err)
	assert.Equal(t, "materialized", result.Outcome)

	db.AssertExpectations(t)
}

func TestHandleStripeWebhook_DuplicateDelivery(t *testing.T) {
	db := new(MockDBLayer)
	kafka := new(MockKafkaPublisher)
	svc := newTestService(db, kafka)

	existing := &models.Order{ID: "order_1", StripeID: "cs_dup", TotalAmount: "19.99"}
	db.On("CreateOrder", mock.Anything, mock.Anything).Return(false, nil)
	db.On("GetOrderByStripeID", mock.Anything, "cs_dup").Return(existing, nil)

	payload := checkoutCompletedPayload("cs_dup", 1999, `{"eventId": "e", "buyerId": "b"}`)
	req := signedWebhookRequest(t, payload)

	result, err := svc.HandleStripeWebhook(req)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "duplicate", result.Outcome)
	assert.Equal(t, existing, result.Order)

	// Redeliveries must not re-announce the order downstream.
	kafka.AssertNotCalled(t, "PublishOrderCreated", mock.Anything)
	db.AssertExpectations(t)
}

func TestHandleStripeWebhook_PersistenceFailure(t *testing.T) {
	db := new(MockDBLayer)
	svc := newTestService(db, nil)

	db.On("CreateOrder", mock.Anything, mock.Anything).Return(false, errors.New("connection refused"))

	payload := checkoutCompletedPayload("cs_fail", 1999, `{}`)
	req := signedWebhookRequest(t, payload)

	result, err := svc.HandleStripeWebhook(req)
	require.Error(t, err)
	assert.Nil(t, result)

	var webhookErr *order.WebhookError
	require.ErrorAs(t, err, &webhookErr)
	assert.Equal(t, "processing", webhookErr.Category)
	assert.Equal(t, http.StatusInternalServerError, webhookErr.StatusCode)
}

func TestHandleStripeWebhook_KafkaFailureDoesNotFailDelivery(t *testing.T) {
	db := new(MockDBLayer)
	kafka := new(MockKafkaPublisher)
	svc := newTestService(db, kafka)

	db.On("CreateOrder", mock.Anything, mock.Anything).Return(true, nil)
	kafka.On("PublishOrderCreated", mock.Anything).Return(errors.New("broker unreachable"))

	payload := checkoutCompletedPayload("cs_kafka", 500, `{}`)
	req := signedWebhookRequest(t, payload)

	result, err := svc.HandleStripeWebhook(req)
	require.NoError(t, err)
	assert.Equal(t, "materialized", result.Outcome)
}

func TestFormatMinorUnits(t *testing.T) {
	cases := []struct {
		amount int64
		want   string
	}{
		{5000, "50"},
		{1999, "19.99"},
		{1990, "19.9"},
		{0, "0"},
		{5, "0.05"},
		{50, "0.5"},
		{100, "1"},
		{101, "1.01"},
		{-1999, "-19.99"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, order.FormatMinorUnits(tc.amount), "amount %d", tc.amount)
	}
}

func TestPriceToMinorUnits(t *testing.T) {
	cases := []struct {
		price string
		want  int64
	}{
		{"25", 2500},
		{"19.99", 1999},
		{"19.9", 1990},
		{"0.05", 5},
		{"", 0},
		{".5", 50},
	}

	for _, tc := range cases {
		got, err := order.PriceToMinorUnits(tc.price)
		require.NoError(t, err, "price %q", tc.price)
		assert.Equal(t, tc.want, got, "price %q", tc.price)
	}

	for _, bad := range []string{"19.999", "-5", "abc"} {
		_, err := order.PriceToMinorUnits(bad)
		assert.Error(t, err, "price %q", bad)
	}
}
