package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planforge/api/internal/model"
	"github.com/planforge/api/internal/store"
)

const testKeySecret = "test_key_secret"

func signFor(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	// Known vector: HMAC-SHA256("test_key_secret", "order_abc123|pay_def456").
	const known = "58247f35dd5627201d24407a917e1b1d9b6abfc4f84b7bc8a21d325f4ed128b0"

	tests := []struct {
		name      string
		secret    string
		orderID   string
		paymentID string
		signature string
		want      bool
	}{
		{"valid known vector", testKeySecret, "order_abc123", "pay_def456", known, true},
		{"wrong secret", "other_secret", "order_abc123", "pay_def456", known, false},
		{"wrong order id", testKeySecret, "order_xyz", "pay_def456", known, false},
		{"wrong payment id", testKeySecret, "order_abc123", "pay_other", known, false},
		{"truncated signature", testKeySecret, "order_abc123", "pay_def456", known[:32], false},
		{"uppercase hex rejected", testKeySecret, "order_abc123", "pay_def456", strings.ToUpper(known), false},
		{"empty signature", testKeySecret, "order_abc123", "pay_def456", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VerifySignature(tt.secret, tt.orderID, tt.paymentID, tt.signature)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVerifyPayment_ValidSignatureUpgradesPlan(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewPaymentService(nil, st, "key_id", testKeySecret, "INR")

	resp, err := svc.VerifyPayment(context.Background(), "u1", &model.VerifyPaymentRequest{
		OrderID:   "order_1",
		PaymentID: "pay_1",
		Signature: signFor(testKeySecret, "order_1", "pay_1"),
		Amount:    49900,
	})
	require.NoError(t, err)
	assert.True(t, resp.Verified)
	assert.Equal(t, model.PlanPro, resp.Plan)

	profile, err := st.GetProfile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, model.PlanPro, profile.Plan)
	assert.Equal(t, model.RoleMember, profile.Role)
	require.NotNil(t, profile.PlanExpiry)
	assert.True(t, profile.PlanExpiry.After(time.Now().Add(300*24*time.Hour)))

	payments := st.Payments()
	require.Len(t, payments, 1)
	assert.Equal(t, "order_1", payments[0].OrderID)
	assert.Equal(t, int64(49900), payments[0].Amount)
	assert.True(t, payments[0].Verified)
}

func TestVerifyPayment_InvalidSignatureMutatesNothing(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewPaymentService(nil, st, "key_id", testKeySecret, "INR")

	resp, err := svc.VerifyPayment(context.Background(), "u1", &model.VerifyPaymentRequest{
		OrderID:   "order_1",
		PaymentID: "pay_1",
		Signature: "deadbeef",
		Amount:    49900,
	})
	require.NoError(t, err)
	assert.False(t, resp.Verified)
	assert.Empty(t, resp.Plan)

	// No plan, no payment row.
	_, err = st.GetProfile(context.Background(), "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, st.Payments())
}

func TestVerifyPayment_SignatureForDifferentOrder(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewPaymentService(nil, st, "key_id", testKeySecret, "INR")

	// A valid signature replayed against another order must not verify.
	resp, err := svc.VerifyPayment(context.Background(), "u1", &model.VerifyPaymentRequest{
		OrderID:   "order_2",
		PaymentID: "pay_1",
		Signature: signFor(testKeySecret, "order_1", "pay_1"),
		Amount:    49900,
	})
	require.NoError(t, err)
	assert.False(t, resp.Verified)
	_, err = st.GetProfile(context.Background(), "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateOrder_MockWithoutGateway(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewPaymentService(nil, st, "key_id", testKeySecret, "INR")

	order, err := svc.CreateOrder(context.Background(), "u1", 49900)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(order.OrderID, "order_mock_"))
	assert.Equal(t, int64(49900), order.Amount)
	assert.Equal(t, "INR", order.Currency)
	assert.Equal(t, "key_id", order.KeyID)
}
