package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/planforge/api/internal/client"
	"github.com/planforge/api/internal/model"
	"github.com/planforge/api/internal/store"
)

// ProPlanDuration is how long a verified payment keeps the pro tier
// active.
const ProPlanDuration = 365 * 24 * time.Hour

// PaymentService creates gateway orders and verifies checkout signatures.
type PaymentService struct {
	gateway   client.PaymentGateway
	profiles  store.ProfileStore
	keySecret string
	keyID     string
	currency  string
}

func NewPaymentService(gateway client.PaymentGateway, profiles store.ProfileStore, keyID, keySecret, currency string) *PaymentService {
	return &PaymentService{
		gateway:   gateway,
		profiles:  profiles,
		keyID:     keyID,
		keySecret: keySecret,
		currency:  currency,
	}
}

// CreateOrder asks the gateway for an order descriptor the client opens
// checkout with.
func (s *PaymentService) CreateOrder(ctx context.Context, userID string, amount int64) (*model.OrderResponse, error) {
	receipt := fmt.Sprintf("plan-%.12s-%s", userID, uuid.New().String()[:8])

	if s.gateway == nil {
		// Mock order for development without gateway credentials.
		return &model.OrderResponse{
			OrderID:  "order_mock_" + uuid.New().String()[:12],
			Amount:   amount,
			Currency: s.currency,
			KeyID:    s.keyID,
		}, nil
	}

	order, err := s.gateway.CreateOrder(ctx, amount, receipt)
	if err != nil {
		return nil, fmt.Errorf("order creation failed: %w", err)
	}

	return &model.OrderResponse{
		OrderID:  order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
		KeyID:    s.keyID,
	}, nil
}

// VerifyPayment checks the gateway signature over "order_id|payment_id".
// Only a valid signature mutates any state: the payment is recorded and
// the caller's plan upgraded to pro.
func (s *PaymentService) VerifyPayment(ctx context.Context, userID string, req *model.VerifyPaymentRequest) (*model.VerifyPaymentResponse, error) {
	if !VerifySignature(s.keySecret, req.OrderID, req.PaymentID, req.Signature) {
		return &model.VerifyPaymentResponse{Verified: false}, nil
	}

	expiry := time.Now().Add(ProPlanDuration)
	if err := s.profiles.UpsertPlan(ctx, userID, model.PlanPro, &expiry, model.RoleMember); err != nil {
		return nil, fmt.Errorf("failed to upgrade plan: %w", err)
	}

	payment := &model.Payment{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		UserID:    userID,
		Amount:    req.Amount,
		Verified:  true,
		CreatedAt: time.Now(),
	}
	if err := s.profiles.RecordPayment(ctx, payment); err != nil {
		// The upgrade stands; the audit row is best effort.
		log.Printf("Failed to record payment %s/%s: %v", req.OrderID, req.PaymentID, err)
	}

	return &model.VerifyPaymentResponse{
		Verified: true,
		Plan:     model.PlanPro,
	}, nil
}

// VerifySignature computes hex(HMAC-SHA256(secret, "orderID|paymentID"))
// and compares it to the supplied signature in constant time.
func VerifySignature(secret, orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
