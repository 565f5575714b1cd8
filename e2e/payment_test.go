package e2e

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func paymentSignature(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(testKeySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestCreateOrder_MockGateway(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, testUserID, http.MethodPost, "/api/payments/order", `{"amount":49900}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	orderID, _ := result["orderId"].(string)
	if !strings.HasPrefix(orderID, "order_mock_") {
		t.Errorf("expected mock order id, got %q", orderID)
	}
	if result["amount"] != float64(49900) {
		t.Errorf("unexpected amount: %v", result["amount"])
	}
	if result["currency"] != "INR" {
		t.Errorf("unexpected currency: %v", result["currency"])
	}
	if result["keyId"] != testKeyID {
		t.Errorf("unexpected keyId: %v", result["keyId"])
	}
}

func TestCreateOrder_Validation(t *testing.T) {
	ta := setupApp(t)

	for _, body := range []string{`{"amount":0}`, `{"amount":-100}`, `{}`} {
		resp, err := doAuthRequest(t, ta.app, testUserID, http.MethodPost, "/api/payments/order", body)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		assertStatus(t, resp, http.StatusBadRequest)
	}
}

func TestVerifyPayment_InvalidSignature(t *testing.T) {
	ta := setupApp(t)

	body := `{"order_id":"order_1","payment_id":"pay_1","signature":"deadbeef","amount":49900}`
	resp, err := doAuthRequest(t, ta.app, testUserID, http.MethodPost, "/api/payments/verify", body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["verified"] != false {
		t.Errorf("forged signature verified: %v", result)
	}

	if payments := ta.store.Payments(); len(payments) != 0 {
		t.Errorf("rejected payment was recorded: %d rows", len(payments))
	}
}

func TestVerifyPayment_MissingFields(t *testing.T) {
	ta := setupApp(t)

	tests := []string{
		`{"payment_id":"pay_1","signature":"s","amount":49900}`,
		`{"order_id":"order_1","signature":"s","amount":49900}`,
		`{"order_id":"order_1","payment_id":"pay_1","amount":49900}`,
		`{"order_id":"order_1","payment_id":"pay_1","signature":"s"}`,
	}
	for _, body := range tests {
		resp, err := doAuthRequest(t, ta.app, testUserID, http.MethodPost, "/api/payments/verify", body)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		assertStatus(t, resp, http.StatusBadRequest)
	}
}

func TestVerifyPayment_UpgradesToFull(t *testing.T) {
	ta := setupApp(t)
	reportID := createReport(t, ta, testUserID)
	completeReport(t, ta, testUserID, reportID)

	// Free tier sees the preview.
	resp, err := doAuthRequest(t, ta.app, testUserID, http.MethodGet, "/api/reports/"+reportID+"/access", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if result := parseJSON(t, resp); result["type"] != "preview" {
		t.Fatalf("expected preview before upgrade, got %v", result["type"])
	}

	// A verified payment upgrades the plan.
	body := fmt.Sprintf(`{"order_id":"order_1","payment_id":"pay_1","signature":%q,"amount":49900}`,
		paymentSignature("order_1", "pay_1"))
	resp, err = doAuthRequest(t, ta.app, testUserID, http.MethodPost, "/api/payments/verify", body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	result := parseJSON(t, resp)
	if result["verified"] != true {
		t.Fatalf("valid signature rejected: %v", result)
	}
	if result["plan"] != "pro" {
		t.Errorf("expected pro plan, got %v", result["plan"])
	}

	// The same report now signs the full artifact.
	resp, err = doAuthRequest(t, ta.app, testUserID, http.MethodGet, "/api/reports/"+reportID+"/access", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	if result := parseJSON(t, resp); result["type"] != "full" {
		t.Errorf("expected full after upgrade, got %v", result["type"])
	}

	payments := ta.store.Payments()
	if len(payments) != 1 {
		t.Fatalf("expected 1 recorded payment, got %d", len(payments))
	}
	if payments[0].Amount != 49900 {
		t.Errorf("expected recorded amount 49900, got %d", payments[0].Amount)
	}
}
