package e2e

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/planforge/api/internal/auth"
	"github.com/planforge/api/internal/handler"
	"github.com/planforge/api/internal/middleware"
	"github.com/planforge/api/internal/service"
	"github.com/planforge/api/internal/store"
)

const (
	testJWTSecret     = "test-secret-for-e2e"
	testCallbackToken = "test-callback-token"
	testKeyID         = "test_key_id"
	testKeySecret     = "test_key_secret"
	testUserID        = "test-user-123"
)

// captureEnqueuer records dispatch tasks instead of touching redis.
type captureEnqueuer struct {
	tasks []*asynq.Task
}

func (e *captureEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	e.tasks = append(e.tasks, task)
	return &asynq.TaskInfo{ID: "e2e-task", Queue: "dispatch"}, nil
}

// testApp holds all components needed for testing.
type testApp struct {
	app      *fiber.App
	store    *store.MemoryStore
	enqueuer *captureEnqueuer
}

// setupApp creates a Fiber app identical to main.go but with unconfigured
// external clients: in-memory stores, mock storage URLs, a captured task
// queue. Rate limiting uses a redis client that fails open when no server
// is running.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	redisClient := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // use DB 15 for tests to avoid collision
	})
	t.Cleanup(func() { redisClient.Close() })

	validate := validator.New()

	memStore := store.NewMemoryStore()
	enqueuer := &captureEnqueuer{}

	// Services — nil storage/workflow/gateway trigger mock fallbacks
	reportService := service.NewReportService(memStore, enqueuer, nil)
	accessService := service.NewAccessService(memStore, memStore, nil)
	paymentService := service.NewPaymentService(nil, memStore, testKeyID, testKeySecret, "INR")

	// Handlers
	reportHandler := handler.NewReportHandler(reportService, accessService, validate)
	callbackHandler := handler.NewCallbackHandler(reportService)
	paymentHandler := handler.NewPaymentHandler(paymentService, validate)
	authHandler := handler.NewAuthHandler(nil, testJWTSecret)

	// Auth middleware — legacy HMAC only
	authMiddleware := middleware.NewLegacyAuthMiddleware(testJWTSecret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024,
	})

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"service": "planforge-api"})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"workflow": false,
				"storage":  false,
				"database": false,
				"payments": false,
				"auth":     true,
			},
		})
	})
	app.Get("/auth/verify", authHandler.Verify)

	app.Post("/callbacks/generation",
		middleware.CallbackAuthMiddleware(testCallbackToken),
		callbackHandler.Generation)

	api := app.Group("/api", authMiddleware.Authenticate())

	// Use very high rate limits so tests don't get blocked
	reports := api.Group("/reports")
	reports.Post("/", rateLimiter.ReportsLimit(10000), reportHandler.Create)
	reports.Get("/:reportId/status", reportHandler.Status)
	reports.Get("/:reportId/access", rateLimiter.AccessLimit(10000), reportHandler.Access)

	payments := api.Group("/payments", rateLimiter.PaymentsLimit(10000))
	payments.Post("/order", paymentHandler.CreateOrder)
	payments.Post("/verify", paymentHandler.Verify)

	return &testApp{app: app, store: memStore, enqueuer: enqueuer}
}

// generateToken creates a legacy HMAC JWT token for test requests.
func generateToken(t *testing.T, userID string) string {
	t.Helper()
	claims := auth.LegacyClaims{
		UserID: userID,
		Email:  userID + "@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "planforge-api",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs a request authenticated as the given user.
func doAuthRequest(t *testing.T, app *fiber.App, userID, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t, userID)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// doCallback posts a workflow callback with the shared token.
func doCallback(app *fiber.App, body string) (*http.Response, error) {
	return doRequest(app, http.MethodPost, "/callbacks/generation", body, map[string]string{
		"X-Callback-Token": testCallbackToken,
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// validIntakeBody is a minimal request body passing intake validation.
const validIntakeBody = `{
	"form": {
		"businessName": "Acme Bakery",
		"description": "Artisan sourdough bakery serving the old town district.",
		"employeeCount": "2-9",
		"customerGroups": ["local residents"],
		"offerings": [
			{"name": "Sourdough loaf", "type": "product", "deliveryMethod": "physical"}
		]
	}
}`

// createReport submits a valid intake and returns the new report ID.
func createReport(t *testing.T, ta *testApp, userID string) string {
	t.Helper()
	resp, err := doAuthRequest(t, ta.app, userID, http.MethodPost, "/api/reports", validIntakeBody)
	if err != nil {
		t.Fatalf("create report request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)
	result := parseJSON(t, resp)
	reportID, _ := result["reportId"].(string)
	if reportID == "" {
		t.Fatalf("missing reportId in response: %v", result)
	}
	return reportID
}
