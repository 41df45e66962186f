package routes

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/walletd/internal/config"
	"github.com/congo-pay/walletd/internal/logging"
)

type client struct {
	t     *testing.T
	app   *fiber.App
	token string
}

func (c *client) do(method, path, body string, headers map[string]string) (int, map[string]any) {
	c.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if c.token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.app.Test(req, -1)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func newApp(t *testing.T) (*fiber.App, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	app := fiber.New()
	cfg := config.Config{
		Env:             "test",
		JWTSecret:       "access",
		RefreshSecret:   "refresh",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		IdempotencyTTL:  time.Minute,
		LoginRateLimit:  10,
	}
	if err := Setup(app, Deps{Cfg: cfg, Cache: cache, Logger: logging.Discard()}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	return app, func() {
		cache.Close()
		mr.Close()
	}
}

func registerAndLogin(t *testing.T, app *fiber.App, name, email string) *client {
	t.Helper()
	c := &client{t: t, app: app}
	status, body := c.do(http.MethodPost, "/api/v1/identity/register",
		`{"name":"`+name+`","email":"`+email+`","password":"correct-horse"}`, nil)
	if status != http.StatusCreated {
		t.Fatalf("register %s: %d %v", email, status, body)
	}
	status, body = c.do(http.MethodPost, "/api/v1/auth/login", `{"email":"`+email+`","password":"correct-horse"}`, nil)
	if status != http.StatusOK {
		t.Fatalf("login %s: %d %v", email, status, body)
	}
	if body["wallet_id"] == "" {
		t.Fatalf("expected wallet to be provisioned on registration")
	}
	c.token, _ = body["access_token"].(string)
	return c
}

func TestEndToEndWalletFlow(t *testing.T) {
	app, cleanup := newApp(t)
	defer cleanup()

	alice := registerAndLogin(t, app, "Alice", "alice@example.com")
	registerAndLogin(t, app, "Bob", "bob@example.com")

	status, body := alice.do(http.MethodGet, "/api/v1/wallet", "", nil)
	if status != http.StatusOK || body["balance"] != "0.00" || body["consistency"] != "healthy" {
		t.Fatalf("wallet: %d %v", status, body)
	}

	if status, _ := alice.do(http.MethodPost, "/api/v1/deposit", `{"amount":"100.00"}`, nil); status != http.StatusBadRequest {
		t.Fatalf("expected missing Idempotency-Key to be rejected, got %d", status)
	}

	key := map[string]string{"Idempotency-Key": "dep-1"}
	status, body = alice.do(http.MethodPost, "/api/v1/deposit", `{"amount":"100.00"}`, key)
	if status != http.StatusOK || body["new_balance"] != "100.00" {
		t.Fatalf("deposit: %d %v", status, body)
	}
	// Replayed request must not deposit twice.
	status, body = alice.do(http.MethodPost, "/api/v1/deposit", `{"amount":"100.00"}`, key)
	if status != http.StatusOK || body["new_balance"] != "100.00" {
		t.Fatalf("replayed deposit: %d %v", status, body)
	}

	status, body = alice.do(http.MethodPost, "/api/v1/transfer",
		`{"destination_address":"bob@example.com","amount":"30.00","description":"rent"}`,
		map[string]string{"Idempotency-Key": "tr-1"})
	if status != http.StatusOK || body["new_balance"] != "70.00" {
		t.Fatalf("transfer: %d %v", status, body)
	}
	txID, _ := body["transaction_id"].(string)

	status, body = alice.do(http.MethodPost, "/api/v1/transactions/"+txID+"/reverse", `{"reason":"typo"}`,
		map[string]string{"Idempotency-Key": "rev-1"})
	if status != http.StatusOK || body["resulting_status"] != "reversed" {
		t.Fatalf("reverse: %d %v", status, body)
	}

	status, body = alice.do(http.MethodPost, "/api/v1/transactions/"+txID+"/reverse", `{}`,
		map[string]string{"Idempotency-Key": "rev-2"})
	if status != http.StatusBadRequest {
		t.Fatalf("expected second reversal to fail with 400, got %d %v", status, body)
	}

	status, body = alice.do(http.MethodGet, "/api/v1/wallet", "", nil)
	if status != http.StatusOK || body["balance"] != "100.00" {
		t.Fatalf("final wallet: %d %v", status, body)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app, cleanup := newApp(t)
	defer cleanup()

	anon := &client{t: t, app: app}
	for _, path := range []string{"/api/v1/wallet", "/api/v1/transactions", "/api/v1/me"} {
		if status, _ := anon.do(http.MethodGet, path, "", nil); status != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, status)
		}
	}

	alice := registerAndLogin(t, app, "Alice", "alice@example.com")
	status, body := alice.do(http.MethodGet, "/api/v1/me", "", nil)
	if status != http.StatusOK {
		t.Fatalf("me: %d %v", status, body)
	}
	if status, _ := alice.do(http.MethodPost, "/api/v1/auth/logout", "", nil); status != http.StatusOK {
		t.Fatalf("logout: %d", status)
	}
	if status, _ := alice.do(http.MethodGet, "/api/v1/wallet", "", nil); status != http.StatusUnauthorized {
		t.Fatalf("expected token to be revoked, got %d", status)
	}
}

func TestHealth(t *testing.T) {
	app, cleanup := newApp(t)
	defer cleanup()

	c := &client{t: t, app: app}
	status, body := c.do(http.MethodGet, "/healthz", "", nil)
	if status != http.StatusOK {
		t.Fatalf("healthz: %d %v", status, body)
	}
}

func TestSetupRequiresBackendsOutsideDevelopment(t *testing.T) {
	app := fiber.New()
	err := Setup(app, Deps{Cfg: config.Config{Env: "production"}, Logger: logging.Discard()})
	if err == nil {
		t.Fatalf("expected setup to fail without database and redis")
	}
}
