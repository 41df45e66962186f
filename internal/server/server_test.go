package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/walletd/internal/config"
	"github.com/congo-pay/walletd/internal/logging"
)

func TestErrorsRenderAsJSON(t *testing.T) {
	srv, err := New(config.Config{Env: "test", JWTSecret: "a", RefreshSecret: "b"}, nil, nil, logging.Discard())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/api/v1/wallet", nil), -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] == "" {
		t.Fatalf("expected error message in body, got %v", body)
	}
}

func TestPlainErrorsAreMasked(t *testing.T) {
	srv, err := New(config.Config{Env: "test", JWTSecret: "a", RefreshSecret: "b"}, nil, nil, logging.Discard())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	srv.App().Get("/boom", func(c *fiber.Ctx) error { return errors.New("db password leaked") })

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/boom", nil), -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	var body map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body["error"] != "internal error" {
		t.Fatalf("expected masked message, got %q", body["error"])
	}
}
