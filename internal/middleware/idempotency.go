package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyPrefix    = "walletd:idem:"
	replayedHeader       = "Idempotent-Replayed"
	cacheOpTimeout       = 2 * time.Second
)

// record is what a key maps to in Redis. A record without Status is a
// reservation held by a request that is still running.
type record struct {
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

func (r record) done() bool { return r.Status != 0 }

// Idempotency makes money-moving requests safe to retry. The first request
// carrying a key reserves it with SETNX and its response is stored for ttl;
// later requests with the same key and body get the stored response back.
// Keys are scoped by user, method and path. A key reused with a different
// body is rejected, and server errors release the key so the client can
// retry a request the ledger aborted.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		key := c.Get(idempotencyKeyHeader)
		if key == "" {
			return fiber.NewError(fiber.StatusBadRequest, "missing Idempotency-Key header")
		}
		if len(key) > 255 {
			return fiber.NewError(fiber.StatusBadRequest, "Idempotency-Key must be at most 255 characters")
		}

		cacheKey := scopedKey(c, key)
		fingerprint := bodyFingerprint(c.Body())
		log := logger.With(slog.String("idempotency_key", key))

		reserved, err := reserve(cache, cacheKey, fingerprint, ttl)
		if err != nil {
			log.Error("idempotency reservation failed", slog.Any("error", err))
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency store failure")
		}
		if !reserved {
			return replay(c, cache, cacheKey, fingerprint, log)
		}

		if err := c.Next(); err != nil {
			release(cache, cacheKey)
			return err
		}

		status := c.Response().StatusCode()
		if status >= fiber.StatusInternalServerError {
			release(cache, cacheKey)
			return nil
		}

		payload, err := json.Marshal(record{
			Fingerprint: fingerprint,
			Status:      status,
			ContentType: string(c.Response().Header.ContentType()),
			Body:        append([]byte(nil), c.Response().Body()...),
		})
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
			defer cancel()
			err = cache.Set(ctx, cacheKey, payload, ttl).Err()
		}
		if err != nil {
			// The handler already committed, so the reservation stays until ttl.
			log.Error("failed to persist idempotent response", slog.Any("error", err))
		}
		return nil
	}
}

func reserve(cache *redis.Client, cacheKey, fingerprint string, ttl time.Duration) (bool, error) {
	payload, err := json.Marshal(record{Fingerprint: fingerprint})
	if err != nil {
		return false, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	return cache.SetNX(ctx, cacheKey, payload, ttl).Result()
}

func replay(c *fiber.Ctx, cache *redis.Client, cacheKey, fingerprint string, log *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()

	raw, err := cache.Get(ctx, cacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		// Released between our SETNX and GET; the first request failed.
		return fiber.NewError(fiber.StatusConflict, "duplicate request, retry")
	}
	if err != nil {
		log.Error("idempotency lookup failed", slog.Any("error", err))
		return fiber.NewError(fiber.StatusInternalServerError, "idempotency store failure")
	}

	var stored record
	if err := json.Unmarshal(raw, &stored); err != nil {
		log.Warn("failed to decode stored idempotent response", slog.Any("error", err))
		return fiber.NewError(fiber.StatusConflict, "duplicate request")
	}
	if stored.Fingerprint != fingerprint {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "Idempotency-Key reused with a different request body")
	}
	if !stored.done() {
		return fiber.NewError(fiber.StatusConflict, "duplicate request currently processing")
	}

	if stored.ContentType != "" {
		c.Set(fiber.HeaderContentType, stored.ContentType)
	}
	c.Set(replayedHeader, "true")
	return c.Status(stored.Status).Send(stored.Body)
}

func release(cache *redis.Client, cacheKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	cache.Del(ctx, cacheKey)
}

func bodyFingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func scopedKey(c *fiber.Ctx, key string) string {
	userID, _ := c.Locals(userIDLocal).(string)
	if userID == "" {
		userID = "anonymous"
	}
	return idempotencyPrefix + userID + ":" + c.Method() + ":" + c.Path() + ":" + key
}
