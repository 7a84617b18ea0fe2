package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/thisux/shortlink/internal/app/repository"
	"github.com/thisux/shortlink/internal/app/service"
	"go.uber.org/zap"
)

// RedirectDeps groups dependencies required by the public redirect
// handler.
type RedirectDeps struct {
	Logger    *zap.Logger
	Redirects service.RedirectService
}

// RedirectHandler serves unauthenticated short-link traffic.
type RedirectHandler struct {
	logger    *zap.Logger
	redirects service.RedirectService
}

// NewRedirectHandler creates a redirect handler with the provided
// dependencies.
func NewRedirectHandler(deps RedirectDeps) *RedirectHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedirectHandler{
		logger:    logger,
		redirects: deps.Redirects,
	}
}

// Register wires redirect routes onto the provided router.
func (h *RedirectHandler) Register(router fiber.Router) {
	router.Get("/health", h.Health)
	router.Get("/r/:code", h.Resolve)
}

// Health is a simple endpoint so we know the service is running.
func (h *RedirectHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "shortlink",
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Resolve handles GET /r/:code: record the visit, then redirect.
// Missing, inactive and expired links all answer the same 404.
func (h *RedirectHandler) Resolve(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return respondError(c, fiber.StatusBadRequest, "missing link code", nil, false)
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	click := service.ClickContext{
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
		Referer:   c.Get(fiber.HeaderReferer),
		Country:   c.Get("CF-IPCountry"),
	}

	target, err := h.redirects.Resolve(ctx, code, click)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return respondError(c, fiber.StatusNotFound, "Link not found or has expired", nil, false)
		}
		h.logger.Error("failed to resolve short link", zap.Error(err), zap.String("code", code))
		return respondError(c, fiber.StatusInternalServerError, "Failed to redirect", nil, false)
	}

	h.logger.Debug("redirecting short link", zap.String("code", code), zap.String("target", target))
	return c.Redirect(target, fiber.StatusMovedPermanently)
}
