package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/thisux/shortlink/internal/app/repository"
	"github.com/thisux/shortlink/internal/app/service"
	"github.com/thisux/shortlink/internal/http/middleware"
	"go.uber.org/zap"
)

// APIDeps groups dependencies required by API handlers.
type APIDeps struct {
	Logger    *zap.Logger
	Links     service.LinkService
	Redirects service.RedirectService
	Analytics service.AnalyticsService

	// BaseURL is prepended when computing short URLs in responses.
	BaseURL string

	// ExposeErrors attaches internal error detail to failure responses.
	// Off in production.
	ExposeErrors bool
}

// APIHandler implements the owner-scoped management API.
type APIHandler struct {
	logger    *zap.Logger
	links     service.LinkService
	redirects service.RedirectService
	analytics service.AnalyticsService
	baseURL   string
	expose    bool
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		logger:    logger,
		links:     deps.Links,
		redirects: deps.Redirects,
		analytics: deps.Analytics,
		baseURL:   deps.BaseURL,
		expose:    deps.ExposeErrors,
	}
}

// Register wires API routes onto the provided router. Every route runs
// behind the auth middleware.
func (h *APIHandler) Register(router fiber.Router, auth fiber.Handler) {
	api := router.Group("/api")
	{
		links := api.Group("/links", auth)
		{
			links.Post("/", h.CreateLink)
			links.Get("/", h.ListLinks)
			links.Get("/stats", h.OwnerStats)
			links.Get("/:id", h.GetLink)
			links.Put("/:id", h.UpdateLink)
			links.Delete("/:id", h.DeleteLink)
			links.Get("/:id/analytics", h.LinkAnalytics)
			links.Post("/:id/click", h.RecordClick)
		}
	}
}

// CreateLinkRequest represents the request body for creating a link.
type CreateLinkRequest struct {
	OriginalURL string     `json:"originalUrl"`
	CustomSlug  string     `json:"customSlug,omitempty"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// UpdateLinkRequest represents the request body for updating a link.
// Absent fields are left untouched.
type UpdateLinkRequest struct {
	OriginalURL *string    `json:"originalUrl,omitempty"`
	CustomSlug  *string    `json:"customSlug,omitempty"`
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	IsActive    *bool      `json:"isActive,omitempty"`
}

// RecordClickRequest carries optional overrides for a simulated click.
type RecordClickRequest struct {
	IPAddress string `json:"ipAddress,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

// CreateLink handles POST /api/links
func (h *APIHandler) CreateLink(c *fiber.Ctx) error {
	var req CreateLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "invalid request body", err, h.expose)
	}
	if strings.TrimSpace(req.OriginalURL) == "" {
		return respondError(c, fiber.StatusBadRequest, "originalUrl is required", nil, h.expose)
	}

	link, err := h.links.CreateLink(h.ctx(c), service.CreateLinkInput{
		OriginalURL: req.OriginalURL,
		CustomSlug:  req.CustomSlug,
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		ExpiresAt:   req.ExpiresAt,
		OwnerID:     middleware.UserID(c),
	})
	if err != nil {
		return h.fail(c, err, "failed to create short link")
	}

	return respond(c, fiber.StatusCreated, "Short link created successfully", fiber.Map{
		"link": newLinkResponse(link, h.baseURL),
	})
}

// ListLinks handles GET /api/links
func (h *APIHandler) ListLinks(c *fiber.Ctx) error {
	opts := repository.ListOptions{
		Page:      c.QueryInt("page", 1),
		Limit:     c.QueryInt("limit", 10),
		Search:    c.Query("search"),
		SortBy:    c.Query("sortBy", "createdAt"),
		SortOrder: c.Query("sortOrder", "desc"),
	}
	// Pagination math below divides by the limit; keep it in step with
	// the effective values the repository queries with.
	opts.Normalize()

	links, total, err := h.links.ListLinks(h.ctx(c), middleware.UserID(c), opts)
	if err != nil {
		return h.fail(c, err, "failed to fetch links")
	}

	out := make([]linkResponse, len(links))
	for i := range links {
		out[i] = newLinkResponse(&links[i], h.baseURL)
	}

	pages := total / int64(opts.Limit)
	if total%int64(opts.Limit) != 0 {
		pages++
	}

	return respond(c, fiber.StatusOK, "", fiber.Map{
		"links": out,
		"pagination": fiber.Map{
			"current":    opts.Page,
			"total":      pages,
			"count":      len(out),
			"totalCount": total,
		},
	})
}

// GetLink handles GET /api/links/:id
func (h *APIHandler) GetLink(c *fiber.Ctx) error {
	link, err := h.links.GetLink(h.ctx(c), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return h.fail(c, err, "failed to fetch link")
	}
	return respond(c, fiber.StatusOK, "", fiber.Map{
		"link": newLinkResponse(link, h.baseURL),
	})
}

// UpdateLink handles PUT /api/links/:id
func (h *APIHandler) UpdateLink(c *fiber.Ctx) error {
	var req UpdateLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "invalid request body", err, h.expose)
	}

	link, err := h.links.UpdateLink(h.ctx(c), c.Params("id"), middleware.UserID(c), service.UpdateLinkInput{
		OriginalURL: req.OriginalURL,
		CustomSlug:  req.CustomSlug,
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		ExpiresAt:   req.ExpiresAt,
		IsActive:    req.IsActive,
	})
	if err != nil {
		return h.fail(c, err, "failed to update link")
	}

	return respond(c, fiber.StatusOK, "Link updated successfully", fiber.Map{
		"link": newLinkResponse(link, h.baseURL),
	})
}

// DeleteLink handles DELETE /api/links/:id
func (h *APIHandler) DeleteLink(c *fiber.Ctx) error {
	if err := h.links.DeleteLink(h.ctx(c), c.Params("id"), middleware.UserID(c)); err != nil {
		return h.fail(c, err, "failed to delete link")
	}
	return respond(c, fiber.StatusOK, "Link deleted successfully", nil)
}

// LinkAnalytics handles GET /api/links/:id/analytics
func (h *APIHandler) LinkAnalytics(c *fiber.Ctx) error {
	link, analytics, err := h.analytics.LinkAnalytics(h.ctx(c), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return h.fail(c, err, "failed to fetch link analytics")
	}

	return respond(c, fiber.StatusOK, "", fiber.Map{
		"link":      newLinkResponse(link, h.baseURL),
		"analytics": analytics,
	})
}

// RecordClick handles POST /api/links/:id/click, the owner-scoped
// simulated click.
func (h *APIHandler) RecordClick(c *fiber.Ctx) error {
	var req RecordClickRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return respondError(c, fiber.StatusBadRequest, "invalid request body", err, h.expose)
		}
	}

	click := service.ClickContext{
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
		Referer:   c.Get(fiber.HeaderReferer),
		Country:   c.Get("CF-IPCountry"),
	}
	if click.IPAddress == "" {
		click.IPAddress = c.IP()
	}
	if click.UserAgent == "" {
		click.UserAgent = c.Get(fiber.HeaderUserAgent)
	}

	link, err := h.redirects.SimulateClick(h.ctx(c), c.Params("id"), middleware.UserID(c), click)
	if err != nil {
		return h.fail(c, err, "failed to record click")
	}

	return respond(c, fiber.StatusOK, "Click recorded", fiber.Map{
		"link": newLinkResponse(link, h.baseURL),
	})
}

// OwnerStats handles GET /api/links/stats
func (h *APIHandler) OwnerStats(c *fiber.Ctx) error {
	stats, err := h.analytics.OwnerStats(h.ctx(c), middleware.UserID(c))
	if err != nil {
		return h.fail(c, err, "failed to fetch stats")
	}
	return respond(c, fiber.StatusOK, "", fiber.Map{"stats": stats})
}

func (h *APIHandler) ctx(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// fail maps service errors onto the HTTP taxonomy. Missing, inactive,
// expired and foreign-owned links all present as 404.
func (h *APIHandler) fail(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return respondError(c, fiber.StatusBadRequest, err.Error(), nil, false)
	case errors.Is(err, service.ErrSlugTaken):
		return respondError(c, fiber.StatusConflict, "Custom slug is already taken", nil, false)
	case errors.Is(err, service.ErrCodeSpaceExhausted):
		return respondError(c, fiber.StatusInternalServerError,
			"Unable to generate a unique short code after multiple attempts. Please try again later.", nil, false)
	case errors.Is(err, repository.ErrLinkNotFound):
		return respondError(c, fiber.StatusNotFound, "Link not found", nil, false)
	default:
		h.logger.Error(fallback, zap.Error(err), zap.String("path", c.Path()))
		return respondError(c, fiber.StatusInternalServerError, fallback, err, h.expose)
	}
}
