package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/linkvault/linkvault/internal/app/model"
	"github.com/linkvault/linkvault/internal/app/service"
	"go.uber.org/zap"
)

// APIDeps groups dependencies required by API handlers.
type APIDeps struct {
	Logger      *zap.Logger
	LinkService service.LinkService
	BaseURL     string
}

// APIHandler implements the management API endpoints.
type APIHandler struct {
	logger      *zap.Logger
	linkService service.LinkService
	baseURL     string
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		logger:      logger,
		linkService: deps.LinkService,
		baseURL:     deps.BaseURL,
	}
}

// Register wires API routes onto the provided router.
func (h *APIHandler) Register(router fiber.Router) {
	api := router.Group("/api")
	{
		links := api.Group("/links")
		{
			links.Post("/shorten", h.Shorten)
			links.Post("/analyze", h.Analyze)
			links.Post("/bulk", h.BulkShorten)
			links.Get("/all", h.ListLinks)
			links.Get("/stats/summary", h.Stats)
			links.Get("/:code", h.GetLink)
		}
	}
}

// ShortenRequest represents the request body for creating a link.
type ShortenRequest struct {
	OriginalURL   string `json:"original_url"`
	CustomCode    string `json:"custom_code,omitempty"`
	ExpiresInDays *int   `json:"expires_in_days,omitempty"`
}

// LinkResponse represents a link as returned by the API.
type LinkResponse struct {
	ShortCode   string     `json:"short_code"`
	OriginalURL string     `json:"original_url"`
	ShortURL    string     `json:"short_url"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
	ClickCount  int64      `json:"click_count"`
	RiskScore   int        `json:"risk_score"`
}

func (h *APIHandler) linkResponse(link *model.Link) LinkResponse {
	return LinkResponse{
		ShortCode:   link.ShortCode,
		OriginalURL: link.OriginalURL,
		ShortURL:    fmt.Sprintf("%s/%s", h.baseURL, link.ShortCode),
		CreatedAt:   link.CreatedAt,
		ExpiresAt:   link.ExpiresAt,
		ClickCount:  link.ClickCount,
		RiskScore:   link.RiskScore,
	}
}

// Shorten handles POST /api/links/shorten
func (h *APIHandler) Shorten(c *fiber.Ctx) error {
	var req ShortenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if req.OriginalURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "original_url is required",
		})
	}

	link, err := h.linkService.CreateLink(userContext(c), service.CreateLinkInput{
		OriginalURL:   req.OriginalURL,
		CustomCode:    req.CustomCode,
		ExpiresInDays: req.ExpiresInDays,
	})
	if err != nil {
		return h.writeCreateError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(h.linkResponse(link))
}

// AnalyzeRequest represents the request body for scoring a URL.
type AnalyzeRequest struct {
	URL string `json:"url"`
}

// Analyze handles POST /api/links/analyze
func (h *APIHandler) Analyze(c *fiber.Ctx) error {
	var req AnalyzeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "url is required",
		})
	}

	return c.JSON(h.linkService.ScoreURL(req.URL))
}

// BulkShortenRequest represents the request body for bulk creation.
type BulkShortenRequest struct {
	URLs []string `json:"urls"`
}

// BulkFailure describes one URL that could not be shortened.
type BulkFailure struct {
	URL       string `json:"url"`
	Reason    string `json:"reason"`
	RiskScore *int   `json:"risk_score,omitempty"`
}

// BulkShorten handles POST /api/links/bulk. It is a thin loop over the
// create pipeline; each URL succeeds or fails independently.
func (h *APIHandler) BulkShorten(c *fiber.Ctx) error {
	var req BulkShortenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	ctx := userContext(c)
	successful := []LinkResponse{}
	failed := []BulkFailure{}

	for _, rawURL := range req.URLs {
		link, err := h.linkService.CreateLink(ctx, service.CreateLinkInput{OriginalURL: rawURL})
		if err != nil {
			failure := BulkFailure{URL: rawURL, Reason: err.Error()}
			var suspicious *service.SuspiciousURLError
			if errors.As(err, &suspicious) {
				failure.Reason = "Flagged as suspicious"
				score := suspicious.Result.RiskScore
				failure.RiskScore = &score
			}
			failed = append(failed, failure)
			continue
		}
		successful = append(successful, h.linkResponse(link))
	}

	return c.JSON(fiber.Map{
		"successful": successful,
		"failed":     failed,
	})
}

// ListLinks handles GET /api/links/all
func (h *APIHandler) ListLinks(c *fiber.Ctx) error {
	links, err := h.linkService.ListActiveLinks(userContext(c))
	if err != nil {
		h.logger.Error("failed to list links", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list links",
		})
	}

	response := make([]LinkResponse, len(links))
	for i := range links {
		response[i] = h.linkResponse(&links[i])
	}
	return c.JSON(response)
}

// Stats handles GET /api/links/stats/summary
func (h *APIHandler) Stats(c *fiber.Ctx) error {
	summary, err := h.linkService.Stats(userContext(c))
	if err != nil {
		h.logger.Error("failed to compute stats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to compute stats",
		})
	}
	return c.JSON(summary)
}

// GetLink handles GET /api/links/:code
func (h *APIHandler) GetLink(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "code is required",
		})
	}

	link, err := h.linkService.GetLink(userContext(c), code)
	if err != nil {
		if errors.Is(err, service.ErrLinkNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "link not found",
			})
		}
		h.logger.Error("failed to get link", zap.Error(err), zap.String("code", code))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	return c.JSON(h.linkResponse(link))
}

func (h *APIHandler) writeCreateError(c *fiber.Ctx, err error) error {
	var suspicious *service.SuspiciousURLError
	switch {
	case errors.As(err, &suspicious):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":      "URL flagged as potentially malicious",
			"risk_score": suspicious.Result.RiskScore,
			"risk_level": suspicious.Result.RiskLevel,
			"reasons":    suspicious.Result.Reasons,
		})
	case errors.Is(err, service.ErrInvalidURL),
		errors.Is(err, service.ErrInvalidCustomCode),
		errors.Is(err, service.ErrInvalidExpiry),
		errors.Is(err, service.ErrDuplicateCode):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, service.ErrGenerationExhausted):
		h.logger.Error("short code generation exhausted", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	default:
		h.logger.Error("failed to create link", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create link",
		})
	}
}

func userContext(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}
