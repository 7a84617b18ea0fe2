package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/thisux/shortlink/internal/app/model"
)

// linkResponse is the outward view of a link: the entity plus its
// computed short URL. Click events never serialize here; they are
// exposed through the analytics payload only.
type linkResponse struct {
	*model.Link
	ShortURL string `json:"shortUrl"`
}

func newLinkResponse(link *model.Link, baseURL string) linkResponse {
	return linkResponse{Link: link, ShortURL: link.ShortURL(baseURL)}
}

func respond(c *fiber.Ctx, status int, message string, data interface{}) error {
	body := fiber.Map{
		"success": status < 300,
		"message": message,
	}
	if data != nil {
		body["data"] = data
	}
	return c.Status(status).JSON(body)
}

// respondError mirrors respond for failures, attaching internal detail
// only when the server runs outside production.
func respondError(c *fiber.Ctx, status int, message string, err error, exposeDetail bool) error {
	body := fiber.Map{
		"success": false,
		"message": message,
	}
	if err != nil && exposeDetail {
		body["error"] = err.Error()
	}
	return c.Status(status).JSON(body)
}
